// Package matchmaking pairs waiting Caro players first in, first out.
package matchmaking

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/wricardo/boardgames/game/directory"
	"github.com/wricardo/boardgames/game/service"
)

// Creator opens a session for a pair of players.
type Creator interface {
	Create(ctx context.Context, players [2]int64) (*service.CaroSession, error)
	IsPlaying(ctx context.Context, playerID int64) (bool, error)
}

// PairedFunc is told about every session the queue creates.
type PairedFunc func(ctx context.Context, sess *service.CaroSession)

var _ service.Matchmaker = (*Queue)(nil)

// Queue is the waiting list for Caro. Only one caller drains it at a time;
// the others just append and return.
type Queue struct {
	creator Creator
	dir     *directory.Directory

	mu       sync.Mutex
	waiting  []int64
	draining atomic.Bool
	onPaired PairedFunc
}

// New creates an empty queue. dir may be nil, in which case every player is
// treated as connected.
func New(creator Creator, dir *directory.Directory) *Queue {
	return &Queue{creator: creator, dir: dir}
}

// SetPairedHandler registers the callback run for each created session.
func (q *Queue) SetPairedHandler(fn PairedFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onPaired = fn
}

// Enqueue adds the player if absent and drains the queue in pairs. It
// returns the session created for the caller's pair, or nil when the caller
// is still waiting or another caller is draining.
func (q *Queue) Enqueue(ctx context.Context, playerID int64) (*service.CaroSession, error) {
	q.mu.Lock()
	if !slices.Contains(q.waiting, playerID) {
		q.waiting = append(q.waiting, playerID)
	}
	q.mu.Unlock()

	var mine *service.CaroSession
	for {
		if !q.draining.CompareAndSwap(false, true) {
			return mine, nil
		}
		sess, err := q.drainOnce(ctx, playerID)
		if sess != nil {
			mine = sess
		}
		if err != nil {
			return mine, err
		}
		// Another caller may have appended after the last pop but before the
		// flag was released.
		if q.Len() < 2 {
			return mine, nil
		}
	}
}

// drainOnce runs drain while holding the draining flag and releases it on
// every exit, panics included.
func (q *Queue) drainOnce(ctx context.Context, caller int64) (*service.CaroSession, error) {
	defer q.draining.Store(false)
	return q.drain(ctx, caller)
}

func (q *Queue) drain(ctx context.Context, caller int64) (*service.CaroSession, error) {
	var mine *service.CaroSession
	for {
		pair, ok := q.popPair()
		if !ok {
			return mine, nil
		}

		sess, err := q.creator.Create(ctx, pair)
		if err != nil {
			q.requeue(ctx, pair)
			return mine, fmt.Errorf("pair players %d and %d: %w", pair[0], pair[1], err)
		}
		log.Printf("[MATCH] paired %d and %d into session %d", pair[0], pair[1], sess.ID)

		if pair[0] == caller || pair[1] == caller {
			mine = sess
		}

		q.mu.Lock()
		fn := q.onPaired
		q.mu.Unlock()
		if fn != nil {
			fn(ctx, sess)
		}
	}
}

func (q *Queue) popPair() ([2]int64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.waiting) < 2 {
		return [2]int64{}, false
	}
	pair := [2]int64{q.waiting[0], q.waiting[1]}
	q.waiting = q.waiting[2:]
	return pair, true
}

// requeue puts players from a failed pairing back at the head, skipping
// those that left or already have a game.
func (q *Queue) requeue(ctx context.Context, pair [2]int64) {
	var back []int64
	for _, p := range pair {
		if q.dir != nil && !q.dir.Connected(p) {
			continue
		}
		playing, err := q.creator.IsPlaying(ctx, p)
		if err != nil || playing {
			continue
		}
		back = append(back, p)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	rest := slices.DeleteFunc(q.waiting, func(id int64) bool { return slices.Contains(back, id) })
	q.waiting = append(back, rest...)
}

// Remove drops the player from the queue and the connection directory.
func (q *Queue) Remove(playerID int64) {
	q.mu.Lock()
	q.waiting = slices.DeleteFunc(q.waiting, func(id int64) bool { return id == playerID })
	q.mu.Unlock()

	if q.dir != nil {
		q.dir.Remove(playerID)
	}
}

// Waiting reports whether the player is queued.
func (q *Queue) Waiting(playerID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Contains(q.waiting, playerID)
}

// Len returns the number of queued players.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}
