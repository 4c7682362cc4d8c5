package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/wricardo/boardgames/game/board"
	"github.com/wricardo/boardgames/game/line98"
	"github.com/wricardo/boardgames/game/service"
)

var _ service.Line98Supervisor = (*Line98Manager)(nil)

// Line98Manager supervises single player Line98 sessions and remembers the
// match each player last opened through the REST play endpoint.
type Line98Manager struct {
	store  Line98Store
	games  service.GameLifecycle
	engine *line98.Engine
	locks  *lockSet

	mu       sync.RWMutex
	sessions map[int64]*service.Line98Session
	current  map[int64]int64
}

// NewLine98Manager creates a supervisor that starts new games with the
// engine's configuration.
func NewLine98Manager(store Line98Store, games service.GameLifecycle, engine *line98.Engine) *Line98Manager {
	return &Line98Manager{
		store:    store,
		games:    games,
		engine:   engine,
		locks:    newLockSet(),
		sessions: make(map[int64]*service.Line98Session),
		current:  make(map[int64]int64),
	}
}

// Config returns the configuration used for new games.
func (m *Line98Manager) Config() line98.Config {
	return m.engine.Config()
}

// Create returns the player's unfinished game if there is one, otherwise
// it deals a new board and records it as a started single player game.
func (m *Line98Manager) Create(ctx context.Context, playerID int64) (*service.Line98Session, error) {
	gameID, playing, err := m.games.PlayingGame(ctx, playerID, service.GameLine98)
	if err != nil {
		return nil, fmt.Errorf("check running game: %w", err)
	}
	if playing {
		existing, err := m.store.Line98ByGame(ctx, gameID)
		if err == nil && !existing.Finished {
			sess, err := m.cache(existing)
			if err != nil {
				return nil, err
			}
			return m.snapshot(sess), nil
		}
		if err != nil && !errors.Is(err, service.ErrNotFound) {
			return nil, err
		}
	}

	sess := &service.Line98Session{
		PlayerID: playerID,
		Config:   m.engine.Config(),
		State:    m.engine.NewState(),
	}
	err = m.store.WithinTx(ctx, func(tx service.Tx) error {
		game, err := m.games.CreateGame(ctx, tx, service.GameLine98, service.ModeSingle, []int64{playerID})
		if err != nil {
			return fmt.Errorf("create game record: %w", err)
		}
		sess.GameID = game.ID
		return m.store.CreateLine98(ctx, tx, sess)
	})
	if err != nil {
		return nil, err
	}
	if err := m.games.StartGame(ctx, sess.GameID); err != nil {
		return nil, fmt.Errorf("start game record %d: %w", sess.GameID, err)
	}

	sess, _ = m.cache(sess)
	log.Printf("[LINE98] created session %d (game %d) for player %d", sess.ID, sess.GameID, playerID)
	return m.snapshot(sess), nil
}

func (m *Line98Manager) cache(sess *service.Line98Session) (*service.Line98Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.sessions[sess.ID]; ok {
		return cached, nil
	}
	m.sessions[sess.ID] = sess
	return sess, nil
}

func (m *Line98Manager) snapshot(sess *service.Line98Session) *service.Line98Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sess.Clone()
}

// load returns the active session. Unknown and finished sessions are both
// reported as not found.
func (m *Line98Manager) load(ctx context.Context, id int64) (*service.Line98Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return sess, nil
	}

	sess, err := m.store.GetLine98(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Finished {
		return nil, fmt.Errorf("%w: line98 session %d is finished", service.ErrNotFound, id)
	}
	return m.cache(sess)
}

func (m *Line98Manager) owned(ctx context.Context, id, playerID int64) (*service.Line98Session, error) {
	sess, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.PlayerID != playerID {
		return nil, fmt.Errorf("%w: line98 session %d", service.ErrNotFound, id)
	}
	return sess, nil
}

// Get returns a snapshot of an active session.
func (m *Line98Manager) Get(ctx context.Context, id int64) (*service.Line98Session, error) {
	sess, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.snapshot(sess), nil
}

// Move applies a move for the owner. When the move spawned balls a cascade
// rescan follows. The returned turn reports whether the board is now over;
// ending the game is left to the caller.
func (m *Line98Manager) Move(ctx context.Context, id, playerID int64, from, to board.Point) (*service.Line98Turn, error) {
	if !m.locks.TryLock(id) {
		return nil, fmt.Errorf("%w: line98 session %d", service.ErrConcurrencyConflict, id)
	}
	defer m.locks.Unlock(id)

	sess, err := m.owned(ctx, id, playerID)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	st := sess.State.Clone()
	m.mu.RUnlock()

	ev, err := m.engine.Move(&st, from, to)
	if err != nil {
		return nil, classifyMoveError(err)
	}

	turn := &service.Line98Turn{Move: ev}
	points := ev.Points
	if len(ev.Added) > 0 {
		cascade := m.engine.CheckAfterAdd(&st)
		turn.Cascade = &cascade
		points += cascade.Points
	}
	turn.GameOver = m.engine.IsGameOver(st)

	m.mu.Lock()
	sess.State = st
	sess.Score += points
	m.mu.Unlock()

	if err := m.store.SaveLine98(ctx, sess); err != nil {
		log.Printf("Warning: failed to persist line98 session %d: %v", id, err)
	}

	turn.Session = m.snapshot(sess)
	return turn, nil
}

func classifyMoveError(err error) error {
	switch {
	case errors.Is(err, line98.ErrOutOfBounds):
		return fmt.Errorf("%w: %w", service.ErrValidation, err)
	case errors.Is(err, line98.ErrGameOver):
		return fmt.Errorf("%w: %w", service.ErrSessionFinished, err)
	default:
		return fmt.Errorf("%w: %w", service.ErrIllegalMove, err)
	}
}

// Help consumes one help and suggests a move.
func (m *Line98Manager) Help(ctx context.Context, id, playerID int64) (line98.Hint, error) {
	if !m.locks.TryLock(id) {
		return line98.Hint{}, fmt.Errorf("%w: line98 session %d", service.ErrConcurrencyConflict, id)
	}
	defer m.locks.Unlock(id)

	sess, err := m.owned(ctx, id, playerID)
	if err != nil {
		return line98.Hint{}, err
	}

	m.mu.RLock()
	st := sess.State.Clone()
	m.mu.RUnlock()

	hint, err := m.engine.Help(&st)
	if err != nil {
		return line98.Hint{}, fmt.Errorf("%w: %w", service.ErrHelpUnavailable, err)
	}

	m.mu.Lock()
	sess.State = st
	m.mu.Unlock()

	if err := m.store.SaveLine98(ctx, sess); err != nil {
		log.Printf("Warning: failed to persist line98 session %d: %v", id, err)
	}
	return hint, nil
}

// SetGameOver ends the owner's game, persists it, evicts it from the cache
// and closes the game record.
func (m *Line98Manager) SetGameOver(ctx context.Context, id, playerID int64) (*service.Line98Session, error) {
	if !m.locks.TryLock(id) {
		return nil, fmt.Errorf("%w: line98 session %d", service.ErrConcurrencyConflict, id)
	}
	defer m.locks.Unlock(id)

	sess, err := m.owned(ctx, id, playerID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	sess.Finished = true
	sess.State.GameOver = true
	sess.EndReason = service.EndGameOver
	m.mu.Unlock()

	if err := m.store.SaveLine98(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist finished line98 session %d: %w", id, err)
	}

	m.mu.Lock()
	delete(m.sessions, id)
	if m.current[playerID] == id {
		delete(m.current, playerID)
	}
	snapshot := sess.Clone()
	m.mu.Unlock()

	// A finished puzzle counts as a loss for its only player.
	result := service.FinalResult{Losers: []int64{playerID}}
	if err := m.games.FinishGame(ctx, sess.GameID, result); err != nil {
		return nil, fmt.Errorf("finish game record %d: %w", sess.GameID, err)
	}

	log.Printf("[LINE98] session %d finished with score %d", id, snapshot.Score)
	return snapshot, nil
}

// CurrentMatch returns the match the player last opened.
func (m *Line98Manager) CurrentMatch(playerID int64) (int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.current[playerID]
	return id, ok
}

// SetCurrentMatch remembers the match the player opened.
func (m *Line98Manager) SetCurrentMatch(playerID, matchID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current[playerID] = matchID
}

// ForgetCurrentMatch drops the remembered match and its cached session.
// The game itself stays open and can be resumed with Create.
func (m *Line98Manager) ForgetCurrentMatch(playerID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.current[playerID]; ok {
		if !m.locks.Locked(id) {
			delete(m.sessions, id)
		}
		delete(m.current, playerID)
	}
}

// History returns one page of the player's Line98 sessions, newest first.
func (m *Line98Manager) History(ctx context.Context, playerID int64, page service.Page) (service.PageResult[*service.Line98Session], error) {
	ids, total, err := m.games.History(ctx, playerID, service.GameLine98, page)
	if err != nil {
		return service.PageResult[*service.Line98Session]{}, err
	}
	sessions, err := m.store.Line98sByGames(ctx, ids)
	if err != nil {
		return service.PageResult[*service.Line98Session]{}, err
	}
	return service.NewPageResult(page, total, sessions), nil
}

// Count returns the number of cached sessions.
func (m *Line98Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
