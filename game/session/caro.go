package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"sync"

	"github.com/wricardo/boardgames/game/caro"
	"github.com/wricardo/boardgames/game/service"
	"github.com/wricardo/boardgames/game/turnclock"
)

var _ service.CaroSupervisor = (*CaroManager)(nil)

// CaroManager supervises active Caro sessions. Sessions are cached from
// creation (or first load) until they finish; the cache is authoritative
// while a session is active.
type CaroManager struct {
	store CaroStore
	games service.GameLifecycle
	clock *turnclock.Clock
	cfg   caro.Config
	locks *lockSet

	mu       sync.RWMutex
	sessions map[int64]*service.CaroSession

	// firstIsA picks which of the paired players opens the game.
	firstIsA func() bool
}

// NewCaroManager creates a supervisor that starts new games with cfg.
func NewCaroManager(store CaroStore, games service.GameLifecycle, clock *turnclock.Clock, cfg caro.Config) *CaroManager {
	return &CaroManager{
		store:    store,
		games:    games,
		clock:    clock,
		cfg:      cfg,
		locks:    newLockSet(),
		sessions: make(map[int64]*service.CaroSession),
		firstIsA: func() bool { return rand.IntN(2) == 0 },
	}
}

// Config returns the configuration used for new games.
func (m *CaroManager) Config() caro.Config {
	return m.cfg
}

// Create opens a session for two players inside one transaction together
// with the generic game record. The first symbol goes to either player with
// equal probability.
func (m *CaroManager) Create(ctx context.Context, players [2]int64) (*service.CaroSession, error) {
	if players[0] == players[1] {
		return nil, fmt.Errorf("%w: a player cannot be paired with themselves", service.ErrValidation)
	}
	for _, p := range players {
		playing, err := m.games.IsPlaying(ctx, p, service.GameCaro)
		if err != nil {
			return nil, fmt.Errorf("check player %d: %w", p, err)
		}
		if playing {
			return nil, fmt.Errorf("%w: player %d", service.ErrAlreadyPlaying, p)
		}
	}

	cfg := m.cfg
	cfg.PlayerSymbols = append([]caro.Symbol(nil), m.cfg.PlayerSymbols...)
	first, second := cfg.PlayerSymbols[0], cfg.PlayerSymbols[1]

	a := players[0]
	if !m.firstIsA() {
		a = players[1]
	}

	sess := &service.CaroSession{
		Config: cfg,
		State: service.CaroState{
			Board:       caro.NewBoard(cfg.Size),
			CurrentTurn: first,
			Players: []service.CaroPlayer{
				{ID: players[0], Symbol: symbolFor(players[0], a, first, second)},
				{ID: players[1], Symbol: symbolFor(players[1], a, first, second)},
			},
		},
		FirstPlayer: a,
	}

	err := m.store.WithinTx(ctx, func(tx service.Tx) error {
		game, err := m.games.CreateGame(ctx, tx, service.GameCaro, service.ModeMulti, players[:])
		if err != nil {
			return fmt.Errorf("create game record: %w", err)
		}
		sess.GameID = game.ID
		return m.store.CreateCaro(ctx, tx, sess)
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	snapshot := sess.Clone()
	m.mu.Unlock()

	log.Printf("[CARO] created session %d (game %d) for players %d and %d, %d opens",
		sess.ID, sess.GameID, players[0], players[1], a)
	return snapshot, nil
}

func symbolFor(player, firstPlayer int64, first, second caro.Symbol) caro.Symbol {
	if player == firstPlayer {
		return first
	}
	return second
}

// load returns the cached session, reading it from the store on a miss.
// Finished sessions are never cached.
func (m *CaroManager) load(ctx context.Context, id int64) (*service.CaroSession, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return sess, nil
	}

	sess, err := m.store.GetCaro(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Finished {
		return nil, fmt.Errorf("%w: caro session %d", service.ErrSessionFinished, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.sessions[id]; ok {
		return cached, nil
	}
	m.sessions[id] = sess
	return sess, nil
}

// Get returns a snapshot of an active session.
func (m *CaroManager) Get(ctx context.Context, id int64) (*service.CaroSession, error) {
	sess, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sess.Finished {
		return nil, fmt.Errorf("%w: caro session %d", service.ErrSessionFinished, id)
	}
	return sess.Clone(), nil
}

// IsPlaying reports whether the player has an unfinished Caro game.
func (m *CaroManager) IsPlaying(ctx context.Context, playerID int64) (bool, error) {
	return m.games.IsPlaying(ctx, playerID, service.GameCaro)
}

// PlayingSession returns the id of the player's unfinished Caro session.
func (m *CaroManager) PlayingSession(ctx context.Context, playerID int64) (int64, bool, error) {
	gameID, ok, err := m.games.PlayingGame(ctx, playerID, service.GameCaro)
	if err != nil || !ok {
		return 0, false, err
	}
	sess, err := m.store.CaroByGame(ctx, gameID)
	if errors.Is(err, service.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if sess.Finished {
		return 0, false, nil
	}
	return sess.ID, true, nil
}

// Start marks the participants as playing.
func (m *CaroManager) Start(ctx context.Context, id int64) error {
	sess, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	return m.games.StartGame(ctx, sess.GameID)
}

// TryLock acquires the session lock without blocking.
func (m *CaroManager) TryLock(id int64) bool {
	return m.locks.TryLock(id)
}

// Unlock releases the session lock.
func (m *CaroManager) Unlock(id int64) {
	m.locks.Unlock(id)
}

// MakeMove validates and applies a move, cancels the pending turn deadline
// and resolves the outcome before the session lock is released, so no other
// move can land after a winning or drawing one.
func (m *CaroManager) MakeMove(ctx context.Context, id, playerID int64, row, col int) (*service.CaroMove, error) {
	if !m.locks.TryLock(id) {
		return nil, fmt.Errorf("%w: caro session %d", service.ErrConcurrencyConflict, id)
	}
	defer m.locks.Unlock(id)

	sess, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Finished {
		return nil, fmt.Errorf("%w: caro session %d", service.ErrSessionFinished, id)
	}

	player, ok := sess.State.Player(playerID)
	if !ok {
		return nil, fmt.Errorf("%w: player %d is not in session %d", service.ErrIllegalMove, playerID, id)
	}
	if sess.State.CurrentTurn != player.Symbol {
		return nil, fmt.Errorf("%w: not your turn", service.ErrIllegalMove)
	}
	if !sess.State.Board.InBounds(row, col) {
		return nil, fmt.Errorf("%w: cell (%d, %d) is outside the %dx%d board",
			service.ErrValidation, row, col, sess.Config.Size, sess.Config.Size)
	}
	if sess.State.Board[row][col] != caro.Empty {
		return nil, fmt.Errorf("%w: cell (%d, %d) is occupied", service.ErrIllegalMove, row, col)
	}
	opponent, _ := sess.State.Opponent(playerID)

	m.clock.Cancel(id)

	m.mu.Lock()
	sess.State.Board[row][col] = player.Symbol
	sess.State.CurrentTurn = opponent.Symbol
	m.mu.Unlock()

	result := &service.CaroMove{Player: player, Row: row, Col: col}

	won, err := caro.CheckWin(sess.State.Board, row, col, sess.Config)
	if err != nil {
		return nil, fmt.Errorf("check win: %w", err)
	}
	switch {
	case won:
		result.Outcome = service.EndWin
		result.Session, err = m.finish(ctx, sess, &playerID, service.EndWin)
	case caro.CheckDraw(sess.State.Board, sess.Config):
		result.Outcome = service.EndDraw
		result.Session, err = m.finish(ctx, sess, nil, service.EndDraw)
	default:
		if err := m.store.SaveCaro(ctx, sess); err != nil {
			log.Printf("Warning: failed to persist caro session %d: %v", id, err)
		}
		m.mu.RLock()
		result.Session = sess.Clone()
		m.mu.RUnlock()
	}
	if err != nil {
		return nil, err
	}

	return result, nil
}

// SetWin ends the session with winnerID as the winner. It takes the session
// lock and fails with ErrConcurrencyConflict while a move is in flight.
func (m *CaroManager) SetWin(ctx context.Context, id, winnerID int64, reason service.EndReason) (*service.CaroSession, error) {
	if !m.locks.TryLock(id) {
		return nil, fmt.Errorf("%w: caro session %d", service.ErrConcurrencyConflict, id)
	}
	defer m.locks.Unlock(id)
	return m.setWin(ctx, id, winnerID, reason)
}

func (m *CaroManager) setWin(ctx context.Context, id, winnerID int64, reason service.EndReason) (*service.CaroSession, error) {
	sess, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, ok := sess.State.Player(winnerID); !ok {
		return nil, fmt.Errorf("%w: player %d is not in session %d", service.ErrValidation, winnerID, id)
	}
	return m.finish(ctx, sess, &winnerID, reason)
}

// SetDraw ends the session as a draw. Like SetWin it takes the session lock.
func (m *CaroManager) SetDraw(ctx context.Context, id int64) (*service.CaroSession, error) {
	if !m.locks.TryLock(id) {
		return nil, fmt.Errorf("%w: caro session %d", service.ErrConcurrencyConflict, id)
	}
	defer m.locks.Unlock(id)

	sess, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.finish(ctx, sess, nil, service.EndDraw)
}

// ResolveTimeout ends the session with a loss for the player on turn. claim
// runs under the session lock; when it returns false the deadline is stale
// and nothing changes. A held lock yields ErrConcurrencyConflict. Errors
// after a successful claim leave the session locked.
func (m *CaroManager) ResolveTimeout(ctx context.Context, id int64, claim func() bool) (*service.CaroSession, bool, error) {
	if !m.locks.TryLock(id) {
		return nil, false, fmt.Errorf("%w: caro session %d", service.ErrConcurrencyConflict, id)
	}
	if !claim() {
		m.locks.Unlock(id)
		return nil, false, nil
	}

	sess, err := m.load(ctx, id)
	if err != nil {
		return nil, true, err
	}
	loser, ok := sess.State.PlayerBySymbol(sess.State.CurrentTurn)
	if !ok {
		return nil, true, fmt.Errorf("nobody holds %q in caro session %d", sess.State.CurrentTurn, id)
	}
	winner, _ := sess.State.Opponent(loser.ID)

	done, err := m.setWin(ctx, id, winner.ID, service.EndTimeout)
	if err != nil {
		return nil, true, err
	}
	m.locks.Unlock(id)
	return done, true, nil
}

// finish persists the terminal state, evicts the session and reports the
// result to the game lifecycle. The caller holds the session lock. A session whose terminal state could not be
// persisted stays cached and finished, so it rejects further moves.
func (m *CaroManager) finish(ctx context.Context, sess *service.CaroSession, winner *int64, reason service.EndReason) (*service.CaroSession, error) {
	m.mu.Lock()
	if sess.Finished {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: caro session %d", service.ErrSessionFinished, sess.ID)
	}
	sess.Finished = true
	sess.Winner = winner
	sess.EndReason = reason
	m.mu.Unlock()

	m.clock.Cancel(sess.ID)

	if err := m.store.SaveCaro(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist finished caro session %d: %w", sess.ID, err)
	}

	m.mu.Lock()
	delete(m.sessions, sess.ID)
	snapshot := sess.Clone()
	m.mu.Unlock()

	result := service.FinalResult{}
	if winner == nil {
		for _, p := range sess.State.Players {
			result.Drawers = append(result.Drawers, p.ID)
		}
	} else {
		result.Winners = []int64{*winner}
		for _, p := range sess.State.Players {
			if p.ID != *winner {
				result.Losers = append(result.Losers, p.ID)
			}
		}
	}
	if err := m.games.FinishGame(ctx, sess.GameID, result); err != nil {
		return nil, fmt.Errorf("finish game record %d: %w", sess.GameID, err)
	}

	log.Printf("[CARO] session %d finished: %s", sess.ID, reason)
	return snapshot, nil
}

// History returns one page of the player's Caro sessions, newest first.
func (m *CaroManager) History(ctx context.Context, playerID int64, page service.Page) (service.PageResult[*service.CaroSession], error) {
	ids, total, err := m.games.History(ctx, playerID, service.GameCaro, page)
	if err != nil {
		return service.PageResult[*service.CaroSession]{}, err
	}
	sessions, err := m.store.CarosByGames(ctx, ids)
	if err != nil {
		return service.PageResult[*service.CaroSession]{}, err
	}
	return service.NewPageResult(page, total, sessions), nil
}

// Count returns the number of cached sessions.
func (m *CaroManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cached reports whether the session is in the active cache.
func (m *CaroManager) Cached(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sessions[id]
	return ok
}
