package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/wricardo/boardgames/game/caro"
	"github.com/wricardo/boardgames/game/directory"
	"github.com/wricardo/boardgames/game/turnclock"
)

// CaroService is the Caro gateway: it authenticates connections, queues
// players, relays moves to the supervisor and pushes the results.
type CaroService struct {
	caros    CaroSupervisor
	queue    Matchmaker
	dir      *directory.Directory
	clock    *turnclock.Clock
	verifier TokenVerifier
	profiles Profiles
	buffer   time.Duration

	mu      sync.RWMutex
	emitter Emitter
}

// NewCaroService wires the gateway. buffer is added to every turn limit to
// absorb network latency and is hidden from the remaining time sent to
// clients.
func NewCaroService(caros CaroSupervisor, queue Matchmaker, dir *directory.Directory, clock *turnclock.Clock,
	verifier TokenVerifier, profiles Profiles, buffer time.Duration) *CaroService {
	return &CaroService{
		caros:    caros,
		queue:    queue,
		dir:      dir,
		clock:    clock,
		verifier: verifier,
		profiles: profiles,
		buffer:   buffer,
	}
}

// SetEmitter sets the push channel. It must be called before the first
// connection.
func (s *CaroService) SetEmitter(e Emitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitter = e
}

// Config returns the rules new Caro games are created with.
func (s *CaroService) Config() caro.Config {
	return s.caros.Config()
}

// History returns the player's past and current Caro sessions.
func (s *CaroService) History(ctx context.Context, playerID int64, page Page) (PageResult[*CaroSession], error) {
	return s.caros.History(ctx, playerID, page)
}

// Connect authenticates a new connection. A player with a running game is
// told to continue it; anyone else joins the matchmaking queue.
func (s *CaroService) Connect(ctx context.Context, connID, token string) error {
	id, err := s.verifier.Verify(token)
	if err != nil {
		if errors.Is(err, ErrCredentialExpired) {
			s.emit(connID, EventTokenExpired, ErrorPayload{Message: err.Error()})
		} else {
			s.emit(connID, EventError, ErrorPayload{Message: err.Error()})
		}
		return err
	}
	playerID := id.PlayerID

	if id.Username != "" {
		if err := s.profiles.UpsertPlayer(ctx, playerID, id.Username); err != nil {
			log.Printf("Warning: Failed to record nickname for player %d: %v", playerID, err)
		}
	}
	s.dir.Bind(playerID, connID)
	log.Printf("[CARO] player %d connected on %s", playerID, connID)

	matchID, ok, err := s.caros.PlayingSession(ctx, playerID)
	if err != nil {
		s.emit(connID, EventError, ErrorPayload{Message: err.Error()})
		return nil
	}
	if ok {
		if err := s.dir.SetMatch(playerID, matchID); err != nil {
			log.Printf("[CARO] bind match %d to player %d: %v", matchID, playerID, err)
		}
		s.emit(connID, EventContinue, MatchPayload{MatchID: matchID})
		return nil
	}

	playing, err := s.caros.IsPlaying(ctx, playerID)
	if err != nil {
		s.emit(connID, EventError, ErrorPayload{Message: err.Error()})
		return nil
	}
	if playing {
		s.emit(connID, EventError, ErrorPayload{Message: ErrAlreadyPlaying.Error()})
		return nil
	}

	// Pairs, including the caller's, are announced by OnPaired.
	if _, err := s.queue.Enqueue(ctx, playerID); err != nil {
		s.emit(connID, EventError, ErrorPayload{Message: err.Error()})
	}
	return nil
}

// OnPaired announces a new session to both players, starts the game and
// arms the first turn.
func (s *CaroService) OnPaired(ctx context.Context, sess *CaroSession) {
	for _, p := range sess.State.Players {
		if err := s.dir.SetMatch(p.ID, sess.ID); err != nil {
			log.Printf("[CARO] player %d left before match %d was announced", p.ID, sess.ID)
			continue
		}
		s.push(p.ID, EventFound, MatchPayload{MatchID: sess.ID})
	}

	if err := s.caros.Start(ctx, sess.ID); err != nil {
		log.Printf("[CARO] start session %d: %v", sess.ID, err)
	}
	s.armTurn(sess.ID, sess.Config)
}

// Disconnect drops the connection from the queue and directory. A running
// game keeps its clock, so an absent player eventually loses on time.
func (s *CaroService) Disconnect(ctx context.Context, connID string) {
	playerID, ok := s.dir.RemoveConn(connID)
	if !ok {
		return
	}
	s.queue.Remove(playerID)
	log.Printf("[CARO] player %d disconnected", playerID)
}

// Message dispatches a client event.
func (s *CaroService) Message(ctx context.Context, connID, event string, data json.RawMessage) {
	playerID, err := s.dir.Player(connID)
	if err != nil {
		s.emit(connID, EventError, ErrorPayload{Message: err.Error()})
		return
	}

	switch event {
	case EventJoin:
		err = s.join(ctx, playerID)
	case EventMove:
		var req CaroMovePayload
		if err = json.Unmarshal(data, &req); err != nil {
			err = fmt.Errorf("%w: malformed move: %v", ErrValidation, err)
			break
		}
		err = s.move(ctx, playerID, req)
	default:
		err = fmt.Errorf("%w: unknown event %q", ErrValidation, event)
	}
	if err != nil {
		s.emit(connID, EventError, ErrorPayload{Message: err.Error()})
	}
}

func (s *CaroService) activeMatch(playerID int64) (int64, error) {
	matchID, ok := s.dir.ActiveMatch(playerID)
	if !ok {
		return 0, fmt.Errorf("%w: no active match", ErrNotFound)
	}
	return matchID, nil
}

// join sends the opponent's name and the current board.
func (s *CaroService) join(ctx context.Context, playerID int64) error {
	matchID, err := s.activeMatch(playerID)
	if err != nil {
		return err
	}
	sess, err := s.caros.Get(ctx, matchID)
	if err != nil {
		return err
	}

	opponent, ok := sess.State.Opponent(playerID)
	if !ok {
		return fmt.Errorf("%w: player %d is not in match %d", ErrNotFound, playerID, matchID)
	}
	name, err := s.profiles.Nickname(ctx, opponent.ID)
	if err != nil {
		return fmt.Errorf("opponent of match %d: %w", matchID, err)
	}
	s.push(playerID, EventOpponent, OpponentPayload{MatchID: matchID, Name: name})

	// A session resumed after a restart has no deadline yet.
	if _, armed := s.clock.ExpiresAt(matchID); !armed {
		s.armTurn(matchID, sess.Config)
	}
	s.pushState(sess, playerID)
	return nil
}

func (s *CaroService) move(ctx context.Context, playerID int64, req CaroMovePayload) error {
	matchID, err := s.activeMatch(playerID)
	if err != nil {
		return err
	}
	if req.MatchID != matchID {
		return fmt.Errorf("%w: match %d is not your active match", ErrValidation, req.MatchID)
	}

	res, err := s.caros.MakeMove(ctx, matchID, playerID, req.Row, req.Col)
	if err != nil {
		return err
	}

	sess := res.Session
	result := CaroResultPayload{MatchID: matchID, Board: sess.State.Board}
	switch res.Outcome {
	case EndWin:
		opponent, _ := sess.State.Opponent(playerID)
		s.push(playerID, EventWin, result)
		s.push(opponent.ID, EventLose, result)
	case EndDraw:
		for _, p := range sess.State.Players {
			s.push(p.ID, EventDraw, result)
		}
	default:
		s.armTurn(matchID, sess.Config)
		for _, p := range sess.State.Players {
			s.pushState(sess, p.ID)
		}
	}
	return nil
}

// armTurn starts the clock for the player on turn.
func (s *CaroService) armTurn(matchID int64, cfg caro.Config) {
	s.clock.Arm(matchID, cfg.TurnDuration()+s.buffer, s.onTurnExpired)
}

// expiryRetry is how long an expired deadline waits for an in-flight move
// before checking again.
const expiryRetry = 100 * time.Millisecond

// onTurnExpired ends the match in favour of the player not on turn. A move
// holding the session lock wins the race: the expiry is retried shortly and
// becomes a no-op once an accepted move has cancelled or replaced this
// generation. A rejected move leaves the generation current, so the retry
// resolves the timeout.
func (s *CaroService) onTurnExpired(matchID int64, gen uint64) {
	claim := func() bool { return s.clock.Claim(matchID, gen) }
	done, resolved, err := s.caros.ResolveTimeout(context.Background(), matchID, claim)
	switch {
	case errors.Is(err, ErrConcurrencyConflict):
		s.clock.Retry(matchID, gen, expiryRetry, s.onTurnExpired)
		return
	case err != nil:
		log.Printf("[CARO] timeout for match %d: %v", matchID, err)
		return
	case !resolved:
		return
	}

	winner := *done.Winner
	loser, _ := done.State.Opponent(winner)
	log.Printf("[CARO] player %d ran out of time in match %d", loser.ID, matchID)

	result := CaroResultPayload{MatchID: matchID, Board: done.State.Board}
	s.push(winner, EventWin, result)
	s.push(loser.ID, EventLose, result)
}

func (s *CaroService) pushState(sess *CaroSession, playerID int64) {
	me, ok := sess.State.Player(playerID)
	if !ok {
		return
	}
	remaining, ok := s.clock.Remaining(sess.ID, s.buffer)
	if !ok {
		remaining = sess.Config.TurnDuration()
	}
	s.push(playerID, EventState, CaroStatePayload{
		MatchID:         sess.ID,
		Board:           sess.State.Board,
		Turn:            sess.State.CurrentTurn,
		YourSymbol:      me.Symbol,
		TimeRemainingMs: remaining.Milliseconds(),
		Size:            sess.Config.Size,
		TimeLimitMs:     sess.Config.TurnDuration().Milliseconds(),
	})
}

// push sends an event to a player's current connection. Offline players
// are skipped.
func (s *CaroService) push(playerID int64, event string, payload any) {
	connID, err := s.dir.Address(playerID)
	if err != nil {
		return
	}
	s.emit(connID, event, payload)
}

func (s *CaroService) emit(connID, event string, payload any) {
	s.mu.RLock()
	e := s.emitter
	s.mu.RUnlock()
	if e == nil {
		return
	}
	if err := e.Emit(connID, CaroNamespace+":"+event, payload); err != nil {
		log.Printf("[CARO] emit %s to %s: %v", event, connID, err)
	}
}
