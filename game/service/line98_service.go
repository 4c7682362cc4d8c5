package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/wricardo/boardgames/game/directory"
	"github.com/wricardo/boardgames/game/line98"
)

// Line98Service serves the single player Line98 game over REST (play,
// history) and the push channel (join, move, help, cancel).
type Line98Service struct {
	lines    Line98Supervisor
	dir      *directory.Directory
	verifier TokenVerifier

	mu      sync.RWMutex
	emitter Emitter
}

// NewLine98Service wires the gateway.
func NewLine98Service(lines Line98Supervisor, dir *directory.Directory, verifier TokenVerifier) *Line98Service {
	return &Line98Service{
		lines:    lines,
		dir:      dir,
		verifier: verifier,
	}
}

// SetEmitter sets the push channel.
func (s *Line98Service) SetEmitter(e Emitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitter = e
}

// Config returns the rules new games are created with.
func (s *Line98Service) Config() line98.Config {
	return s.lines.Config()
}

// Play creates a game for the player, or returns the one already running,
// and remembers it as the match the player may join.
func (s *Line98Service) Play(ctx context.Context, playerID int64) (*Line98Session, error) {
	sess, err := s.lines.Create(ctx, playerID)
	if err != nil {
		return nil, err
	}
	s.lines.SetCurrentMatch(playerID, sess.ID)
	return sess, nil
}

// Game returns an unfinished game owned by the player.
func (s *Line98Service) Game(ctx context.Context, playerID, id int64) (*Line98Session, error) {
	sess, err := s.lines.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.PlayerID != playerID {
		return nil, fmt.Errorf("%w: line98 session %d", ErrNotFound, id)
	}
	return sess, nil
}

// History returns the player's Line98 sessions.
func (s *Line98Service) History(ctx context.Context, playerID int64, page Page) (PageResult[*Line98Session], error) {
	return s.lines.History(ctx, playerID, page)
}

// Connect authenticates a new connection.
func (s *Line98Service) Connect(ctx context.Context, connID, token string) error {
	id, err := s.verifier.Verify(token)
	if err != nil {
		if errors.Is(err, ErrCredentialExpired) {
			s.emit(connID, EventTokenExpired, ErrorPayload{Message: err.Error()})
		} else {
			s.emit(connID, EventError, ErrorPayload{Message: err.Error()})
		}
		return err
	}

	s.dir.Bind(id.PlayerID, connID)
	s.emit(connID, EventConnected, ConnectedPayload{PlayerID: id.PlayerID})
	return nil
}

// Disconnect forgets the connection and the player's remembered match. The
// game itself stays open until it is cancelled or ends.
func (s *Line98Service) Disconnect(ctx context.Context, connID string) {
	playerID, ok := s.dir.RemoveConn(connID)
	if !ok {
		return
	}
	s.lines.ForgetCurrentMatch(playerID)
}

// Message dispatches a client event.
func (s *Line98Service) Message(ctx context.Context, connID, event string, data json.RawMessage) {
	playerID, err := s.dir.Player(connID)
	if err != nil {
		s.emit(connID, EventError, ErrorPayload{Message: err.Error()})
		return
	}

	switch event {
	case EventJoin:
		var req MatchPayload
		if err = decode(data, &req); err == nil {
			err = s.join(ctx, connID, playerID, req.MatchID)
		}
	case EventMove:
		var req Line98MovePayload
		if err = decode(data, &req); err == nil {
			err = s.move(ctx, connID, playerID, req)
		}
	case EventHelp:
		var req MatchPayload
		if err = decode(data, &req); err == nil {
			err = s.help(ctx, connID, playerID, req.MatchID)
		}
	case EventCancel:
		var req MatchPayload
		if err = decode(data, &req); err == nil {
			err = s.cancel(ctx, connID, playerID, req.MatchID)
		}
	default:
		err = fmt.Errorf("%w: unknown event %q", ErrValidation, event)
	}
	if err != nil {
		s.emit(connID, EventError, ErrorPayload{Message: err.Error()})
	}
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing payload", ErrValidation)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: malformed payload: %v", ErrValidation, err)
	}
	return nil
}

// join binds the connection to the match opened through Play.
func (s *Line98Service) join(ctx context.Context, connID string, playerID, matchID int64) error {
	current, ok := s.lines.CurrentMatch(playerID)
	if !ok || current != matchID {
		return fmt.Errorf("%w: match %d", ErrNotFound, matchID)
	}
	sess, err := s.Game(ctx, playerID, matchID)
	if err != nil {
		return err
	}
	if err := s.dir.SetMatch(playerID, matchID); err != nil {
		return err
	}

	s.emit(connID, EventState, Line98StatePayload{
		MatchID: matchID,
		Config:  sess.Config,
		State:   sess.State,
		Score:   sess.Score,
	})
	return nil
}

func (s *Line98Service) joined(playerID, matchID int64) error {
	active, ok := s.dir.ActiveMatch(playerID)
	if !ok || active != matchID {
		return fmt.Errorf("%w: join match %d first", ErrValidation, matchID)
	}
	return nil
}

func (s *Line98Service) move(ctx context.Context, connID string, playerID int64, req Line98MovePayload) error {
	if err := s.joined(playerID, req.MatchID); err != nil {
		return err
	}

	turn, err := s.lines.Move(ctx, req.MatchID, playerID, req.From, req.To)
	if err != nil {
		return err
	}

	s.emit(connID, EventMove, Line98MoveEventPayload{MatchID: req.MatchID, Move: turn.Move})
	if turn.Cascade != nil {
		s.emit(connID, EventMove, Line98MoveEventPayload{MatchID: req.MatchID, Move: *turn.Cascade})
	}

	if turn.GameOver {
		return s.cancel(ctx, connID, playerID, req.MatchID)
	}
	return nil
}

func (s *Line98Service) help(ctx context.Context, connID string, playerID, matchID int64) error {
	if err := s.joined(playerID, matchID); err != nil {
		return err
	}
	hint, err := s.lines.Help(ctx, matchID, playerID)
	if err != nil {
		return err
	}
	s.emit(connID, EventHelp, hint)
	return nil
}

// cancel ends the game and tells the client.
func (s *Line98Service) cancel(ctx context.Context, connID string, playerID, matchID int64) error {
	if err := s.joined(playerID, matchID); err != nil {
		return err
	}
	sess, err := s.lines.SetGameOver(ctx, matchID, playerID)
	if err != nil {
		return err
	}
	if err := s.dir.SetMatch(playerID, 0); err != nil {
		log.Printf("[LINE98] unbind match %d: %v", matchID, err)
	}
	log.Printf("[LINE98] match %d over for player %d with score %d", matchID, playerID, sess.Score)
	s.emit(connID, EventGameOver, MatchPayload{MatchID: matchID})
	return nil
}

func (s *Line98Service) emit(connID, event string, payload any) {
	s.mu.RLock()
	e := s.emitter
	s.mu.RUnlock()
	if e == nil {
		return
	}
	if err := e.Emit(connID, Line98Namespace+":"+event, payload); err != nil {
		log.Printf("[LINE98] emit %s to %s: %v", event, connID, err)
	}
}
