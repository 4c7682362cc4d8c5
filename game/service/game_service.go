package service

import (
	"context"
	"database/sql"

	"github.com/wricardo/boardgames/game/board"
	"github.com/wricardo/boardgames/game/caro"
	"github.com/wricardo/boardgames/game/line98"
)

// Tx is the subset of *sql.Tx used by repositories that take part in a
// caller-owned transaction.
type Tx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Transactor runs fn inside a transaction, committing when fn returns nil.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// GameLifecycle maintains the generic game record and its participants.
type GameLifecycle interface {
	CreateGame(ctx context.Context, tx Tx, gameType GameType, mode GameMode, players []int64) (*Game, error)
	StartGame(ctx context.Context, gameID int64) error
	FinishGame(ctx context.Context, gameID int64, result FinalResult) error
	IsPlaying(ctx context.Context, playerID int64, gameType GameType) (bool, error)
	PlayingGame(ctx context.Context, playerID int64, gameType GameType) (int64, bool, error)
	History(ctx context.Context, playerID int64, gameType GameType, page Page) ([]int64, int, error)
}

// CaroRepository persists Caro sessions.
type CaroRepository interface {
	CreateCaro(ctx context.Context, tx Tx, s *CaroSession) error
	GetCaro(ctx context.Context, id int64) (*CaroSession, error)
	CaroByGame(ctx context.Context, gameID int64) (*CaroSession, error)
	SaveCaro(ctx context.Context, s *CaroSession) error
	CarosByGames(ctx context.Context, gameIDs []int64) ([]*CaroSession, error)
}

// Line98Repository persists Line98 sessions.
type Line98Repository interface {
	CreateLine98(ctx context.Context, tx Tx, s *Line98Session) error
	GetLine98(ctx context.Context, id int64) (*Line98Session, error)
	Line98ByGame(ctx context.Context, gameID int64) (*Line98Session, error)
	SaveLine98(ctx context.Context, s *Line98Session) error
	Line98sByGames(ctx context.Context, gameIDs []int64) ([]*Line98Session, error)
}

// Profiles stores the display name of players.
type Profiles interface {
	UpsertPlayer(ctx context.Context, playerID int64, nickname string) error
	Nickname(ctx context.Context, playerID int64) (string, error)
}

// TokenVerifier validates an access token.
type TokenVerifier interface {
	Verify(token string) (*Identity, error)
}

// Emitter delivers a named event to one connection.
type Emitter interface {
	Emit(connID string, event string, payload any) error
}

// CaroSupervisor owns the cached Caro sessions and their per-session locks.
type CaroSupervisor interface {
	Config() caro.Config
	Create(ctx context.Context, players [2]int64) (*CaroSession, error)
	Get(ctx context.Context, id int64) (*CaroSession, error)
	IsPlaying(ctx context.Context, playerID int64) (bool, error)
	PlayingSession(ctx context.Context, playerID int64) (int64, bool, error)
	Start(ctx context.Context, id int64) error
	MakeMove(ctx context.Context, id, playerID int64, row, col int) (*CaroMove, error)
	SetWin(ctx context.Context, id, winnerID int64, reason EndReason) (*CaroSession, error)
	SetDraw(ctx context.Context, id int64) (*CaroSession, error)
	ResolveTimeout(ctx context.Context, id int64, claim func() bool) (*CaroSession, bool, error)
	History(ctx context.Context, playerID int64, page Page) (PageResult[*CaroSession], error)
}

// Matchmaker pairs waiting players into Caro sessions.
type Matchmaker interface {
	Enqueue(ctx context.Context, playerID int64) (*CaroSession, error)
	Remove(playerID int64)
}

// Line98Supervisor owns the cached Line98 sessions.
type Line98Supervisor interface {
	Config() line98.Config
	Create(ctx context.Context, playerID int64) (*Line98Session, error)
	Get(ctx context.Context, id int64) (*Line98Session, error)
	Move(ctx context.Context, id, playerID int64, from, to board.Point) (*Line98Turn, error)
	Help(ctx context.Context, id, playerID int64) (line98.Hint, error)
	SetGameOver(ctx context.Context, id, playerID int64) (*Line98Session, error)
	CurrentMatch(playerID int64) (int64, bool)
	SetCurrentMatch(playerID, matchID int64)
	ForgetCurrentMatch(playerID int64)
	History(ctx context.Context, playerID int64, page Page) (PageResult[*Line98Session], error)
}
