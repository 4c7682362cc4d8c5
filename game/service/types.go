package service

import (
	"time"

	"github.com/wricardo/boardgames/game/caro"
	"github.com/wricardo/boardgames/game/line98"
)

// GameType identifies the game family of a record.
type GameType string

const (
	GameCaro   GameType = "caro"
	GameLine98 GameType = "line98"
)

// GameMode is single or multi player.
type GameMode string

const (
	ModeSingle GameMode = "single"
	ModeMulti  GameMode = "multi"
)

// GameStatus is the lifecycle state of a generic game record.
type GameStatus string

const (
	StatusOngoing  GameStatus = "ongoing"
	StatusFinished GameStatus = "finished"
)

// ParticipantStatus tracks a player inside one game record.
type ParticipantStatus string

const (
	ParticipantWaiting  ParticipantStatus = "waiting"
	ParticipantPlaying  ParticipantStatus = "playing"
	ParticipantFinished ParticipantStatus = "finished"
)

// Result is a participant's outcome.
type Result string

const (
	ResultWin  Result = "win"
	ResultLose Result = "lose"
	ResultDraw Result = "draw"
)

// EndReason explains why a session finished.
type EndReason string

const (
	EndWin      EndReason = "win"
	EndDraw     EndReason = "draw"
	EndQuit     EndReason = "quit"
	EndTimeout  EndReason = "timeout"
	EndGameOver EndReason = "game_over"
)

// Identity is the verified subject of an access token.
type Identity struct {
	PlayerID  int64
	SessionID string
	Username  string
	ExpiresAt time.Time
}

// Game is the generic record shared by every game type.
type Game struct {
	ID        int64      `json:"id"`
	Type      GameType   `json:"type"`
	Mode      GameMode   `json:"mode"`
	Status    GameStatus `json:"status"`
	Players   []int64    `json:"players"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// FinalResult lists the outcome of each participant when a game ends.
type FinalResult struct {
	Winners []int64
	Losers  []int64
	Drawers []int64
}

// Page selects a 1-based page of history.
type Page struct {
	Page int
	Size int
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Size
}

// PageResult is one page of history entries.
type PageResult[T any] struct {
	Page       int `json:"page"`
	Size       int `json:"size"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
	Data       []T `json:"data"`
}

// NewPageResult computes the page count for total rows.
func NewPageResult[T any](p Page, total int, data []T) PageResult[T] {
	pages := 0
	if p.Size > 0 {
		pages = (total + p.Size - 1) / p.Size
	}
	if data == nil {
		data = []T{}
	}
	return PageResult[T]{Page: p.Page, Size: p.Size, Total: total, TotalPages: pages, Data: data}
}

// CaroPlayer binds a player to a symbol for the whole match.
type CaroPlayer struct {
	ID     int64       `json:"id"`
	Symbol caro.Symbol `json:"symbol"`
}

// CaroState is the mutable part of a Caro session.
type CaroState struct {
	Board       caro.Board   `json:"board"`
	CurrentTurn caro.Symbol  `json:"currentTurn"`
	Players     []CaroPlayer `json:"players"`
}

// Player returns the participant with the given id.
func (s CaroState) Player(id int64) (CaroPlayer, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return CaroPlayer{}, false
}

// PlayerBySymbol returns the participant holding symbol.
func (s CaroState) PlayerBySymbol(sym caro.Symbol) (CaroPlayer, bool) {
	for _, p := range s.Players {
		if p.Symbol == sym {
			return p, true
		}
	}
	return CaroPlayer{}, false
}

// Opponent returns the other participant.
func (s CaroState) Opponent(id int64) (CaroPlayer, bool) {
	if _, ok := s.Player(id); !ok {
		return CaroPlayer{}, false
	}
	for _, p := range s.Players {
		if p.ID != id {
			return p, true
		}
	}
	return CaroPlayer{}, false
}

// CaroSession is a two player Caro match.
type CaroSession struct {
	ID          int64       `json:"id"`
	GameID      int64       `json:"gameId"`
	Config      caro.Config `json:"config"`
	State       CaroState   `json:"state"`
	FirstPlayer int64       `json:"firstPlayer"`
	Winner      *int64      `json:"winner,omitempty"`
	EndReason   EndReason   `json:"endReason,omitempty"`
	Finished    bool        `json:"isFinished"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Clone returns a deep copy safe to read after the session lock is released.
func (s *CaroSession) Clone() *CaroSession {
	c := *s
	c.Config.PlayerSymbols = append([]caro.Symbol(nil), s.Config.PlayerSymbols...)
	c.State.Board = s.State.Board.Clone()
	c.State.Players = append([]CaroPlayer(nil), s.State.Players...)
	if s.Winner != nil {
		w := *s.Winner
		c.Winner = &w
	}
	return &c
}

// Line98Session is a single player Line98 game.
type Line98Session struct {
	ID        int64         `json:"id"`
	GameID    int64         `json:"gameId"`
	PlayerID  int64         `json:"playerId"`
	Config    line98.Config `json:"config"`
	State     line98.State  `json:"state"`
	Score     int           `json:"score"`
	Finished  bool          `json:"isFinished"`
	EndReason EndReason     `json:"endReason,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Clone returns a deep copy of the session.
func (s *Line98Session) Clone() *Line98Session {
	c := *s
	c.State = s.State.Clone()
	return &c
}

// Line98Turn is the outcome of one Line98 move: the move itself and, when
// balls were spawned, the cascade rescan that followed.
type Line98Turn struct {
	Move     line98.MoveEvent
	Cascade  *line98.MoveEvent
	GameOver bool
	Session  *Line98Session
}

// CaroMove is the outcome of an accepted Caro move. Outcome is empty while
// the game continues, EndWin when the mover completed a line and EndDraw
// when the board filled up.
type CaroMove struct {
	Session *CaroSession
	Player  CaroPlayer
	Row     int
	Col     int
	Outcome EndReason
}
