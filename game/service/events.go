package service

import (
	"github.com/wricardo/boardgames/game/board"
	"github.com/wricardo/boardgames/game/caro"
	"github.com/wricardo/boardgames/game/line98"
)

// Event namespaces. Every server event is sent as namespace + ":" + name.
const (
	CaroNamespace   = "caro"
	Line98Namespace = "line98"
)

// Client events.
const (
	EventJoin   = "join"
	EventMove   = "move"
	EventHelp   = "help"
	EventCancel = "cancel"
)

// Server events.
const (
	EventConnected    = "connected"
	EventFound        = "found"
	EventContinue     = "continue"
	EventOpponent     = "opponent"
	EventState        = "state"
	EventWin          = "win"
	EventLose         = "lose"
	EventDraw         = "draw"
	EventGameOver     = "game.over"
	EventError        = "error"
	EventTokenExpired = "token.expired"
)

// MatchPayload names a match.
type MatchPayload struct {
	MatchID int64 `json:"matchId"`
}

// ErrorPayload carries a message for the client.
type ErrorPayload struct {
	Message string `json:"message"`
}

// OpponentPayload introduces the other Caro player.
type OpponentPayload struct {
	MatchID int64  `json:"matchId"`
	Name    string `json:"name"`
}

// CaroStatePayload is the Caro board as one player sees it.
type CaroStatePayload struct {
	MatchID         int64       `json:"matchId"`
	Board           caro.Board  `json:"board"`
	Turn            caro.Symbol `json:"turn"`
	YourSymbol      caro.Symbol `json:"yourSymbol"`
	TimeRemainingMs int64       `json:"timeRemainingMs"`
	Size            int         `json:"size"`
	TimeLimitMs     int64       `json:"timeLimitMs"`
}

// CaroMovePayload is a Caro move request.
type CaroMovePayload struct {
	MatchID int64 `json:"matchId"`
	Row     int   `json:"row"`
	Col     int   `json:"col"`
}

// CaroResultPayload is sent with win, lose and draw.
type CaroResultPayload struct {
	MatchID int64      `json:"matchId"`
	Board   caro.Board `json:"board"`
}

// Line98StatePayload is the Line98 board sent on join.
type Line98StatePayload struct {
	MatchID int64         `json:"matchId"`
	Config  line98.Config `json:"config"`
	State   line98.State  `json:"state"`
	Score   int           `json:"score"`
}

// Line98MovePayload is a Line98 move request.
type Line98MovePayload struct {
	MatchID int64       `json:"matchId"`
	From    board.Point `json:"from"`
	To      board.Point `json:"to"`
}

// Line98MoveEventPayload reports one move or cascade.
type Line98MoveEventPayload struct {
	MatchID int64            `json:"matchId"`
	Move    line98.MoveEvent `json:"move"`
}

// ConnectedPayload acknowledges a Line98 connection.
type ConnectedPayload struct {
	PlayerID int64 `json:"playerId"`
}
