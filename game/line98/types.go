package line98

import (
	"errors"
	"fmt"

	"github.com/wricardo/boardgames/game/board"
)

var (
	ErrInvalidConfig = errors.New("invalid line98 configuration")
	ErrGameOver      = errors.New("game is over")
	ErrOutOfBounds   = errors.New("position is out of bounds")
	ErrNoBall        = errors.New("no ball at source")
	ErrOccupied      = errors.New("destination is occupied")
	ErrSamePosition  = errors.New("source and destination are the same")
	ErrNoPath        = errors.New("no free path to destination")
	ErrHelpDisabled  = errors.New("help is disabled")
	ErrHelpExhausted = errors.New("no help remaining")
	ErrNoMovesLeft   = errors.New("no legal moves")
)

// Config holds the per-game rule constants.
type Config struct {
	Size          int  `json:"size"`
	Colors        int  `json:"colors"`
	InitialBalls  int  `json:"initialBalls"`
	PerTurnBalls  int  `json:"perTurnBalls"`
	MinLineLength int  `json:"minLineLength"`
	AllowHelp     bool `json:"allowHelp"`
	MaxHelp       int  `json:"maxHelp"`
	PointFactor   int  `json:"pointFactor"`
}

// DefaultConfig returns the classic 9x9, five colour rules.
func DefaultConfig() Config {
	return Config{
		Size:          9,
		Colors:        5,
		InitialBalls:  5,
		PerTurnBalls:  3,
		MinLineLength: 5,
		AllowHelp:     true,
		MaxHelp:       3,
		PointFactor:   10,
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	switch {
	case c.Size < 3:
		return fmt.Errorf("%w: size must be at least 3", ErrInvalidConfig)
	case c.Colors < 1:
		return fmt.Errorf("%w: colors must be positive", ErrInvalidConfig)
	case c.InitialBalls < 1 || c.InitialBalls >= c.Size*c.Size:
		return fmt.Errorf("%w: initialBalls must be between 1 and size*size-1", ErrInvalidConfig)
	case c.PerTurnBalls < 1:
		return fmt.Errorf("%w: perTurnBalls must be positive", ErrInvalidConfig)
	case c.MinLineLength < 2 || c.MinLineLength > c.Size:
		return fmt.Errorf("%w: minLineLength must be between 2 and size", ErrInvalidConfig)
	case c.MaxHelp < 0:
		return fmt.Errorf("%w: maxHelp must not be negative", ErrInvalidConfig)
	case c.PointFactor < 0:
		return fmt.Errorf("%w: pointFactor must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Ball is a coloured ball on the board. Colours start at 1.
type Ball struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Color int `json:"color"`
}

// Point returns the ball position.
func (b Ball) Point() board.Point {
	return board.Point{X: b.X, Y: b.Y}
}

// State is the persisted board of a Line98 game.
type State struct {
	Balls         []Ball `json:"balls"`
	NextColors    []int  `json:"nextColors"`
	HelpRemaining int    `json:"helpRemaining"`
	GameOver      bool   `json:"gameOver"`
}

// Clone returns a deep copy of the state.
func (s State) Clone() State {
	c := s
	c.Balls = append([]Ball(nil), s.Balls...)
	c.NextColors = append([]int(nil), s.NextColors...)
	return c
}

// MoveEvent describes the effect of one move or one cascade rescan.
type MoveEvent struct {
	MoveFrom   *board.Point `json:"moveFrom,omitempty"`
	MoveTo     *board.Point `json:"moveTo,omitempty"`
	Removed    []Ball       `json:"removed,omitempty"`
	Added      []Ball       `json:"added,omitempty"`
	NextColors []int        `json:"nextColors,omitempty"`
	Points     int          `json:"points"`
}

// Hint is a suggested move.
type Hint struct {
	From board.Point `json:"from"`
	To   board.Point `json:"to"`
}
