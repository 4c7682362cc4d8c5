package caro

import (
	"errors"
	"fmt"
	"time"

	"github.com/wricardo/boardgames/game/board"
)

var (
	ErrEmptyCell     = errors.New("cell is empty")
	ErrOutOfBounds   = errors.New("cell is out of bounds")
	ErrInvalidConfig = errors.New("invalid caro configuration")
)

// Symbol is the mark a player places on the board.
type Symbol string

const (
	Empty Symbol = ""
	X     Symbol = "X"
	O     Symbol = "O"
)

// Opponent returns the other player's symbol.
func (s Symbol) Opponent() Symbol {
	switch s {
	case X:
		return O
	case O:
		return X
	}
	return Empty
}

// Config holds the per-match rule constants. A snapshot is stored with every
// session so later changes to the defaults never affect running games.
type Config struct {
	Players       int      `json:"players"`
	Size          int      `json:"size"`
	WinCondition  int      `json:"winCondition"`
	PlayerSymbols []Symbol `json:"playerSymbols"`
	TimeLimit     int      `json:"timeLimit"` // seconds per turn
}

// DefaultConfig returns the standard 15x15, five-in-a-row rules.
func DefaultConfig() Config {
	return Config{
		Players:       2,
		Size:          15,
		WinCondition:  5,
		PlayerSymbols: []Symbol{X, O},
		TimeLimit:     30,
	}
}

// TurnDuration returns the time limit as a duration.
func (c Config) TurnDuration() time.Duration {
	return time.Duration(c.TimeLimit) * time.Second
}

// Validate checks that the configuration describes a playable game.
func (c Config) Validate() error {
	if c.Players != 2 {
		return fmt.Errorf("%w: players must be 2, got %d", ErrInvalidConfig, c.Players)
	}
	if c.Size < 3 {
		return fmt.Errorf("%w: size must be at least 3, got %d", ErrInvalidConfig, c.Size)
	}
	if c.WinCondition < 3 || c.WinCondition > c.Size {
		return fmt.Errorf("%w: winCondition must be between 3 and size, got %d", ErrInvalidConfig, c.WinCondition)
	}
	if len(c.PlayerSymbols) != 2 || c.PlayerSymbols[0] == c.PlayerSymbols[1] ||
		c.PlayerSymbols[0] == Empty || c.PlayerSymbols[1] == Empty {
		return fmt.Errorf("%w: need two distinct player symbols", ErrInvalidConfig)
	}
	if c.TimeLimit <= 0 {
		return fmt.Errorf("%w: timeLimit must be positive", ErrInvalidConfig)
	}
	return nil
}

// Board is a square grid of symbols indexed as [row][col].
type Board [][]Symbol

// NewBoard returns an empty size x size board.
func NewBoard(size int) Board {
	b := make(Board, size)
	for i := range b {
		b[i] = make([]Symbol, size)
	}
	return b
}

// Size returns the board dimension.
func (b Board) Size() int {
	return len(b)
}

// InBounds reports whether (row, col) is on the board.
func (b Board) InBounds(row, col int) bool {
	return board.InBounds(board.Point{X: col, Y: row}, len(b))
}

// Clone returns a deep copy of the board.
func (b Board) Clone() Board {
	c := make(Board, len(b))
	for i := range b {
		c[i] = append([]Symbol(nil), b[i]...)
	}
	return c
}

// Full reports whether no empty cell remains.
func (b Board) Full() bool {
	for _, row := range b {
		for _, cell := range row {
			if cell == Empty {
				return false
			}
		}
	}
	return true
}
