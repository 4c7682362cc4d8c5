package caro

import (
	"github.com/wricardo/boardgames/game/board"
)

// CheckWin reports whether the mark at (row, col) completes a run of at
// least cfg.WinCondition identical symbols along any of the four axes.
// The examined cell must hold a mark.
func CheckWin(b Board, row, col int, cfg Config) (bool, error) {
	if !b.InBounds(row, col) {
		return false, ErrOutOfBounds
	}

	symbol := b[row][col]
	if symbol == Empty {
		return false, ErrEmptyCell
	}

	same := func(p board.Point) bool {
		return b[p.Y][p.X] == symbol
	}

	pivot := board.Point{X: col, Y: row}
	for _, axis := range board.Axes {
		if board.RunLength(pivot, axis, b.Size(), same) >= cfg.WinCondition {
			return true, nil
		}
	}

	return false, nil
}

// CheckDraw reports whether the board has no empty cells left.
func CheckDraw(b Board, cfg Config) bool {
	size := cfg.Size
	if size > b.Size() {
		size = b.Size()
	}
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			if b[row][col] == Empty {
				return false
			}
		}
	}
	return true
}
