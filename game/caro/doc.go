// Package caro implements the rules of Caro, a two player five-in-a-row game.
//
// The caro package implements:
//   - Rule configuration (board size, win length, symbols, turn time limit)
//   - Board construction and cell access
//   - Win detection through the last placed mark
//   - Draw detection on a full board
//
// The rules are pure functions over a Board. Session bookkeeping (turn order,
// timers, persistence) lives in the session and service packages. Callers must
// evaluate CheckWin before CheckDraw, since a move that fills the last cell can
// also complete a line.
package caro
