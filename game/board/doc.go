// Package board provides grid helpers shared by the Caro and Line98 rules.
//
// The board package implements:
//   - Point coordinates and the four line axes (horizontal, vertical, both diagonals)
//   - Bounds checks for square grids
//   - Run collection along an axis through a pivot cell
//   - Breadth-first reachability over 4-connected empty cells
//
// Grids are square and addressed by Point{X, Y}. Callers describe cell
// contents through predicates, so the helpers work for symbol boards and
// ball boards alike.
package board
