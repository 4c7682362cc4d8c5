// Package line98 implements the rules of Line98, a single player puzzle in
// which coloured balls are moved along free paths to form lines.
//
// The line98 package implements:
//   - Rule configuration and the initial board
//   - Move validation with breadth-first path finding
//   - Line clearing through the moved ball and scoring
//   - Spawning of the announced next colours after a non-scoring move
//   - Cascade rescans after spawning
//   - Game over detection and move suggestions
//
// Engine methods mutate the State passed to them and return a MoveEvent that
// describes the change, so callers can persist the state and forward the
// event to the client without diffing boards.
//
// Usage:
//
//	eng := line98.NewEngine(cfg, line98.NewRandom())
//	st := eng.NewState()
//	ev, err := eng.Move(&st, board.Point{X: 0, Y: 0}, board.Point{X: 4, Y: 4})
//	if err != nil {
//		return err
//	}
//	if len(ev.Added) > 0 {
//		cascade := eng.CheckAfterAdd(&st)
//		...
//	}
package line98
