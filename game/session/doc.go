// Package session supervises active Caro and Line98 sessions.
//
// CaroManager and Line98Manager keep every active session in an in-memory
// cache that is authoritative while the game runs. Sessions are written
// through to the store after each accepted move; a failed write of an
// in-progress session is logged and play continues. Terminal states are
// always persisted before the session is evicted.
//
// Concurrency:
//
// Each session has a non-blocking, non-reentrant lock. A mutation that finds
// the lock held is rejected with service.ErrConcurrencyConflict rather than
// queued. The Caro turn deadline races for the same lock, so a move and a
// timeout can never both resolve the same turn. SetWin, SetDraw and
// ResolveTimeout take the lock themselves.
//
// Usage:
//
//	store, _ := sqlite.Open("boardgames.db")
//	caros := session.NewCaroManager(store, store, turnclock.New(), caro.DefaultConfig())
//
//	sess, err := caros.Create(ctx, [2]int64{7, 9})
//	if err != nil {
//		log.Fatal(err)
//	}
//	move, err := caros.MakeMove(ctx, sess.ID, 7, 7, 7)
package session
