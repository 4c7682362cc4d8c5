package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/boardgames/game/caro"
	"github.com/wricardo/boardgames/game/service"
	"github.com/wricardo/boardgames/game/turnclock"
	"github.com/wricardo/boardgames/storage/sqlite"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// newCaroManager returns a manager where the first listed player always
// opens with X.
func newCaroManager(t *testing.T, cfg caro.Config) (*CaroManager, *sqlite.Store) {
	t.Helper()
	store := openStore(t)
	m := NewCaroManager(store, store, turnclock.New(), cfg)
	m.firstIsA = func() bool { return true }
	return m, store
}

func smallConfig() caro.Config {
	cfg := caro.DefaultConfig()
	cfg.Size = 3
	cfg.WinCondition = 3
	return cfg
}

func TestCaroManager_Create(t *testing.T) {
	ctx := context.Background()
	m, store := newCaroManager(t, caro.DefaultConfig())

	sess, err := m.Create(ctx, [2]int64{1, 2})
	require.NoError(t, err)
	assert.NotZero(t, sess.ID)
	assert.NotZero(t, sess.GameID)
	assert.Equal(t, int64(1), sess.FirstPlayer)
	assert.Equal(t, caro.X, sess.State.CurrentTurn)

	p1, _ := sess.State.Player(1)
	p2, _ := sess.State.Player(2)
	assert.Equal(t, caro.X, p1.Symbol)
	assert.Equal(t, caro.O, p2.Symbol)
	assert.True(t, m.Cached(sess.ID))

	stored, err := store.GetCaro(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.GameID, stored.GameID)

	playing, err := m.IsPlaying(ctx, 1)
	require.NoError(t, err)
	assert.True(t, playing)

	id, ok, err := m.PlayingSession(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, sess.ID, id)

	t.Run("rejects a player already in a game", func(t *testing.T) {
		_, err := m.Create(ctx, [2]int64{1, 3})
		assert.ErrorIs(t, err, service.ErrAlreadyPlaying)
	})

	t.Run("rejects pairing a player with themselves", func(t *testing.T) {
		_, err := m.Create(ctx, [2]int64{5, 5})
		assert.ErrorIs(t, err, service.ErrValidation)
	})
}

func TestCaroManager_CreateSwapsFirstPlayer(t *testing.T) {
	ctx := context.Background()
	m, _ := newCaroManager(t, caro.DefaultConfig())
	m.firstIsA = func() bool { return false }

	sess, err := m.Create(ctx, [2]int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), sess.FirstPlayer)

	p2, _ := sess.State.Player(2)
	assert.Equal(t, caro.X, p2.Symbol)
}

func TestCaroManager_MakeMoveValidation(t *testing.T) {
	ctx := context.Background()
	m, _ := newCaroManager(t, caro.DefaultConfig())
	sess, err := m.Create(ctx, [2]int64{1, 2})
	require.NoError(t, err)

	tests := []struct {
		name     string
		player   int64
		row, col int
		want     error
	}{
		{"not a participant", 3, 0, 0, service.ErrIllegalMove},
		{"not your turn", 2, 0, 0, service.ErrIllegalMove},
		{"out of bounds", 1, 15, 0, service.ErrValidation},
		{"negative cell", 1, 0, -1, service.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.MakeMove(ctx, sess.ID, tt.player, tt.row, tt.col)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err = m.MakeMove(ctx, sess.ID, 1, 7, 7)
	require.NoError(t, err)

	t.Run("occupied cell", func(t *testing.T) {
		_, err := m.MakeMove(ctx, sess.ID, 2, 7, 7)
		assert.ErrorIs(t, err, service.ErrIllegalMove)
	})

	t.Run("locked session", func(t *testing.T) {
		require.True(t, m.TryLock(sess.ID))
		defer m.Unlock(sess.ID)

		_, err := m.MakeMove(ctx, sess.ID, 2, 0, 0)
		assert.ErrorIs(t, err, service.ErrConcurrencyConflict)
	})

	t.Run("validation does not mutate", func(t *testing.T) {
		got, err := m.Get(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, caro.O, got.State.CurrentTurn)
		assert.Equal(t, caro.Empty, got.State.Board[0][0])
	})
}

func TestCaroManager_MakeMoveAdvancesTurnAndPersists(t *testing.T) {
	ctx := context.Background()
	m, store := newCaroManager(t, caro.DefaultConfig())
	sess, err := m.Create(ctx, [2]int64{1, 2})
	require.NoError(t, err)

	move, err := m.MakeMove(ctx, sess.ID, 1, 3, 4)
	require.NoError(t, err)
	assert.Empty(t, move.Outcome)
	assert.Equal(t, caro.X, move.Session.State.Board[3][4])
	assert.Equal(t, caro.O, move.Session.State.CurrentTurn)

	stored, err := store.GetCaro(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, caro.X, stored.State.Board[3][4])
	assert.Equal(t, caro.O, stored.State.CurrentTurn)

	// Snapshots are detached from the cached session.
	move.Session.State.Board[0][0] = caro.O
	got, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, caro.Empty, got.State.Board[0][0])
}

func TestCaroManager_MakeMoveCancelsTurnDeadline(t *testing.T) {
	ctx := context.Background()
	m, _ := newCaroManager(t, caro.DefaultConfig())
	sess, err := m.Create(ctx, [2]int64{1, 2})
	require.NoError(t, err)

	gen := m.clock.Arm(sess.ID, time.Hour, func(int64, uint64) {})
	_, err = m.MakeMove(ctx, sess.ID, 1, 0, 0)
	require.NoError(t, err)

	assert.False(t, m.clock.Claim(sess.ID, gen))
	assert.Zero(t, m.clock.Pending())
}

func TestCaroManager_Win(t *testing.T) {
	ctx := context.Background()
	m, store := newCaroManager(t, smallConfig())
	sess, err := m.Create(ctx, [2]int64{1, 2})
	require.NoError(t, err)

	moves := []struct {
		player   int64
		row, col int
	}{
		{1, 0, 0}, {2, 1, 0}, {1, 0, 1}, {2, 1, 1},
	}
	for _, mv := range moves {
		_, err := m.MakeMove(ctx, sess.ID, mv.player, mv.row, mv.col)
		require.NoError(t, err)
	}

	move, err := m.MakeMove(ctx, sess.ID, 1, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, service.EndWin, move.Outcome)
	assert.True(t, move.Session.Finished)
	require.NotNil(t, move.Session.Winner)
	assert.Equal(t, int64(1), *move.Session.Winner)
	assert.False(t, m.Cached(sess.ID))

	_, err = m.MakeMove(ctx, sess.ID, 2, 2, 2)
	assert.ErrorIs(t, err, service.ErrSessionFinished)

	stored, err := store.GetCaro(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, stored.Finished)
	assert.Equal(t, service.EndWin, stored.EndReason)

	status, result, err := store.Participant(ctx, sess.GameID, 1)
	require.NoError(t, err)
	assert.Equal(t, service.ParticipantFinished, status)
	assert.Equal(t, service.ResultWin, result)
	_, result, err = store.Participant(ctx, sess.GameID, 2)
	require.NoError(t, err)
	assert.Equal(t, service.ResultLose, result)

	playing, err := m.IsPlaying(ctx, 1)
	require.NoError(t, err)
	assert.False(t, playing)
}

func TestCaroManager_Draw(t *testing.T) {
	ctx := context.Background()
	m, store := newCaroManager(t, smallConfig())
	sess, err := m.Create(ctx, [2]int64{1, 2})
	require.NoError(t, err)

	// X O X
	// X O O
	// O X X
	moves := []struct {
		player   int64
		row, col int
	}{
		{1, 0, 0}, {2, 0, 1}, {1, 0, 2}, {2, 1, 1}, {1, 1, 0},
		{2, 1, 2}, {1, 2, 1}, {2, 2, 0},
	}
	for _, mv := range moves {
		move, err := m.MakeMove(ctx, sess.ID, mv.player, mv.row, mv.col)
		require.NoError(t, err)
		require.Empty(t, move.Outcome)
	}

	move, err := m.MakeMove(ctx, sess.ID, 1, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, service.EndDraw, move.Outcome)
	assert.Nil(t, move.Session.Winner)

	for _, p := range []int64{1, 2} {
		_, result, err := store.Participant(ctx, sess.GameID, p)
		require.NoError(t, err)
		assert.Equal(t, service.ResultDraw, result)
	}
}

func TestCaroManager_SetWinByTimeout(t *testing.T) {
	ctx := context.Background()
	m, store := newCaroManager(t, caro.DefaultConfig())
	sess, err := m.Create(ctx, [2]int64{1, 2})
	require.NoError(t, err)
	require.NoError(t, m.Start(ctx, sess.ID))

	require.True(t, m.TryLock(sess.ID))
	_, err = m.SetWin(ctx, sess.ID, 2, service.EndTimeout)
	assert.ErrorIs(t, err, service.ErrConcurrencyConflict, "a held lock is not released by SetWin")
	assert.True(t, m.locks.Locked(sess.ID))
	m.Unlock(sess.ID)

	done, err := m.SetWin(ctx, sess.ID, 2, service.EndTimeout)
	require.NoError(t, err)
	assert.Equal(t, service.EndTimeout, done.EndReason)
	assert.False(t, m.locks.Locked(sess.ID), "SetWin releases its own lock")

	_, err = m.SetWin(ctx, sess.ID, 2, service.EndTimeout)
	assert.ErrorIs(t, err, service.ErrSessionFinished)

	stored, err := store.GetCaro(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Winner)
	assert.Equal(t, int64(2), *stored.Winner)

	t.Run("winner must be a participant", func(t *testing.T) {
		other, err := m.Create(ctx, [2]int64{3, 4})
		require.NoError(t, err)
		_, err = m.SetWin(ctx, other.ID, 9, service.EndTimeout)
		assert.ErrorIs(t, err, service.ErrValidation)
	})
}

func TestCaroManager_SetDraw(t *testing.T) {
	ctx := context.Background()
	m, _ := newCaroManager(t, caro.DefaultConfig())
	sess, err := m.Create(ctx, [2]int64{1, 2})
	require.NoError(t, err)

	require.True(t, m.TryLock(sess.ID))
	_, err = m.SetDraw(ctx, sess.ID)
	assert.ErrorIs(t, err, service.ErrConcurrencyConflict)
	assert.True(t, m.locks.Locked(sess.ID), "the in-flight holder keeps its lock")
	got, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, got.Finished)
	m.Unlock(sess.ID)

	done, err := m.SetDraw(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, done.Finished)
	assert.Equal(t, service.EndDraw, done.EndReason)

	_, err = m.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, service.ErrSessionFinished)
}

func TestCaroManager_ResolveTimeout(t *testing.T) {
	ctx := context.Background()
	m, store := newCaroManager(t, caro.DefaultConfig())
	sess, err := m.Create(ctx, [2]int64{1, 2})
	require.NoError(t, err)
	require.NoError(t, m.Start(ctx, sess.ID))
	onTurn, _ := sess.State.PlayerBySymbol(sess.State.CurrentTurn)
	other, _ := sess.State.Opponent(onTurn.ID)

	t.Run("locked session", func(t *testing.T) {
		require.True(t, m.TryLock(sess.ID))
		defer m.Unlock(sess.ID)

		_, resolved, err := m.ResolveTimeout(ctx, sess.ID, func() bool { return true })
		assert.ErrorIs(t, err, service.ErrConcurrencyConflict)
		assert.False(t, resolved)
	})

	t.Run("stale claim changes nothing", func(t *testing.T) {
		_, resolved, err := m.ResolveTimeout(ctx, sess.ID, func() bool { return false })
		require.NoError(t, err)
		assert.False(t, resolved)
		assert.False(t, m.locks.Locked(sess.ID))
		got, err := m.Get(ctx, sess.ID)
		require.NoError(t, err)
		assert.False(t, got.Finished)
	})

	done, resolved, err := m.ResolveTimeout(ctx, sess.ID, func() bool { return true })
	require.NoError(t, err)
	require.True(t, resolved)
	require.NotNil(t, done.Winner)
	assert.Equal(t, other.ID, *done.Winner)
	assert.Equal(t, service.EndTimeout, done.EndReason)
	assert.False(t, m.locks.Locked(sess.ID))

	_, result, err := store.Participant(ctx, sess.GameID, onTurn.ID)
	require.NoError(t, err)
	assert.Equal(t, service.ResultLose, result)
}

func TestCaroManager_LoadsFromStoreOnMiss(t *testing.T) {
	ctx := context.Background()
	m, store := newCaroManager(t, caro.DefaultConfig())
	sess, err := m.Create(ctx, [2]int64{1, 2})
	require.NoError(t, err)
	_, err = m.MakeMove(ctx, sess.ID, 1, 5, 5)
	require.NoError(t, err)

	fresh := NewCaroManager(store, store, turnclock.New(), caro.DefaultConfig())
	got, err := fresh.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, caro.X, got.State.Board[5][5])
	assert.True(t, fresh.Cached(sess.ID))

	_, err = fresh.Get(ctx, 9999)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestCaroManager_ConcurrentMoves(t *testing.T) {
	ctx := context.Background()
	m, _ := newCaroManager(t, caro.DefaultConfig())
	sess, err := m.Create(ctx, [2]int64{1, 2})
	require.NoError(t, err)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		late      int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(col int) {
			defer wg.Done()
			<-start
			_, err := m.MakeMove(ctx, sess.ID, 1, 0, col)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, service.ErrConcurrencyConflict):
				conflicts++
			case errors.Is(err, service.ErrIllegalMove):
				// Arrived after the winner released the lock; X is no longer on turn.
				late++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts+late)

	got, err := m.Get(ctx, sess.ID)
	require.NoError(t, err)
	marks := 0
	for _, row := range got.State.Board {
		for _, cell := range row {
			if cell != caro.Empty {
				marks++
			}
		}
	}
	assert.Equal(t, 1, marks)

	t.Run("move during an in-flight move conflicts", func(t *testing.T) {
		before, err := m.Get(ctx, sess.ID)
		require.NoError(t, err)

		require.True(t, m.TryLock(sess.ID))
		_, err = m.MakeMove(ctx, sess.ID, 2, 1, 1)
		m.Unlock(sess.ID)
		require.ErrorIs(t, err, service.ErrConcurrencyConflict)

		after, err := m.Get(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, before.State.Board, after.State.Board)
		assert.Equal(t, before.State.CurrentTurn, after.State.CurrentTurn)
	})
}

func TestCaroManager_History(t *testing.T) {
	ctx := context.Background()
	m, _ := newCaroManager(t, caro.DefaultConfig())

	var ids []int64
	for i := 0; i < 3; i++ {
		sess, err := m.Create(ctx, [2]int64{1, int64(10 + i)})
		require.NoError(t, err)
		ids = append(ids, sess.ID)
		_, err = m.SetDraw(ctx, sess.ID)
		require.NoError(t, err)
	}

	page, err := m.History(ctx, 1, service.Page{Page: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Data, 2)
	assert.Equal(t, ids[2], page.Data[0].ID)
	assert.Equal(t, ids[1], page.Data[1].ID)
}
