package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wricardo/boardgames/game/service"
)

// CreateGame inserts a game record and one waiting participant row per player.
func (s *Store) CreateGame(ctx context.Context, tx service.Tx, gameType service.GameType, mode service.GameMode, players []int64) (*service.Game, error) {
	if len(players) == 0 {
		return nil, fmt.Errorf("%w: a game needs at least one player", service.ErrValidation)
	}
	q := s.exec(tx)
	now := s.now()

	res, err := q.ExecContext(ctx,
		`INSERT INTO games (type, mode, status, created_at) VALUES (?, ?, ?, ?)`,
		string(gameType), string(mode), string(service.StatusOngoing), toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("insert game: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("game id: %w", err)
	}

	for _, p := range players {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO game_players (game_id, player_id, game_type, status, updated_at) VALUES (?, ?, ?, ?, ?)`,
			id, p, string(gameType), string(service.ParticipantWaiting), toMillis(now)); err != nil {
			return nil, fmt.Errorf("insert participant %d: %w", p, err)
		}
	}

	return &service.Game{
		ID:        id,
		Type:      gameType,
		Mode:      mode,
		Status:    service.StatusOngoing,
		Players:   append([]int64(nil), players...),
		CreatedAt: now.UTC(),
	}, nil
}

// StartGame stamps the start time and marks every participant as playing.
func (s *Store) StartGame(ctx context.Context, gameID int64) error {
	return s.WithinTx(ctx, func(tx service.Tx) error {
		now := toMillis(s.now())
		res, err := tx.ExecContext(ctx, `UPDATE games SET started_at = ? WHERE id = ?`, now, gameID)
		if err != nil {
			return fmt.Errorf("start game: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: game %d", service.ErrNotFound, gameID)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE game_players SET status = ?, updated_at = ? WHERE game_id = ?`,
			string(service.ParticipantPlaying), now, gameID); err != nil {
			return fmt.Errorf("start participants: %w", err)
		}
		return nil
	})
}

// FinishGame closes the record and stores each participant's result.
func (s *Store) FinishGame(ctx context.Context, gameID int64, result service.FinalResult) error {
	return s.WithinTx(ctx, func(tx service.Tx) error {
		now := toMillis(s.now())
		res, err := tx.ExecContext(ctx,
			`UPDATE games SET status = ?, ended_at = ? WHERE id = ?`,
			string(service.StatusFinished), now, gameID)
		if err != nil {
			return fmt.Errorf("finish game: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: game %d", service.ErrNotFound, gameID)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE game_players SET status = ?, updated_at = ? WHERE game_id = ?`,
			string(service.ParticipantFinished), now, gameID); err != nil {
			return fmt.Errorf("finish participants: %w", err)
		}

		outcomes := []struct {
			players []int64
			result  service.Result
		}{
			{result.Winners, service.ResultWin},
			{result.Losers, service.ResultLose},
			{result.Drawers, service.ResultDraw},
		}
		for _, o := range outcomes {
			for _, p := range o.players {
				if _, err := tx.ExecContext(ctx,
					`UPDATE game_players SET result = ? WHERE game_id = ? AND player_id = ?`,
					string(o.result), gameID, p); err != nil {
					return fmt.Errorf("set result for player %d: %w", p, err)
				}
			}
		}
		return nil
	})
}

// IsPlaying reports whether the player has an unfinished game of the type.
func (s *Store) IsPlaying(ctx context.Context, playerID int64, gameType service.GameType) (bool, error) {
	_, ok, err := s.PlayingGame(ctx, playerID, gameType)
	return ok, err
}

// PlayingGame returns the most recent unfinished game of the player.
func (s *Store) PlayingGame(ctx context.Context, playerID int64, gameType service.GameType) (int64, bool, error) {
	var gameID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT game_id FROM game_players
		 WHERE player_id = ? AND game_type = ? AND status IN (?, ?)
		 ORDER BY game_id DESC LIMIT 1`,
		playerID, string(gameType),
		string(service.ParticipantWaiting), string(service.ParticipantPlaying),
	).Scan(&gameID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query playing game: %w", err)
	}
	return gameID, true, nil
}

// History returns one page of the player's game ids, newest first, and the
// total number of games of that type.
func (s *Store) History(ctx context.Context, playerID int64, gameType service.GameType, page service.Page) ([]int64, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM game_players WHERE player_id = ? AND game_type = ?`,
		playerID, string(gameType)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT game_id FROM game_players
		 WHERE player_id = ? AND game_type = ?
		 ORDER BY game_id DESC LIMIT ? OFFSET ?`,
		playerID, string(gameType), page.Size, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, 0, fmt.Errorf("scan history: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate history: %w", err)
	}
	return ids, total, nil
}

// Participant returns the status and result of one player in a game.
func (s *Store) Participant(ctx context.Context, gameID, playerID int64) (service.ParticipantStatus, service.Result, error) {
	var status string
	var result sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT status, result FROM game_players WHERE game_id = ? AND player_id = ?`,
		gameID, playerID).Scan(&status, &result)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", fmt.Errorf("%w: player %d in game %d", service.ErrNotFound, playerID, gameID)
	}
	if err != nil {
		return "", "", fmt.Errorf("query participant: %w", err)
	}
	return service.ParticipantStatus(status), service.Result(result.String), nil
}

// Game loads a game record with its players.
func (s *Store) Game(ctx context.Context, gameID int64) (*service.Game, error) {
	var (
		g                  service.Game
		gameType, mode, st string
		created            int64
		started, ended     sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, type, mode, status, created_at, started_at, ended_at FROM games WHERE id = ?`,
		gameID).Scan(&g.ID, &gameType, &mode, &st, &created, &started, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: game %d", service.ErrNotFound, gameID)
	}
	if err != nil {
		return nil, fmt.Errorf("query game: %w", err)
	}
	g.Type = service.GameType(gameType)
	g.Mode = service.GameMode(mode)
	g.Status = service.GameStatus(st)
	g.CreatedAt = fromMillis(created)
	if started.Valid {
		t := fromMillis(started.Int64)
		g.StartedAt = &t
	}
	if ended.Valid {
		t := fromMillis(ended.Int64)
		g.EndedAt = &t
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT player_id FROM game_players WHERE game_id = ? ORDER BY rowid`, gameID)
	if err != nil {
		return nil, fmt.Errorf("query game players: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p int64
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan game player: %w", err)
		}
		g.Players = append(g.Players, p)
	}
	return &g, rows.Err()
}
