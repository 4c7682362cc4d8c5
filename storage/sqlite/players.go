package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wricardo/boardgames/game/service"
)

// UpsertPlayer records the nickname a player is currently known by.
func (s *Store) UpsertPlayer(ctx context.Context, playerID int64, nickname string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO players (id, nickname, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET nickname = excluded.nickname, updated_at = excluded.updated_at`,
		playerID, nickname, toMillis(s.now()))
	if err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}
	return nil
}

// Nickname returns the stored nickname of a player.
func (s *Store) Nickname(ctx context.Context, playerID int64) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT nickname FROM players WHERE id = ?`, playerID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: player %d", service.ErrNotFound, playerID)
	}
	if err != nil {
		return "", fmt.Errorf("query nickname: %w", err)
	}
	return name, nil
}
