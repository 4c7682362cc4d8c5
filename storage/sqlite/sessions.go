package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wricardo/boardgames/game/service"
)

const caroColumns = `id, game_id, config, state, first_player, winner, end_reason, finished, created_at, updated_at`

// CreateCaro inserts s and assigns its id.
func (s *Store) CreateCaro(ctx context.Context, tx service.Tx, sess *service.CaroSession) error {
	config, err := json.Marshal(sess.Config)
	if err != nil {
		return fmt.Errorf("encode caro config: %w", err)
	}
	state, err := json.Marshal(sess.State)
	if err != nil {
		return fmt.Errorf("encode caro state: %w", err)
	}

	now := s.now().UTC()
	res, err := s.exec(tx).ExecContext(ctx,
		`INSERT INTO caro_sessions (game_id, config, state, first_player, end_reason, finished, created_at, updated_at)
		 VALUES (?, ?, ?, ?, '', 0, ?, ?)`,
		sess.GameID, string(config), string(state), sess.FirstPlayer, toMillis(now), toMillis(now))
	if err != nil {
		return fmt.Errorf("insert caro session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("caro session id: %w", err)
	}

	sess.ID = id
	sess.CreatedAt = now
	sess.UpdatedAt = now
	return nil
}

// GetCaro loads a Caro session by id.
func (s *Store) GetCaro(ctx context.Context, id int64) (*service.CaroSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+caroColumns+` FROM caro_sessions WHERE id = ?`, id)
	sess, err := scanCaro(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: caro session %d", service.ErrNotFound, id)
	}
	return sess, err
}

// CaroByGame loads the Caro session attached to a game record.
func (s *Store) CaroByGame(ctx context.Context, gameID int64) (*service.CaroSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+caroColumns+` FROM caro_sessions WHERE game_id = ?`, gameID)
	sess, err := scanCaro(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: caro session for game %d", service.ErrNotFound, gameID)
	}
	return sess, err
}

// SaveCaro writes the mutable columns of sess.
func (s *Store) SaveCaro(ctx context.Context, sess *service.CaroSession) error {
	state, err := json.Marshal(sess.State)
	if err != nil {
		return fmt.Errorf("encode caro state: %w", err)
	}

	var winner sql.NullInt64
	if sess.Winner != nil {
		winner = sql.NullInt64{Int64: *sess.Winner, Valid: true}
	}

	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE caro_sessions SET state = ?, winner = ?, end_reason = ?, finished = ?, updated_at = ? WHERE id = ?`,
		string(state), winner, string(sess.EndReason), sess.Finished, toMillis(now), sess.ID)
	if err != nil {
		return fmt.Errorf("update caro session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: caro session %d", service.ErrNotFound, sess.ID)
	}
	sess.UpdatedAt = now
	return nil
}

// CarosByGames loads the sessions of the given games, newest game first.
func (s *Store) CarosByGames(ctx context.Context, gameIDs []int64) ([]*service.CaroSession, error) {
	if len(gameIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+caroColumns+` FROM caro_sessions WHERE game_id IN (`+placeholders(len(gameIDs))+`) ORDER BY game_id DESC`,
		int64Args(gameIDs)...)
	if err != nil {
		return nil, fmt.Errorf("query caro sessions: %w", err)
	}
	defer rows.Close()

	var out []*service.CaroSession
	for rows.Next() {
		sess, err := scanCaro(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func scanCaro(row scanner) (*service.CaroSession, error) {
	var (
		sess             service.CaroSession
		config, state    string
		winner           sql.NullInt64
		endReason        string
		created, updated int64
	)
	if err := row.Scan(&sess.ID, &sess.GameID, &config, &state, &sess.FirstPlayer,
		&winner, &endReason, &sess.Finished, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan caro session: %w", err)
	}
	if err := json.Unmarshal([]byte(config), &sess.Config); err != nil {
		return nil, fmt.Errorf("decode caro config: %w", err)
	}
	if err := json.Unmarshal([]byte(state), &sess.State); err != nil {
		return nil, fmt.Errorf("decode caro state: %w", err)
	}
	if winner.Valid {
		w := winner.Int64
		sess.Winner = &w
	}
	sess.EndReason = service.EndReason(endReason)
	sess.CreatedAt = fromMillis(created)
	sess.UpdatedAt = fromMillis(updated)
	return &sess, nil
}

const line98Columns = `id, game_id, player_id, config, state, score, end_reason, finished, created_at, updated_at`

// CreateLine98 inserts s and assigns its id.
func (s *Store) CreateLine98(ctx context.Context, tx service.Tx, sess *service.Line98Session) error {
	config, err := json.Marshal(sess.Config)
	if err != nil {
		return fmt.Errorf("encode line98 config: %w", err)
	}
	state, err := json.Marshal(sess.State)
	if err != nil {
		return fmt.Errorf("encode line98 state: %w", err)
	}

	now := s.now().UTC()
	res, err := s.exec(tx).ExecContext(ctx,
		`INSERT INTO line98_sessions (game_id, player_id, config, state, score, end_reason, finished, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, '', 0, ?, ?)`,
		sess.GameID, sess.PlayerID, string(config), string(state), sess.Score, toMillis(now), toMillis(now))
	if err != nil {
		return fmt.Errorf("insert line98 session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("line98 session id: %w", err)
	}

	sess.ID = id
	sess.CreatedAt = now
	sess.UpdatedAt = now
	return nil
}

// GetLine98 loads a Line98 session by id.
func (s *Store) GetLine98(ctx context.Context, id int64) (*service.Line98Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+line98Columns+` FROM line98_sessions WHERE id = ?`, id)
	sess, err := scanLine98(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: line98 session %d", service.ErrNotFound, id)
	}
	return sess, err
}

// Line98ByGame loads the Line98 session attached to a game record.
func (s *Store) Line98ByGame(ctx context.Context, gameID int64) (*service.Line98Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+line98Columns+` FROM line98_sessions WHERE game_id = ?`, gameID)
	sess, err := scanLine98(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: line98 session for game %d", service.ErrNotFound, gameID)
	}
	return sess, err
}

// SaveLine98 writes the mutable columns of sess.
func (s *Store) SaveLine98(ctx context.Context, sess *service.Line98Session) error {
	state, err := json.Marshal(sess.State)
	if err != nil {
		return fmt.Errorf("encode line98 state: %w", err)
	}

	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE line98_sessions SET state = ?, score = ?, end_reason = ?, finished = ?, updated_at = ? WHERE id = ?`,
		string(state), sess.Score, string(sess.EndReason), sess.Finished, toMillis(now), sess.ID)
	if err != nil {
		return fmt.Errorf("update line98 session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: line98 session %d", service.ErrNotFound, sess.ID)
	}
	sess.UpdatedAt = now
	return nil
}

// Line98sByGames loads the sessions of the given games, newest game first.
func (s *Store) Line98sByGames(ctx context.Context, gameIDs []int64) ([]*service.Line98Session, error) {
	if len(gameIDs) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+line98Columns+` FROM line98_sessions WHERE game_id IN (`+placeholders(len(gameIDs))+`) ORDER BY game_id DESC`,
		int64Args(gameIDs)...)
	if err != nil {
		return nil, fmt.Errorf("query line98 sessions: %w", err)
	}
	defer rows.Close()

	var out []*service.Line98Session
	for rows.Next() {
		sess, err := scanLine98(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func scanLine98(row scanner) (*service.Line98Session, error) {
	var (
		sess             service.Line98Session
		config, state    string
		endReason        string
		created, updated int64
	)
	if err := row.Scan(&sess.ID, &sess.GameID, &sess.PlayerID, &config, &state, &sess.Score,
		&endReason, &sess.Finished, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan line98 session: %w", err)
	}
	if err := json.Unmarshal([]byte(config), &sess.Config); err != nil {
		return nil, fmt.Errorf("decode line98 config: %w", err)
	}
	if err := json.Unmarshal([]byte(state), &sess.State); err != nil {
		return nil, fmt.Errorf("decode line98 state: %w", err)
	}
	sess.EndReason = service.EndReason(endReason)
	sess.CreatedAt = fromMillis(created)
	sess.UpdatedAt = fromMillis(updated)
	return &sess, nil
}
