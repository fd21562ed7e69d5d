package store

import (
	"database/sql"
	"fmt"
)

// Knowledge is one append-only lesson row.
type Knowledge struct {
	ID                 int64
	Category           string // strategy_lesson | risk_insight | market_pattern
	Content            string
	SourceReflectionID int64
	TimesValidated     int
	IsActive           bool
	CreatedAt          string
}

// AddKnowledge inserts a lesson, or bumps times_validated when the same
// content is already active. The FTS mirror stays in sync inside the
// same transaction.
func (s *Store) AddKnowledge(category, content string, sourceReflectionID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var existingID int64
	err = tx.QueryRow(`
		SELECT id FROM knowledge_base WHERE content = ? AND is_active = 1
	`, content).Scan(&existingID)
	if err == nil {
		if _, err := tx.Exec(`
			UPDATE knowledge_base SET times_validated = times_validated + 1 WHERE id = ?
		`, existingID); err != nil {
			return err
		}
		return tx.Commit()
	}

	res, err := tx.Exec(`
		INSERT INTO knowledge_base (category, content, source_reflection_id)
		VALUES (?, ?, ?)
	`, category, content, nullableID(sourceReflectionID))
	if err != nil {
		return err
	}
	if s.ftsAvailable {
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`
			INSERT INTO knowledge_fts (rowid, content, category) VALUES (?, ?, ?)
		`, id, content, category); err != nil {
			return fmt.Errorf("sync knowledge fts: %w", err)
		}
	}
	return tx.Commit()
}

// DeactivateKnowledge soft-deletes a lesson and removes its FTS row.
func (s *Store) DeactivateKnowledge(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE knowledge_base SET is_active = 0 WHERE id = ?`, id); err != nil {
		return err
	}
	if s.ftsAvailable {
		if _, err := tx.Exec(`DELETE FROM knowledge_fts WHERE rowid = ?`, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SearchKnowledge retrieves up to limit active lessons relevant to the
// query (typically the current regime). FTS ranking blends match rank,
// validation count and time decay; any FTS failure degrades to a plain
// recency/validation-sorted query.
func (s *Store) SearchKnowledge(query string, limit int) []string {
	if s.ftsAvailable && query != "" {
		rows, err := s.db.Query(`
			SELECT kb.content
			FROM knowledge_base kb
			JOIN knowledge_fts fts ON kb.id = fts.rowid
			WHERE knowledge_fts MATCH ? AND kb.is_active = 1
			ORDER BY rank * -0.4
				+ MIN(kb.times_validated, 10) * 0.3
				+ (50.0 / (1 + julianday('now') - julianday(kb.created_at))) * 0.3
			DESC LIMIT ?
		`, query, limit)
		if err == nil {
			out := scanStrings(rows)
			if len(out) > 0 {
				return out
			}
		}
	}

	rows, err := s.db.Query(`
		SELECT content FROM knowledge_base
		WHERE is_active = 1
		ORDER BY times_validated DESC, created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil
	}
	return scanStrings(rows)
}

// ActiveKnowledge lists every active lesson for reporting.
func (s *Store) ActiveKnowledge() ([]Knowledge, error) {
	rows, err := s.db.Query(`
		SELECT id, category, content, COALESCE(source_reflection_id, 0),
			times_validated, is_active, COALESCE(created_at, '')
		FROM knowledge_base
		WHERE is_active = 1
		ORDER BY times_validated DESC, created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Knowledge
	for rows.Next() {
		var k Knowledge
		if err := rows.Scan(&k.ID, &k.Category, &k.Content, &k.SourceReflectionID,
			&k.TimesValidated, &k.IsActive, &k.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// DisableFTS is a test hook that forces the degraded retrieval path.
func (s *Store) DisableFTS() {
	s.ftsAvailable = false
}

func nullableID(id int64) any {
	if id <= 0 {
		return nil
	}
	return id
}

func scanStrings(rows *sql.Rows) []string {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if rows.Scan(&s) == nil {
			out = append(out, s)
		}
	}
	return out
}
