package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/crmoraes/nga/internal/models"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound  = errors.New("conversion not found")
	ErrAmbiguous = errors.New("conversion id prefix is ambiguous")
)

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One connection serializes writers from parallel batch workers.
	db.SetMaxOpenConns(1)

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversions (
		id TEXT PRIMARY KEY,
		batch_id TEXT,
		created_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		input_path TEXT NOT NULL,
		shape TEXT,
		status TEXT NOT NULL DEFAULT 'running',
		topic_count INTEGER NOT NULL DEFAULT 0,
		action_count INTEGER NOT NULL DEFAULT 0,
		has_legacy_variables INTEGER NOT NULL DEFAULT 0,
		output_path TEXT,
		error_code TEXT,
		error TEXT
	);

	CREATE TABLE IF NOT EXISTS conversion_notes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversion_id TEXT NOT NULL REFERENCES conversions(id),
		sequence_num INTEGER NOT NULL,
		text TEXT NOT NULL,
		UNIQUE(conversion_id, sequence_num)
	);

	CREATE INDEX IF NOT EXISTS idx_conversions_batch ON conversions(batch_id);
	CREATE INDEX IF NOT EXISTS idx_conversions_status ON conversions(status);
	CREATE INDEX IF NOT EXISTS idx_notes_conversion ON conversion_notes(conversion_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

const conversionColumns = `id, batch_id, created_at, completed_at, input_path, shape, status,
	topic_count, action_count, has_legacy_variables, output_path, error_code, error`

func (s *Storage) CreateConversion(c *models.Conversion) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO conversions (`+conversionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, nullString(c.BatchID), c.CreatedAt, c.CompletedAt, c.InputPath, nullString(string(c.Shape)),
		c.Status, c.TopicCount, c.ActionCount, c.HasLegacyVariables,
		nullString(c.OutputPath), nullString(c.ErrorCode), nullString(c.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to insert conversion: %w", err)
	}
	return nil
}

func (s *Storage) UpdateConversion(c *models.Conversion) error {
	_, err := s.db.Exec(
		`UPDATE conversions SET completed_at = ?, shape = ?, status = ?, topic_count = ?, action_count = ?,
		 has_legacy_variables = ?, output_path = ?, error_code = ?, error = ? WHERE id = ?`,
		c.CompletedAt, nullString(string(c.Shape)), c.Status, c.TopicCount, c.ActionCount,
		c.HasLegacyVariables, nullString(c.OutputPath), nullString(c.ErrorCode), nullString(c.Error), c.ID,
	)
	return err
}

func (s *Storage) GetConversion(id string) (*models.Conversion, error) {
	row := s.db.QueryRow(`SELECT `+conversionColumns+` FROM conversions WHERE id = ?`, id)
	c, err := scanConversion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, err
}

// ResolveID expands a unique id prefix to the full conversion id. The prefix
// is compared literally.
func (s *Storage) ResolveID(prefix string) (string, error) {
	rows, err := s.db.Query(`SELECT id FROM conversions WHERE substr(id, 1, length(?)) = ? LIMIT 2`, prefix, prefix)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguous, prefix)
	}
}

func (s *Storage) ListConversions(limit int) ([]*models.Conversion, error) {
	return s.queryConversions(
		`SELECT `+conversionColumns+` FROM conversions ORDER BY created_at DESC, id LIMIT ?`, limit)
}

func (s *Storage) ListBatch(batchID string) ([]*models.Conversion, error) {
	return s.queryConversions(
		`SELECT `+conversionColumns+` FROM conversions WHERE batch_id = ? ORDER BY input_path`, batchID)
}

func (s *Storage) queryConversions(query string, args ...any) ([]*models.Conversion, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Conversion
	for rows.Next() {
		c, err := scanConversion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}

	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversion(row scanner) (*models.Conversion, error) {
	var c models.Conversion
	var completedAt sql.NullTime
	var batchID, shape, outputPath, errorCode, errText sql.NullString

	err := row.Scan(
		&c.ID, &batchID, &c.CreatedAt, &completedAt, &c.InputPath, &shape, &c.Status,
		&c.TopicCount, &c.ActionCount, &c.HasLegacyVariables, &outputPath, &errorCode, &errText,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	c.BatchID = batchID.String
	c.Shape = models.Shape(shape.String)
	c.OutputPath = outputPath.String
	c.ErrorCode = errorCode.String
	c.Error = errText.String

	return &c, nil
}

// AddNotes appends notes to a conversion after any it already has.
func (s *Storage) AddNotes(conversionID string, notes []string) error {
	if len(notes) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(sequence_num), 0) FROM conversion_notes WHERE conversion_id = ?`, conversionID,
	).Scan(&next); err != nil {
		return err
	}

	for _, text := range notes {
		next++
		if _, err := tx.Exec(
			`INSERT INTO conversion_notes (conversion_id, sequence_num, text) VALUES (?, ?, ?)`,
			conversionID, next, text,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Storage) GetNotes(conversionID string) ([]*models.ConversionNote, error) {
	rows, err := s.db.Query(
		`SELECT id, conversion_id, sequence_num, text FROM conversion_notes
		 WHERE conversion_id = ? ORDER BY sequence_num`, conversionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*models.ConversionNote
	for rows.Next() {
		var n models.ConversionNote
		if err := rows.Scan(&n.ID, &n.ConversionID, &n.SequenceNum, &n.Text); err != nil {
			return nil, err
		}
		notes = append(notes, &n)
	}

	return notes, rows.Err()
}

func (s *Storage) DeleteConversion(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM conversion_notes WHERE conversion_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM conversions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return tx.Commit()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Helper to format time for display
func FormatTimeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2")
	}
}
