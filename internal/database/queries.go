package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zombar/geoanalyzer/internal/models"
)

// ErrNotFound is returned when an analysis does not exist.
var ErrNotFound = errors.New("analysis not found")

const analysisColumns = `id, content_hash, content, profile, overall_score, result, ai_suggestions, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// SaveAnalysis saves an analysis and its recommendations
func (db *DB) SaveAnalysis(ctx context.Context, analysis *models.Analysis) error {
	resultJSON, err := json.Marshal(analysis.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, db.rebind(`
		INSERT INTO analyses (id, content_hash, content, profile, overall_score, result, ai_suggestions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), analysis.ID, analysis.ContentHash, analysis.Content, analysis.Profile, analysis.OverallScore,
		string(resultJSON), nullString(analysis.AISuggestions), analysis.CreatedAt.UTC(), analysis.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}

	for i, rec := range analysis.Result.Recommendations {
		_, err = tx.ExecContext(ctx, db.rebind(`
			INSERT INTO recommendations (analysis_id, ordinal, type, priority, message)
			VALUES (?, ?, ?, ?, ?)
		`), analysis.ID, i, rec.Type, rec.Priority, rec.Message)
		if err != nil {
			return fmt.Errorf("failed to insert recommendation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetAnalysis retrieves an analysis by ID
func (db *DB) GetAnalysis(ctx context.Context, id string) (*models.Analysis, error) {
	row := db.conn.QueryRowContext(ctx, db.rebind(`SELECT `+analysisColumns+` FROM analyses WHERE id = ?`), id)
	return scanOne(row)
}

// GetAnalysisByHash retrieves the analysis stored for a content hash
func (db *DB) GetAnalysisByHash(ctx context.Context, hash string) (*models.Analysis, error) {
	row := db.conn.QueryRowContext(ctx, db.rebind(`SELECT `+analysisColumns+` FROM analyses WHERE content_hash = ?`), hash)
	return scanOne(row)
}

// ListAnalyses lists analyses, newest first
func (db *DB) ListAnalyses(ctx context.Context, limit, offset int) ([]*models.Analysis, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(`
		SELECT `+analysisColumns+`
		FROM analyses
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	return scanAll(rows)
}

// GetAnalysesByRecommendation retrieves analyses that received a
// recommendation of the given type, newest first
func (db *DB) GetAnalysesByRecommendation(ctx context.Context, recType string, limit int) ([]*models.Analysis, error) {
	rows, err := db.conn.QueryContext(ctx, db.rebind(`
		SELECT `+prefixColumns("a")+`
		FROM analyses a
		INNER JOIN recommendations r ON a.id = r.analysis_id
		WHERE r.type = ?
		ORDER BY a.created_at DESC, a.id
		LIMIT ?
	`), recType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses by recommendation: %w", err)
	}
	defer rows.Close()

	return scanAll(rows)
}

// CountAnalyses returns the number of stored analyses
func (db *DB) CountAnalyses(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM analyses").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count analyses: %w", err)
	}
	return n, nil
}

// UpdateSuggestions stores LLM rewrite suggestions for an analysis
func (db *DB) UpdateSuggestions(ctx context.Context, id, suggestions string) error {
	res, err := db.conn.ExecContext(ctx, db.rebind(`
		UPDATE analyses SET ai_suggestions = ?, updated_at = ? WHERE id = ?
	`), suggestions, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update suggestions: %w", err)
	}
	return expectAffected(res)
}

// DeleteAnalysis deletes an analysis and its recommendations
func (db *DB) DeleteAnalysis(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, db.rebind(`DELETE FROM recommendations WHERE analysis_id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete recommendations: %w", err)
	}

	res, err := tx.ExecContext(ctx, db.rebind(`DELETE FROM analyses WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	if err := expectAffected(res); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanOne(row *sql.Row) (*models.Analysis, error) {
	analysis, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return analysis, nil
}

func scanAll(rows *sql.Rows) ([]*models.Analysis, error) {
	analyses := []*models.Analysis{}
	for rows.Next() {
		analysis, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		analyses = append(analyses, analysis)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return analyses, nil
}

func scanAnalysis(s rowScanner) (*models.Analysis, error) {
	var (
		a          models.Analysis
		resultJSON string
		aiText     sql.NullString
	)
	if err := s.Scan(&a.ID, &a.ContentHash, &a.Content, &a.Profile, &a.OverallScore,
		&resultJSON, &aiText, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(resultJSON), &a.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	a.AISuggestions = aiText.String
	return &a, nil
}

func prefixColumns(alias string) string {
	return alias + ".id, " + alias + ".content_hash, " + alias + ".content, " + alias + ".profile, " +
		alias + ".overall_score, " + alias + ".result, " + alias + ".ai_suggestions, " +
		alias + ".created_at, " + alias + ".updated_at"
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
