package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/keyfindings/backend/internal/findings"
	"github.com/keyfindings/backend/internal/storage/models"
	"github.com/keyfindings/backend/pkg/logger"
)

var reportColumns = []string{
	"scenario_key",
	"id",
	"tool_name",
	"sources",
	"language",
	"executive_summary",
	"principal_findings",
	"pca_analysis",
	"structure_tag",
	"entries",
	"confidence",
	"model_used",
	"provider_used",
	"latency_ms",
	"token_count",
	"created_at",
	"last_accessed_at",
	"access_count",
	"user_rating",
	"user_feedback",
}

// Load returns the report for key and records the access in the same
// transaction. A miss returns (nil, nil).
func (c *Client) Load(ctx context.Context, key string, accessedAt time.Time) (*models.CachedReport, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	upd, args, err := c.sq.Update("reports").
		Set("access_count", sq.Expr("access_count + 1")).
		Set("last_accessed_at", accessedAt.UnixMilli()).
		Where(sq.Eq{"scenario_key": key}).
		ToSql()
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, upd, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to touch report: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}

	sel, args, err := c.sq.Select(reportColumns...).
		From("reports").
		Where(sq.Eq{"scenario_key": key}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	report, err := scanReport(tx.QueryRowContext(ctx, sel, args...))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return report, nil
}

// Save upserts the report under its scenario key.
func (c *Client) Save(ctx context.Context, r *models.CachedReport) error {
	sources, err := json.Marshal(r.Sources)
	if err != nil {
		return fmt.Errorf("failed to encode sources: %w", err)
	}

	var entries sql.NullString
	if r.Entries != nil {
		b, err := json.Marshal(r.Entries)
		if err != nil {
			return fmt.Errorf("failed to encode entries: %w", err)
		}
		entries = sql.NullString{String: string(b), Valid: true}
	}

	var rating sql.NullInt64
	if r.UserRating != nil {
		rating = sql.NullInt64{Int64: int64(*r.UserRating), Valid: true}
	}
	var feedback sql.NullString
	if r.UserFeedback != nil {
		feedback = sql.NullString{String: *r.UserFeedback, Valid: true}
	}

	q := c.sq.Insert("reports").
		Columns(reportColumns...).
		Values(
			r.ScenarioKey,
			r.ID,
			r.ToolName,
			string(sources),
			r.Language,
			r.ExecutiveSummary,
			r.PrincipalFindings,
			r.PCAAnalysis,
			string(r.StructureTag),
			entries,
			r.Confidence,
			r.ModelUsed,
			r.ProviderUsed,
			r.LatencyMs,
			r.TokenCount,
			r.CreatedAt.UnixMilli(),
			r.LastAccessedAt.UnixMilli(),
			r.AccessCount,
			rating,
			feedback,
		).
		Suffix(`ON CONFLICT(scenario_key) DO UPDATE SET
			id=excluded.id,
			tool_name=excluded.tool_name,
			sources=excluded.sources,
			language=excluded.language,
			executive_summary=excluded.executive_summary,
			principal_findings=excluded.principal_findings,
			pca_analysis=excluded.pca_analysis,
			structure_tag=excluded.structure_tag,
			entries=excluded.entries,
			confidence=excluded.confidence,
			model_used=excluded.model_used,
			provider_used=excluded.provider_used,
			latency_ms=excluded.latency_ms,
			token_count=excluded.token_count,
			created_at=excluded.created_at,
			last_accessed_at=excluded.last_accessed_at,
			access_count=excluded.access_count,
			user_rating=excluded.user_rating,
			user_feedback=excluded.user_feedback`)

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	logger.Debug("Report saved",
		zap.String("scenario_key", r.ScenarioKey),
		zap.String("model", r.ModelUsed),
	)
	return nil
}

func (c *Client) UpdateFeedback(ctx context.Context, key string, rating int, feedback string) (bool, error) {
	sqlStr, args, err := c.sq.Update("reports").
		Set("user_rating", rating).
		Set("user_feedback", feedback).
		Where(sq.Eq{"scenario_key": key}).
		ToSql()
	if err != nil {
		return false, err
	}

	res, err := c.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return false, fmt.Errorf("failed to store feedback: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *Client) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	sqlStr, args, err := c.sq.Delete("reports").
		Where(sq.Lt{"last_accessed_at": cutoff.UnixMilli()}).
		ToSql()
	if err != nil {
		return 0, err
	}

	res, err := c.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale reports: %w", err)
	}
	return res.RowsAffected()
}

func (c *Client) Count(ctx context.Context) (int64, error) {
	sqlStr, args, err := c.sq.Select("COUNT(*)").From("reports").ToSql()
	if err != nil {
		return 0, err
	}

	var n int64
	if err := c.db.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return n, nil
}

func scanReport(row *sql.Row) (*models.CachedReport, error) {
	var (
		r                       models.CachedReport
		sources                 string
		tag                     string
		entries                 sql.NullString
		createdAt, lastAccessed int64
		rating                  sql.NullInt64
		feedback                sql.NullString
	)

	err := row.Scan(
		&r.ScenarioKey,
		&r.ID,
		&r.ToolName,
		&sources,
		&r.Language,
		&r.ExecutiveSummary,
		&r.PrincipalFindings,
		&r.PCAAnalysis,
		&tag,
		&entries,
		&r.Confidence,
		&r.ModelUsed,
		&r.ProviderUsed,
		&r.LatencyMs,
		&r.TokenCount,
		&createdAt,
		&lastAccessed,
		&r.AccessCount,
		&rating,
		&feedback,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan report: %w", err)
	}

	if err := json.Unmarshal([]byte(sources), &r.Sources); err != nil {
		return nil, fmt.Errorf("failed to decode sources: %w", err)
	}
	if entries.Valid {
		if err := json.Unmarshal([]byte(entries.String), &r.Entries); err != nil {
			return nil, fmt.Errorf("failed to decode entries: %w", err)
		}
	}

	r.StructureTag = findings.StructureTag(tag)
	r.CreatedAt = time.UnixMilli(createdAt)
	r.LastAccessedAt = time.UnixMilli(lastAccessed)
	if rating.Valid {
		v := int(rating.Int64)
		r.UserRating = &v
	}
	if feedback.Valid {
		v := feedback.String
		r.UserFeedback = &v
	}
	return &r, nil
}
