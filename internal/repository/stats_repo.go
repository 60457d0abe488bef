package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hecoverseer/backend/internal/models"
)

// StatsRepo serves the read models: economy totals, the submission feed and
// verdict counts for the audit report.
type StatsRepo struct {
	pool *pgxpool.Pool
}

func NewStatsRepo(pool *pgxpool.Pool) *StatsRepo {
	return &StatsRepo{pool: pool}
}

func (r *StatsRepo) Stats(ctx context.Context) (*models.EconomyStats, error) {
	var s models.EconomyStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM users),
			(SELECT COALESCE(SUM(total_minted), 0) FROM users),
			(SELECT count(*) FROM tasks)
	`).Scan(&s.TotalUsers, &s.TotalMinted, &s.TotalTasks)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Feed returns the most recent submissions, newest time_end first.
func (r *StatsRepo) Feed(ctx context.Context, limit int) ([]models.FeedEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.submission_id, s.worker_id, t.task_type, s.duration_hours, s.agent_verdict, s.time_end
		FROM task_submissions s
		JOIN tasks t ON t.task_id = s.task_id
		ORDER BY s.time_end DESC, s.submission_id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.FeedEntry
	for rows.Next() {
		var e models.FeedEntry
		if err := rows.Scan(&e.SubmissionID, &e.WorkerID, &e.TaskType, &e.DurationHours, &e.Verdict, &e.TimeEnd); err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// VerdictCounts returns the number of submissions per verdict.
func (r *StatsRepo) VerdictCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT agent_verdict, count(*) FROM task_submissions GROUP BY agent_verdict`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int64)
	for rows.Next() {
		var verdict string
		var n int64
		if err := rows.Scan(&verdict, &n); err != nil {
			return nil, err
		}
		counts[verdict] = n
	}
	return counts, rows.Err()
}
