package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ericfisherdev/repodigest/internal/domain/model"
	"github.com/ericfisherdev/repodigest/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepoStore = (*RepoRepo)(nil)

// RepoRepo is the SQLite implementation of the RepoStore port interface.
type RepoRepo struct {
	db *DB
}

// NewRepoRepo creates a new RepoRepo backed by the given DB.
func NewRepoRepo(db *DB) *RepoRepo {
	return &RepoRepo{db: db}
}

// Track inserts a tracked repository. Tracking an existing full name is a no-op
// and leaves its stored activity untouched.
func (r *RepoRepo) Track(ctx context.Context, repo model.TrackedRepository) error {
	const query = `
		INSERT INTO tracked_repositories (
			full_name, owner, name, description, description_localized,
			stars, forks, remote_updated_at, url, tracked_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(full_name) DO NOTHING`

	trackedAt := repo.TrackedAt
	if trackedAt.IsZero() {
		trackedAt = time.Now()
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		repo.FullName, repo.Owner, repo.Name, repo.Description, repo.DescriptionLocalized,
		repo.Stars, repo.Forks, nullableTime(repo.UpdatedAt), repo.URL, formatTime(trackedAt),
	)
	if err != nil {
		return fmt.Errorf("track repository %s: %w", repo.FullName, err)
	}

	return nil
}

// Untrack deletes a repository and, through the foreign key cascade, its
// activities. Untracking an unknown repository is not an error.
func (r *RepoRepo) Untrack(ctx context.Context, fullName string) error {
	const query = `DELETE FROM tracked_repositories WHERE full_name = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, fullName); err != nil {
		return fmt.Errorf("untrack repository %s: %w", fullName, err)
	}

	return nil
}

// ListAll returns every tracked repository with its activities, ordered by
// full name. Activities keep the order they were saved in.
func (r *RepoRepo) ListAll(ctx context.Context) ([]model.TrackedRepository, error) {
	const query = `
		SELECT full_name, owner, name, description, description_localized,
		       stars, forks, remote_updated_at, url, tracked_at,
		       last_checked_at, lookback_days, summary
		FROM tracked_repositories
		ORDER BY full_name`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tracked repositories: %w", err)
	}
	defer rows.Close()

	var repos []model.TrackedRepository
	index := make(map[string]int)
	for rows.Next() {
		repo, err := scanTrackedRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tracked repository: %w", err)
		}
		index[repo.FullName] = len(repos)
		repos = append(repos, repo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracked repositories: %w", err)
	}

	if len(repos) == 0 {
		return repos, nil
	}

	activities, err := r.listActivities(ctx)
	if err != nil {
		return nil, err
	}
	for fullName, acts := range activities {
		if i, ok := index[fullName]; ok {
			repos[i].Activities = acts
		}
	}

	return repos, nil
}

func (r *RepoRepo) listActivities(ctx context.Context) (map[string][]model.Activity, error) {
	const query = `
		SELECT repo_full_name, type, title, title_localized, description,
		       description_localized, created_at, url
		FROM activities
		ORDER BY repo_full_name, position`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]model.Activity)
	for rows.Next() {
		var (
			repoName  string
			a         model.Activity
			typ       string
			createdAt string
		)
		if err := rows.Scan(&repoName, &typ, &a.Title, &a.TitleLocalized, &a.Description,
			&a.DescriptionLocalized, &createdAt, &a.URL); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.Type = model.ActivityType(typ)
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse activity created_at: %w", err)
		}
		out[repoName] = append(out[repoName], a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}

	return out, nil
}

// SaveRefresh atomically replaces a repository's activities and refresh
// metadata. Returns driven.ErrRepoNotFound if the repository is not tracked.
func (r *RepoRepo) SaveRefresh(ctx context.Context, fullName string, checkedAt time.Time, lookbackDays int, summary string, activities []model.Activity) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	const updateQuery = `
		UPDATE tracked_repositories
		SET last_checked_at = ?, lookback_days = ?, summary = ?
		WHERE full_name = ?`

	result, err := tx.ExecContext(ctx, updateQuery, formatTime(checkedAt), lookbackDays, summary, fullName)
	if err != nil {
		return fmt.Errorf("update refresh metadata for %s: %w", fullName, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("save refresh %s: %w", fullName, driven.ErrRepoNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE repo_full_name = ?`, fullName); err != nil {
		return fmt.Errorf("delete activities for %s: %w", fullName, err)
	}

	const insertQuery = `
		INSERT INTO activities (
			repo_full_name, position, type, title, title_localized,
			description, description_localized, created_at, url
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return fmt.Errorf("prepare activity insert: %w", err)
	}
	defer stmt.Close()

	for i, a := range activities {
		_, err := stmt.ExecContext(ctx,
			fullName, i, string(a.Type), a.Title, a.TitleLocalized,
			a.Description, a.DescriptionLocalized, formatTime(a.CreatedAt), a.URL,
		)
		if err != nil {
			return fmt.Errorf("insert activity %d for %s: %w", i, fullName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit refresh for %s: %w", fullName, err)
	}

	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTrackedRepository(s scanner) (model.TrackedRepository, error) {
	var (
		repo          model.TrackedRepository
		remoteUpdated sql.NullString
		trackedAt     string
		lastChecked   sql.NullString
	)

	err := s.Scan(
		&repo.FullName, &repo.Owner, &repo.Name, &repo.Description, &repo.DescriptionLocalized,
		&repo.Stars, &repo.Forks, &remoteUpdated, &repo.URL, &trackedAt,
		&lastChecked, &repo.LookbackDays, &repo.Summary,
	)
	if err != nil {
		return repo, err
	}

	if repo.TrackedAt, err = parseTime(trackedAt); err != nil {
		return repo, fmt.Errorf("parse tracked_at: %w", err)
	}

	if remoteUpdated.Valid {
		if repo.UpdatedAt, err = parseTime(remoteUpdated.String); err != nil {
			return repo, fmt.Errorf("parse remote_updated_at: %w", err)
		}
	}

	if lastChecked.Valid {
		checked, err := parseTime(lastChecked.String)
		if err != nil {
			return repo, fmt.Errorf("parse last_checked_at: %w", err)
		}
		repo.LastCheckedAt = &checked
	}

	return repo, nil
}

// formatTime stores timestamps as UTC RFC 3339 strings.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
