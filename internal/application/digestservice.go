package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/repodigest/internal/domain/model"
	"github.com/ericfisherdev/repodigest/internal/domain/port/driven"
)

// digestItemsPerType caps how many activities of one type a digest lists per repository.
const digestItemsPerType = 5

// Compile-time interface satisfaction check.
var _ driven.TaskExecutor = (*DigestService)(nil)

// DigestEntry is one repository section of a digest.
type DigestEntry struct {
	FullName   string
	Repo       *model.TrackedRepository // nil when the repository is no longer tracked
	RefreshErr error
}

// DigestService executes scheduled tasks by refreshing the task's
// repositories and mailing an activity digest.
type DigestService struct {
	registry     *TrackedRepoRegistry
	orchestrator *RefreshOrchestrator
	enricher     *Enricher
	mailer       driven.Mailer
	lookbackDays int
	now          func() time.Time
}

// NewDigestService creates a DigestService. enricher may be nil, which leaves
// out the overview. now may be nil, in which case time.Now is used.
func NewDigestService(
	registry *TrackedRepoRegistry,
	orchestrator *RefreshOrchestrator,
	enricher *Enricher,
	mailer driven.Mailer,
	lookbackDays int,
	now func() time.Time,
) *DigestService {
	if now == nil {
		now = time.Now
	}
	return &DigestService{
		registry:     registry,
		orchestrator: orchestrator,
		enricher:     enricher,
		mailer:       mailer,
		lookbackDays: lookbackDays,
		now:          now,
	}
}

// Execute refreshes the task's tracked repositories and sends the digest.
// Refresh failures are reported inside the digest; only a failed send fails
// the execution.
func (s *DigestService) Execute(ctx context.Context, task model.ScheduledTask) error {
	var tracked []string
	for _, name := range task.Repositories {
		if s.registry.IsTracked(name) {
			tracked = append(tracked, name)
		}
	}

	report := s.orchestrator.RefreshMany(ctx, tracked, s.lookbackDays)
	refreshErrs := make(map[string]error, len(report.Results))
	for _, res := range report.Results {
		if res.Err != nil {
			refreshErrs[res.Repo] = res.Err
		}
	}

	now := s.now()
	entries := make([]DigestEntry, 0, len(task.Repositories))
	var statuses []model.TrackedRepoStatus
	for _, name := range task.Repositories {
		entry := DigestEntry{FullName: name, RefreshErr: refreshErrs[name]}
		if repo, ok := s.registry.Get(name); ok {
			entry.Repo = &repo
			statuses = append(statuses, repo.StatusAt(s.lookbackDays, now))
		}
		entries = append(entries, entry)
	}

	var overview string
	if s.enricher.CanSummarize() && len(statuses) > 0 {
		if text, source := s.enricher.SummarizeTracked(ctx, statuses, s.lookbackDays); source == SummaryFromModel {
			overview = text
		}
	}

	msg := model.Message{
		To:       task.Email,
		Subject:  fmt.Sprintf("Repository activity digest for %s", now.Format("2006-01-02")),
		Markdown: BuildDigest(entries, overview, s.lookbackDays, now),
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send digest to %s: %w", task.Email, err)
	}
	return nil
}

// BuildDigest renders digest entries as markdown, opening with overview when
// it is not empty. Each repository lists up to five activities per type
// inside the lookback window.
func BuildDigest(entries []DigestEntry, overview string, lookbackDays int, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Repository activity\n\nActivity from the last %s, generated %s.\n",
		pluralDays(lookbackDays), now.UTC().Format("2006-01-02 15:04 MST"))

	if overview != "" {
		fmt.Fprintf(&b, "\n## Overview\n\n%s\n", overview)
	}

	for _, entry := range entries {
		b.WriteString("\n")

		if entry.Repo == nil {
			fmt.Fprintf(&b, "## %s\n\n_No longer tracked; skipped._\n", entry.FullName)
			continue
		}

		repo := entry.Repo
		fmt.Fprintf(&b, "## [%s](%s)\n\n", repo.FullName, repo.URL)
		// Counts are only known for repositories tracked from catalog results.
		if repo.Stars > 0 || repo.Forks > 0 {
			fmt.Fprintf(&b, "Stars: %d · Forks: %d\n\n", repo.Stars, repo.Forks)
		}

		if entry.RefreshErr != nil {
			b.WriteString("_Refresh failed; showing the last known activity._\n\n")
		} else if repo.Summary != "" && repo.LookbackDays == lookbackDays {
			fmt.Fprintf(&b, "%s\n\n", repo.Summary)
		}

		status := repo.StatusAt(lookbackDays, now)
		if !status.HasUpdates {
			b.WriteString("No new activity.\n")
			continue
		}

		cutoff := model.WindowStart(lookbackDays, now)
		var recent []model.Activity
		for _, a := range repo.Activities {
			if a.CreatedAt.After(cutoff) {
				recent = append(recent, a)
			}
		}

		groups := model.GroupByType(recent)
		for _, t := range model.ActivityTypes {
			items := groups[t]
			if len(items) == 0 {
				continue
			}

			fmt.Fprintf(&b, "### %s (%d)\n\n", capitalize(t.Label()), len(items))
			for i, a := range items {
				if i == digestItemsPerType {
					fmt.Fprintf(&b, "- ... and %d more\n", len(items)-digestItemsPerType)
					break
				}
				writeDigestItem(&b, a)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func writeDigestItem(b *strings.Builder, a model.Activity) {
	title := strings.TrimSpace(a.Title)
	if title == "" {
		title = "(untitled)"
	}
	if localized := strings.TrimSpace(a.TitleLocalized); localized != "" && localized != title {
		title += " / " + localized
	}
	date := a.CreatedAt.UTC().Format("2006-01-02")

	if a.URL != "" {
		fmt.Fprintf(b, "- [%s](%s) (%s)\n", title, a.URL, date)
		return
	}
	fmt.Fprintf(b, "- %s (%s)\n", title, date)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
