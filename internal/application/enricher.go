package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/repodigest/internal/domain/model"
	"github.com/ericfisherdev/repodigest/internal/domain/port/driven"
)

const (
	// maxLocalizedActivities bounds how many of the newest activities are
	// translated per refresh.
	maxLocalizedActivities = 50

	// translateBatchSize is the number of texts sent to the model per call.
	translateBatchSize = 20

	// maxTranslatedRunes clips long descriptions before translation.
	maxTranslatedRunes = 400
)

// SummarySource tells whether a summary was written by the language model or
// built from activity counts.
type SummarySource string

const (
	SummaryFromModel SummarySource = "model"
	SummaryBuiltin   SummarySource = "builtin"
)

// Enricher adds language model output to fetched data: localized titles and
// descriptions, and prose summaries. Either collaborator may be nil, and a nil
// *Enricher is valid; missing or failing collaborators leave data as fetched.
type Enricher struct {
	translator driven.Translator
	summarizer driven.Summarizer
	now        func() time.Time
}

// NewEnricher creates an Enricher. now may be nil, in which case time.Now is used.
func NewEnricher(translator driven.Translator, summarizer driven.Summarizer, now func() time.Time) *Enricher {
	if now == nil {
		now = time.Now
	}
	return &Enricher{translator: translator, summarizer: summarizer, now: now}
}

// CanTranslate reports whether a translator is configured.
func (e *Enricher) CanTranslate() bool { return e != nil && e.translator != nil }

// CanSummarize reports whether a summarizer is configured.
func (e *Enricher) CanSummarize() bool { return e != nil && e.summarizer != nil }

// LocalizeActivities returns a newest-first copy of activities with the
// localized fields of the newest ones filled in. A failed translation is
// logged and leaves the localized fields empty.
func (e *Enricher) LocalizeActivities(ctx context.Context, fullName string, activities []model.Activity) []model.Activity {
	out := make([]model.Activity, len(activities))
	copy(out, activities)
	if !e.CanTranslate() || len(out) == 0 {
		return out
	}

	model.SortNewestFirst(out)
	n := min(len(out), maxLocalizedActivities)

	texts := make([]string, 0, 2*n)
	for _, a := range out[:n] {
		texts = append(texts, a.Title, clipRunes(a.Description, maxTranslatedRunes))
	}

	translated, err := e.translate(ctx, texts)
	if err != nil {
		slog.Warn("activity translation failed", "repo", fullName, "error", err)
		return out
	}

	for i := range n {
		out[i].TitleLocalized = translated[2*i]
		out[i].DescriptionLocalized = translated[2*i+1]
	}
	return out
}

// LocalizeRepositories returns a copy of repos with DescriptionLocalized
// filled in. A failed translation is logged and returns the copy unchanged.
func (e *Enricher) LocalizeRepositories(ctx context.Context, repos []model.Repository) []model.Repository {
	out := make([]model.Repository, len(repos))
	copy(out, repos)
	if !e.CanTranslate() || len(out) == 0 {
		return out
	}

	texts := make([]string, len(out))
	for i, r := range out {
		texts[i] = clipRunes(r.Description, maxTranslatedRunes)
	}

	translated, err := e.translate(ctx, texts)
	if err != nil {
		slog.Warn("repository translation failed", "repos", len(out), "error", err)
		return out
	}

	for i := range out {
		out[i].DescriptionLocalized = translated[i]
	}
	return out
}

// translate sends texts in batches and returns one translation per text.
func (e *Enricher) translate(ctx context.Context, texts []string) ([]string, error) {
	out := make([]string, 0, len(texts))
	for start := 0; start < len(texts); start += translateBatchSize {
		batch := texts[start:min(start+translateBatchSize, len(texts))]

		translated, err := e.translator.TranslateBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(translated) != len(batch) {
			return nil, fmt.Errorf("translate batch: got %d results for %d texts: %w",
				len(translated), len(batch), driven.ErrModelUnavailable)
		}
		out = append(out, translated...)
	}
	return out, nil
}

// SummarizeActivity asks the model for a summary of one repository. It
// returns "" when no summarizer is configured or the model fails, in which
// case the caller keeps the built-in summary.
func (e *Enricher) SummarizeActivity(ctx context.Context, fullName string, activities []model.Activity, lookbackDays int) string {
	if !e.CanSummarize() {
		return ""
	}

	summary, err := e.summarizer.SummarizeActivity(ctx, fullName, activities, lookbackDays)
	if err != nil {
		slog.Warn("activity summary failed, using built-in summary", "repo", fullName, "error", err)
		return ""
	}
	return strings.TrimSpace(summary)
}

// SummarizeTracked writes an overview of the tracked repositories evaluated
// against lookbackDays. Without a working model it lists each repository's
// built-in summary.
func (e *Enricher) SummarizeTracked(ctx context.Context, statuses []model.TrackedRepoStatus, lookbackDays int) (string, SummarySource) {
	if len(statuses) == 0 {
		return "No tracked repositories.", SummaryBuiltin
	}

	if e.CanSummarize() {
		summary, err := e.summarizer.SummarizeTracked(ctx, statuses)
		if err == nil && strings.TrimSpace(summary) != "" {
			return strings.TrimSpace(summary), SummaryFromModel
		}
		slog.Warn("tracked summary failed, using built-in summary", "repos", len(statuses), "error", err)
	}

	now := time.Now
	if e != nil {
		now = e.now
	}

	var b strings.Builder
	for _, s := range statuses {
		if s.LastCheckedAt == nil {
			fmt.Fprintf(&b, "%s: not refreshed yet.\n", s.FullName)
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", s.FullName, Summarize(s.Activities, lookbackDays, now()))
	}
	return strings.TrimRight(b.String(), "\n"), SummaryBuiltin
}

// SummarizeHot writes an overview of trending repositories created in the
// last days days. Without a working model it names the most starred ones.
func (e *Enricher) SummarizeHot(ctx context.Context, repos []model.Repository, days int) (string, SummarySource) {
	if len(repos) == 0 {
		return fmt.Sprintf("No repositories created in the last %s.", pluralDays(days)), SummaryBuiltin
	}

	if e.CanSummarize() {
		summary, err := e.summarizer.SummarizeHot(ctx, repos)
		if err == nil && strings.TrimSpace(summary) != "" {
			return strings.TrimSpace(summary), SummaryFromModel
		}
		slog.Warn("hot summary failed, using built-in summary", "repos", len(repos), "error", err)
	}

	top := repos[:min(len(repos), 3)]
	names := make([]string, len(top))
	for i, r := range top {
		names[i] = fmt.Sprintf("%s (%d stars)", r.FullName, r.Stars)
	}
	return fmt.Sprintf("%d repositories created in the last %s. Most starred: %s.",
		len(repos), pluralDays(days), strings.Join(names, ", ")), SummaryBuiltin
}

func clipRunes(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
