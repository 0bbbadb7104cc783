package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/repodigest/internal/domain/model"
)

// ErrModelUnavailable indicates the language model could not be reached or
// returned an unusable answer.
var ErrModelUnavailable = errors.New("language model unavailable")

// Translator defines the driven port for translating short texts into the
// configured target language.
type Translator interface {
	// TranslateBatch returns one translation per input, in input order. An
	// empty input, or one the model skipped, yields an empty string.
	TranslateBatch(ctx context.Context, texts []string) ([]string, error)
}

// Summarizer defines the driven port for prose summaries of repository
// activity written by a language model.
type Summarizer interface {
	// SummarizeActivity summarizes one repository's activities inside the
	// lookback window.
	SummarizeActivity(ctx context.Context, repoFullName string, activities []model.Activity, lookbackDays int) (string, error)
	// SummarizeTracked writes an overview across tracked repositories.
	SummarizeTracked(ctx context.Context, statuses []model.TrackedRepoStatus) (string, error)
	// SummarizeHot writes an overview of trending repositories.
	SummarizeHot(ctx context.Context, repos []model.Repository) (string, error)
}
