package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/ericfisherdev/repodigest/internal/domain/model"
)

// Summarize builds a short plain-text description of the activities that fall
// inside the lookback window ending at now: per-type counts, the busiest day
// and the daily mean.
func Summarize(activities []model.Activity, lookbackDays int, now time.Time) string {
	if lookbackDays < 1 {
		lookbackDays = 1
	}
	cutoff := model.WindowStart(lookbackDays, now)

	counts := make(map[model.ActivityType]int)
	perDay := make(stats.Float64Data, lookbackDays)
	var total int

	for _, a := range activities {
		if !a.CreatedAt.After(cutoff) {
			continue
		}
		total++
		counts[a.Type]++

		day := int(now.Sub(a.CreatedAt) / (24 * time.Hour))
		if day < 0 {
			day = 0
		}
		if day >= lookbackDays {
			day = lookbackDays - 1
		}
		perDay[day]++
	}

	if total == 0 {
		return fmt.Sprintf("No activity in the last %s.", pluralDays(lookbackDays))
	}

	parts := make([]string, 0, len(model.ActivityTypes))
	for _, t := range model.ActivityTypes {
		if n := counts[t]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", t.Label(), n))
		}
	}

	busiest, _ := stats.Max(perDay)
	mean, _ := stats.Mean(perDay)

	return fmt.Sprintf("%d activities in the last %s (%s). Busiest day: %.0f, average %.1f per day.",
		total, pluralDays(lookbackDays), strings.Join(parts, ", "), busiest, mean)
}

func pluralDays(n int) string {
	if n == 1 {
		return "day"
	}
	return fmt.Sprintf("%d days", n)
}
