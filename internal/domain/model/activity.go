package model

import (
	"sort"
	"time"
)

// Activity is a single repository event. Activities are immutable once fetched.
type Activity struct {
	Type                 ActivityType
	Title                string
	TitleLocalized       string
	Description          string
	DescriptionLocalized string
	CreatedAt            time.Time
	URL                  string
}

// SortNewestFirst orders activities by CreatedAt descending. Ties keep their
// original relative order.
func SortNewestFirst(activities []Activity) {
	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].CreatedAt.After(activities[j].CreatedAt)
	})
}

// GroupByType buckets activities per type, preserving order within a bucket.
func GroupByType(activities []Activity) map[ActivityType][]Activity {
	groups := make(map[ActivityType][]Activity)
	for _, a := range activities {
		groups[a.Type] = append(groups[a.Type], a)
	}
	return groups
}
