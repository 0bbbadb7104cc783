package model

// ActivityType identifies the kind of repository event.
type ActivityType string

const (
	ActivityCommit      ActivityType = "commit"
	ActivityIssue       ActivityType = "issue"
	ActivityPullRequest ActivityType = "pull_request"
	ActivityRelease     ActivityType = "release"
)

// ActivityTypes lists the known activity types in display order.
var ActivityTypes = []ActivityType{
	ActivityCommit,
	ActivityIssue,
	ActivityPullRequest,
	ActivityRelease,
}

// Label returns a plural, human-readable name for the activity type.
func (t ActivityType) Label() string {
	switch t {
	case ActivityCommit:
		return "commits"
	case ActivityIssue:
		return "issues"
	case ActivityPullRequest:
		return "pull requests"
	case ActivityRelease:
		return "releases"
	default:
		return string(t)
	}
}

// Frequency is the wire and storage name of a recurrence variant.
type Frequency string

const (
	FrequencyImmediate Frequency = "immediate"
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
)
