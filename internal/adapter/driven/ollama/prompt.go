package ollama

import (
	"embed"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/ericfisherdev/repodigest/internal/domain/model"
)

const (
	// maxPromptActivities bounds the activities listed in a single
	// repository summary prompt.
	maxPromptActivities = 30

	// activitiesPerTrackedRepo bounds the activities listed per repository
	// in the tracked overview prompt.
	activitiesPerTrackedRepo = 5

	// maxPromptDescription clips activity descriptions inside prompts.
	maxPromptDescription = 200
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

type translateItem struct {
	Number int
	Text   string
}

type translateData struct {
	Language string
	Items    []translateItem
}

type promptActivity struct {
	Type        string
	Title       string
	Description string
}

type activityData struct {
	Repo       string
	Days       int
	Language   string
	Activities []promptActivity
}

type trackedRepo struct {
	Name       string
	Activities []promptActivity
}

type trackedData struct {
	Language string
	Repos    []trackedRepo
}

type hotRepo struct {
	Name        string
	Description string
	Stars       int
	Forks       int
	UpdatedAt   string
}

type hotData struct {
	Language string
	Repos    []hotRepo
}

func render(name string, data any) (string, error) {
	var b strings.Builder
	if err := prompts.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return b.String(), nil
}

// promptActivities converts at most limit activities for a prompt.
func promptActivities(activities []model.Activity, limit int) []promptActivity {
	n := min(len(activities), limit)
	out := make([]promptActivity, 0, n)
	for _, a := range activities[:n] {
		desc := []rune(singleLine(a.Description))
		if len(desc) > maxPromptDescription {
			desc = append(desc[:maxPromptDescription], '…')
		}
		out = append(out, promptActivity{
			Type:        string(a.Type),
			Title:       singleLine(a.Title),
			Description: string(desc),
		})
	}
	return out
}

// singleLine collapses all whitespace runs, newlines included, to one space.
func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// numberedLine matches "3: text", "3. text", "3) text" and the full-width
// colon some models emit for CJK output.
var numberedLine = regexp.MustCompile(`^\s*(\d+)\s*(?:[:.)]|：)\s*(.*)$`)

// parseNumberedLines stores each "N: text" line of answer at out[N-1] and
// returns how many lines it stored. Numbers outside out are ignored.
func parseNumberedLines(answer string, out []string) int {
	stored := 0
	for _, line := range strings.Split(answer, "\n") {
		m := numberedLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(out) {
			continue
		}
		out[n-1] = strings.TrimSpace(m[2])
		stored++
	}
	return stored
}
