package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/pkg/errors"

	"github.com/gentoomaniac/mboozle/pkg/db"
)

var ErrNoRuns = errors.New("no runs recorded")

// RunItem is the view of a catalog run shown in the selection prompt.
type RunItem struct {
	ID       int64
	UUID     string
	Command  string
	Status   string
	Started  string
	Duration string
}

func NewRunItem(run *db.Run) RunItem {
	item := RunItem{
		ID:       run.ID,
		UUID:     run.UUID,
		Command:  run.Command,
		Status:   run.Status,
		Started:  time.Unix(run.Started, 0).Format(time.RFC3339),
		Duration: "-",
	}
	if run.Finished >= run.Started && run.Finished > 0 {
		item.Duration = (time.Duration(run.Finished-run.Started) * time.Second).String()
	}
	return item
}

// PromptRuns displays the given runs, newest first as returned by the
// catalog, and lets the user pick one.
func PromptRuns(runs []*db.Run) (*db.Run, error) {
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}
	if len(runs) == 1 {
		return runs[0], nil
	}

	items := make([]RunItem, len(runs))
	for i, run := range runs {
		items[i] = NewRunItem(run)
	}

	runSearchFunc := func(input string, idx int) bool {
		item := items[idx]
		input = strings.ToLower(input)

		return strings.Contains(strings.ToLower(item.UUID), input) ||
			strings.Contains(strings.ToLower(item.Command), input) ||
			strings.Contains(item.Started, input)
	}

	size := len(items)
	if size >= 10 {
		size = 10
	}

	selector := promptui.Select{
		Label:             "Select the run to inspect",
		Items:             items,
		Searcher:          runSearchFunc,
		StartInSearchMode: true,
		HideSelected:      true,
		Size:              size,
		Templates: &promptui.SelectTemplates{
			Active:   fmt.Sprintf("%s {{ .Started | cyan }} {{ .Command }}", promptui.IconSelect),
			Inactive: " {{ .Started }} {{ .Command }}",
			Details: `
{{ "Details:" | bold }}
	{{ "ID:" | bold }}	{{ .ID | cyan }}
	{{ "UUID:" | bold }}	{{ .UUID | cyan }}
	{{ "Status:" | bold }}	{{ .Status | cyan }}
	{{ "Duration:" | bold }}	{{ .Duration | cyan }}
`,
			Selected: "{{ .UUID }}",
		},
	}

	// keep stdout clean for the report printed after the selection
	selector.Stdout = os.Stderr

	index, _, err := selector.Run()
	if err != nil {
		os.Stdout.Sync()
		return nil, err
	}

	return runs[index], nil
}
