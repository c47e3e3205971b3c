package cli

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gentoomaniac/mboozle/pkg/db"
)

func TestPromptRunsSingleRunSkipsPrompt(t *testing.T) {
	run := &db.Run{ID: 1, UUID: "only"}
	got, err := PromptRuns([]*db.Run{run})
	require.NoError(t, err)
	assert.Same(t, run, got)
}

func TestPromptRunsEmpty(t *testing.T) {
	_, err := PromptRuns(nil)
	assert.True(t, errors.Is(err, ErrNoRuns))
}

func TestNewRunItem(t *testing.T) {
	item := NewRunItem(&db.Run{ID: 3, UUID: "u", Command: "run", Status: db.StatusOK, Started: 100, Finished: 190})
	assert.Equal(t, "1m30s", item.Duration)
	assert.Equal(t, int64(3), item.ID)

	item = NewRunItem(&db.Run{Started: 100})
	assert.Equal(t, "-", item.Duration)
}
