package remote

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRunner(t *testing.T) {
	var out bytes.Buffer
	res, err := (&CommandRunner{Env: map[string]string{"MBOOZLE_TEST": "hello"}}).
		Run(context.Background(), "sh", []string{"-c", "echo $MBOOZLE_TEST; echo oops >&2"}, &out)
	if err != nil {
		t.Skipf("sh not available: %v", err)
	}
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, out.String(), "hello")
	assert.Contains(t, out.String(), "oops")
}

func TestCommandRunnerExitCode(t *testing.T) {
	res, err := (&CommandRunner{}).Run(context.Background(), "sh", []string{"-c", "exit 3"}, nil)
	if res != nil && res.ExitCode == -1 {
		t.Skipf("sh not available: %v", err)
	}
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommandFailed))
	assert.Equal(t, 3, res.ExitCode)
}

func TestCommandRunnerMissingProgram(t *testing.T) {
	res, err := (&CommandRunner{}).Run(context.Background(), "definitely-not-a-real-binary-mboozle", nil, nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCommandFailed))
	assert.Equal(t, -1, res.ExitCode)
}

func TestLineLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLineLogger(zerolog.New(&buf))

	_, err := l.Write([]byte("Transferred: 1 / 2\rTransferred: 2"))
	require.NoError(t, err)
	_, err = l.Write([]byte(" / 2\n\n"))
	require.NoError(t, err)
	_, err = l.Write([]byte("partial"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"message":"Transferred: 1 / 2"`)
	assert.Contains(t, lines[1], `"message":"Transferred: 2 / 2"`)

	l.Flush()
	assert.Contains(t, buf.String(), `"message":"partial"`)
}
