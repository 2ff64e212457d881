package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/bool64/ctxd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestLogger_levels(t *testing.T) {
	buf := &bytes.Buffer{}
	l, err := New(buf, "backlog", "warn")
	require.NoError(t, err)

	ctx := context.Background()
	l.Debug(ctx, "hidden")
	l.Info(ctx, "hidden too")
	l.Warn(ctx, "shown", "feed", "F")
	l.Error(ctx, "failed", "error", errors.New("boom"))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "shown", lines[0]["message"])
	assert.Equal(t, "F", lines[0]["feed"])
	assert.Equal(t, "boom", lines[1]["error"])
}

func TestLogger_contextFields(t *testing.T) {
	buf := &bytes.Buffer{}
	l, err := New(buf, "backlog", "debug")
	require.NoError(t, err)

	ctx := ctxd.AddFields(context.Background(), "task", "tv")
	l.Important(ctx, "restored", "count", 2, "dangling")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "tv", lines[0]["task"])
	assert.Equal(t, float64(2), lines[0]["count"])
	assert.Equal(t, true, lines[0]["important"])
	assert.Equal(t, "dangling", lines[0]["!BADKEY"])
}

func TestParseLevel(t *testing.T) {
	for _, lvl := range []string{"debug", "INFO", "", "warning", "error", "off"} {
		_, err := ParseLevel(lvl)
		assert.NoError(t, err, lvl)
	}
	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}
