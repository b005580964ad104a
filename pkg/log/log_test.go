package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	logger := WithComponent("scheduler")
	logger.Info().Str("file_id", "f-1").Msg("placement committed")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "scheduler", line["component"])
	assert.Equal(t, "f-1", line["file_id"])
	assert.Equal(t, "placement committed", line["message"])
	assert.Equal(t, "info", line["level"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: WarnLevel, JSONOutput: true, Output: &buf})
	defer Init(Config{Level: InfoLevel, Output: &bytes.Buffer{}})

	Logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	Logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")

	Init(Config{Level: "verbose", JSONOutput: true, Output: &buf})
	Logger.Debug().Msg("dropped")
	assert.NotContains(t, buf.String(), "dropped", "unknown level logs at info")
}

func TestChildLoggers(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	l := WithStrategy("exhaustive")
	l.Info().Msg("x")
	assert.Contains(t, buf.String(), `"strategy":"exhaustive"`)

	buf.Reset()
	l = WithFileID("f-9")
	l.Info().Msg("x")
	assert.Contains(t, buf.String(), `"file_id":"f-9"`)

	buf.Reset()
	l = WithNodeID("n-1")
	l.Info().Msg("x")
	assert.Contains(t, buf.String(), `"node_id":"n-1"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InfoLevel, ParseLevel("verbose"))
}
