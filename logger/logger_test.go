package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestNamedAddsComponentAndService(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "debug", Format: "json", Service: "mealmatch", Writer: &buf})

	Named("detector").Info().Str("group_id", "g1").Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "mealmatch", line["service"])
	assert.Equal(t, "detector", line["component"])
	assert.Equal(t, "g1", line["group_id"])
	assert.Equal(t, "hello", line["message"])
}

func TestInitRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "error", Format: "json", Writer: &buf})

	Get().Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	Get().Error().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}
