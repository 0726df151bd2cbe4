package log_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/sealedml/pkg/log"
)

func TestToLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"off", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, log.ToLogLevel(tt.in))
		})
	}
}

func TestProvider_FieldsAndName(t *testing.T) {
	var buf bytes.Buffer
	p := log.NewZerologProviderWithWriter(&buf, zerolog.DebugLevel)

	logger := p.GetLoggerWithName("emulation").With(log.ComponentKey, "emulator")
	logger.Info("Cluster up",
		log.PartyKey, 3,
		log.BytesKey, uint64(1024),
		log.DurationMsKey, 12.5,
		"err", errors.New("none"),
		"elapsed", 2*time.Millisecond,
	)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Cluster up", entry["message"])
	assert.Equal(t, "emulation", entry["logger"])
	assert.Equal(t, "emulator", entry[log.ComponentKey])
	assert.EqualValues(t, 3, entry[log.PartyKey])
	assert.EqualValues(t, 1024, entry[log.BytesKey])
	assert.Equal(t, "none", entry["err"])
}

func TestProvider_SetLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	p := log.NewZerologProviderWithWriter(&buf, zerolog.InfoLevel)
	p.GetLogger().Debug("hidden")
	assert.Zero(t, buf.Len())

	p.SetLevel(zerolog.DebugLevel)
	p.GetLogger().Debug("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNop(t *testing.T) {
	l := log.Nop().With("k", "v")
	l.Info("nothing", "a", 1)
	l.Error("nothing")
}
