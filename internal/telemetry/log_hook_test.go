package telemetry

import (
	"errors"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
)

func TestOTelHook(t *testing.T) {
	hook := NewOTelHook()
	require.Len(t, hook.Levels(), len(log.AllLevels))

	entry := log.NewEntry(log.New()).WithFields(log.Fields{
		"op":    "settle_swap_request",
		"opId":  uint32(7),
		"error": errors.New("boom"),
	})
	entry.Time = time.Now()
	entry.Level = log.WarnLevel
	entry.Message = "settlement failed"
	require.NoError(t, hook.Fire(entry))
}

func TestSeverity(t *testing.T) {
	require.Equal(t, otellog.SeverityDebug, severity(log.DebugLevel))
	require.Equal(t, otellog.SeverityWarn, severity(log.WarnLevel))
	require.Equal(t, otellog.SeverityFatal4, severity(log.PanicLevel))

	kv := attributeOf("opId", uint32(7))
	require.Equal(t, int64(7), kv.Value.AsInt64())
	kv = attributeOf("error", errors.New("boom"))
	require.Equal(t, "boom", kv.Value.AsString())
}
