package telemetry

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
)

const instrumentationName = "github.com/arkade-os/swapd"

type otelHook struct{}

// NewOTelHook forwards logrus entries to the global OTel logger provider.
func NewOTelHook() log.Hook {
	return otelHook{}
}

func (otelHook) Levels() []log.Level {
	return log.AllLevels
}

func (otelHook) Fire(entry *log.Entry) error {
	var record otellog.Record
	record.SetTimestamp(entry.Time)
	record.SetBody(otellog.StringValue(entry.Message))
	record.SetSeverity(severity(entry.Level))
	record.SetSeverityText(entry.Level.String())
	for key, value := range entry.Data {
		record.AddAttributes(attributeOf(key, value))
	}

	ctx := entry.Context
	if ctx == nil {
		ctx = context.Background()
	}
	global.GetLoggerProvider().Logger(instrumentationName).Emit(ctx, record)
	return nil
}

func attributeOf(key string, value any) otellog.KeyValue {
	switch v := value.(type) {
	case string:
		return otellog.String(key, v)
	case bool:
		return otellog.Bool(key, v)
	case int:
		return otellog.Int(key, v)
	case int64:
		return otellog.Int64(key, v)
	case uint32:
		return otellog.Int64(key, int64(v))
	case float64:
		return otellog.Float64(key, v)
	case error:
		return otellog.String(key, v.Error())
	default:
		return otellog.String(key, fmt.Sprintf("%v", v))
	}
}

func severity(level log.Level) otellog.Severity {
	switch level {
	case log.TraceLevel:
		return otellog.SeverityTrace
	case log.DebugLevel:
		return otellog.SeverityDebug
	case log.InfoLevel:
		return otellog.SeverityInfo
	case log.WarnLevel:
		return otellog.SeverityWarn
	case log.ErrorLevel:
		return otellog.SeverityError
	case log.FatalLevel:
		return otellog.SeverityFatal
	default:
		return otellog.SeverityFatal4
	}
}
