package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("hrcrm-reports")

func startSpan(ctx context.Context, name string, userID int) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "reports."+name)
	if userID > 0 {
		span.SetAttributes(attribute.Int("report.user_id", userID))
	}
	return ctx, span
}

func reportCacheEnabled() bool {
	if config.ReportCacheDisabled() || config.GetRedisDB() == nil {
		return false
	}
	return reportCacheTTL() > 0
}

func reportCacheTTL() time.Duration {
	s, err := config.LoadSettings()
	if err != nil {
		return 0
	}
	return time.Duration(s.App.ReportCacheTTLSeconds) * time.Second
}

func reportSlowMs() int64 {
	s, err := config.LoadSettings()
	if err != nil || s.App.ReportSlowMs <= 0 {
		return 1500
	}
	return int64(s.App.ReportSlowMs)
}

func logSlowReport(ctx context.Context, name string, started time.Time, extra map[string]any) {
	d := time.Since(started)
	if d.Milliseconds() < reportSlowMs() {
		return
	}
	fields := logrus.Fields{
		"module": "reports",
		"report": name,
		"ms":     d.Milliseconds(),
		"extra":  extra,
	}
	if uid, ok := utils.GetUserIdFromContext(ctx); ok {
		fields["user_id"] = uid
	}
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		fields["correlation_id"] = cid
	}
	config.GetLogger().WithFields(fields).Warn("slow_report")
}

// reportKey builds "report:<name>:<part>:<part>...".
func reportKey(name string, parts ...any) string {
	var b strings.Builder
	b.WriteString("report:")
	b.WriteString(name)
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(fmt.Sprint(p))
	}
	return b.String()
}

func cacheGet[T any](key string, dest *T) (bool, error) {
	return config.GetRedisObject(key, dest)
}

func cacheSet(key string, obj any, ttl time.Duration) error {
	return config.SetRedisObject(key, obj, ttl)
}

// cached wraps compute with the redis report cache. Cache failures are logged
// and never fail the report. Results compute marks as not storable are
// returned without being cached.
func cached[T any](ctx context.Context, key string, compute func() (T, bool, error)) (T, error) {
	if !reportCacheEnabled() {
		out, _, err := compute()
		return out, err
	}
	var hit T
	if ok, err := cacheGet(key, &hit); err != nil {
		config.LogError(config.GetLogger(), "reports", "cacheGet", key, nil, err)
	} else if ok {
		return hit, nil
	}
	out, store, err := compute()
	if err != nil || !store {
		return out, err
	}
	if err := cacheSet(key, out, reportCacheTTL()); err != nil {
		config.LogError(config.GetLogger(), "reports", "cacheSet", key, nil, err)
	}
	return out, nil
}
