package engine

import "time"

// PerfHook is called by the HTTP step handler at request start and end
// (spec.md §2, §4.8). Implemented externally by metric sinks (e.g. the
// otel-backed adapter in internal/perfsink); the core only depends on this
// interface.
type PerfHook interface {
	OnRequest(requestName string, start, end time.Time, statusCode int, ok bool, errorMessage string)
}

// NoopPerfHook discards all events; used when no perf hook is configured.
type NoopPerfHook struct{}

func (NoopPerfHook) OnRequest(string, time.Time, time.Time, int, bool, string) {}
