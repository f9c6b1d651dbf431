package tracing

// Span names.
const (
	SpanRefreshTick = "refresh.tick"
	SpanReload      = "config.reload"
)

// Span attribute keys.
const (
	AttrElements   = "elements"
	AttrChanged    = "changed"
	AttrFailed     = "failed"
	AttrConfigPath = "config.path"
)
