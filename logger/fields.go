package logger

// Request-scoped keys, also filled from context by WithContext.
const (
	FieldRequestID = "request_id"
	FieldUserID    = "user_id"
	FieldTraceID   = "trace_id"
)

// Keys shared by the backend providers and the gateway.
const (
	FieldComponent = "component"
	FieldProvider  = "provider" // supabase, firebase or hybrid
	FieldFunction  = "function" // remote function name
	FieldAttempt   = "attempt"
	FieldCode      = "code" // AppError code
	FieldStatus    = "status"
	FieldError     = "error"
	FieldDuration  = "duration_ms"
)

// Fields pairs up alternating keys and values. Non-string keys and a
// trailing key without a value are dropped.
//
//	log.Warn("refresh failed", logger.Fields(logger.FieldProvider, "supabase", logger.FieldAttempt, 2))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 1; i < len(kvs); i += 2 {
		key, ok := kvs[i-1].(string)
		if !ok {
			continue
		}
		m[key] = kvs[i]
	}
	return m
}
