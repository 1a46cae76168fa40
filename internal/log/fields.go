package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldDurationHuman = "duration_human"
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldBackend       = "backend"
	FieldTxType        = "transaction_type"
	FieldStart         = "start"
	FieldEnd           = "end"
	FieldCount         = "count"
	FieldTotalCents    = "total_cents"
	FieldBatchID       = "batch_id"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentPipeline  = "pipeline"
	ComponentDataset   = "dataset"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
	ComponentSecurity  = "security"
	ComponentRateLimit = "rate_limit"
	ComponentExport    = "export"
	ComponentCLI       = "cli"
)

// Operations defines standard operation names
const (
	OpLoad     = "load"
	OpFilter   = "filter"
	OpValidate = "validate"
	OpIngest   = "ingest"
	OpPublish  = "publish"
	OpRender   = "render"
	OpExport   = "export"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithFilter adds the filter inputs of a pipeline run
func (f LogFields) WithFilter(txType, start, end string) LogFields {
	f[FieldTxType] = txType
	f[FieldStart] = start
	f[FieldEnd] = end
	return f
}

// WithResult adds the outcome of a filter pass
func (f LogFields) WithResult(count int, totalCents int64) LogFields {
	f[FieldCount] = count
	f[FieldTotalCents] = totalCents
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = statusCode < 400
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
