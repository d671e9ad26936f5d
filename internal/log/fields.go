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
	FieldUserAgent     = "user_agent"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldUserID        = "user_id"
	FieldTransactionID = "transaction_id"
	FieldCategoryID    = "category_id"
	FieldKind          = "kind"
	FieldAmount        = "amount"
	FieldRowsRead      = "rows_read"
	FieldRowsImported  = "rows_imported"
	FieldRowsSkipped   = "rows_skipped"
	FieldNewCategories = "new_categories"
	FieldDecision      = "decision"
	FieldPolicy        = "policy"
	FieldBalance       = "balance"
	FieldProspective   = "prospective_balance"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentImport  = "import"
	ComponentLedger  = "ledger"
	ComponentGuard   = "guard"
	ComponentExport  = "export"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
	ComponentCache   = "cache"
	ComponentBackend = "backend"
	ComponentCLI     = "cli"
)

// Operations defines standard operation names
const (
	OpImport = "import"
	OpSubmit = "submit"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithClientIP(ip string) LogFields {
	f[FieldClientIP] = ip
	return f
}

// WithError adds the error message; nil errors are ignored.
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

// WithTransaction adds transaction fields. amount is the decimal string.
func (f LogFields) WithTransaction(id, kind, amount, categoryID string) LogFields {
	if id != "" {
		f[FieldTransactionID] = id
	}
	f[FieldKind] = kind
	f[FieldAmount] = amount
	f[FieldCategoryID] = categoryID
	return f
}

// WithImport adds import outcome counters.
func (f LogFields) WithImport(read, imported, skipped, newCategories int) LogFields {
	f[FieldRowsRead] = read
	f[FieldRowsImported] = imported
	f[FieldRowsSkipped] = skipped
	f[FieldNewCategories] = newCategories
	return f
}

// WithDecision adds negative balance guard fields.
func (f LogFields) WithDecision(decision, policy, balance, prospective string) LogFields {
	f[FieldDecision] = decision
	f[FieldPolicy] = policy
	f[FieldBalance] = balance
	f[FieldProspective] = prospective
	return f
}

func (f LogFields) WithHTTPRequest(method, path, query, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldQuery] = query
	f[FieldUserAgent] = userAgent
	return f
}

func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice converts LogFields to a slice for slog. The component key is left
// out since Logger adds its own.
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		if k == FieldComponent {
			continue
		}
		slice = append(slice, k, v)
	}
	return slice
}
