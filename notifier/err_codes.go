package notifier

const (
	CodeMissingAPIKey = "MISSING_API_KEY"
	CodeInvalidConfig = "INVALID_CONFIG"
	CodeClosed        = "NOTIFIER_CLOSED"
)
