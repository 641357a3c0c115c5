package notifier

// Severity classifies a reported event.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// normalize maps empty and unknown values to SeverityError.
func (s Severity) normalize() Severity {
	switch s {
	case SeverityError, SeverityWarning, SeverityInfo:
		return s
	default:
		return SeverityError
	}
}
