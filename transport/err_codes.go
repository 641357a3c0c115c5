package transport

const (
	CodeDeliveryFailed     = "DELIVERY_FAILED"
	CodeUnexpectedStatus   = "UNEXPECTED_STATUS"
	CodeUnsupportedPayload = "UNSUPPORTED_PAYLOAD"
)
