package hub

// Error is the outcome reported to registration callbacks.
// ErrorNone means success; every other value implements error.
type Error int

// Registration outcomes.
const (
	ErrorNone Error = iota
	ErrorDuplicateExtensionName
	ErrorExtensionInitializationFailure
	ErrorInvalidExtensionName
	ErrorExtensionNotRegistered
	ErrorUnknown
)

// String returns a string representation of the error.
func (e Error) String() string {
	switch e {
	case ErrorNone:
		return "none"
	case ErrorDuplicateExtensionName:
		return "duplicate_extension_name"
	case ErrorExtensionInitializationFailure:
		return "extension_initialization_failure"
	case ErrorInvalidExtensionName:
		return "invalid_extension_name"
	case ErrorExtensionNotRegistered:
		return "extension_not_registered"
	default:
		return "unknown"
	}
}

// Error implements error.
func (e Error) Error() string {
	return "eventhub: " + e.String()
}

// Err returns nil for ErrorNone and e otherwise, for callers that prefer
// plain error handling.
func (e Error) Err() error {
	if e == ErrorNone {
		return nil
	}
	return e
}
