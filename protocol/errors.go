package protocol

import "fmt"

// ErrorCode is the closed enumeration of domain error codes carried on the
// wire. Every code is classified as retryable or not; the RPC client retries
// only retryable failures.
type ErrorCode string

const (
	// Transport-level, retryable.
	CodeTimeout     ErrorCode = "E_TIMEOUT"
	CodeConnection  ErrorCode = "E_CONNECTION"
	CodeUnavailable ErrorCode = "E_UNAVAILABLE"
	CodeInternal    ErrorCode = "E_INTERNAL"

	// Protocol violations, never retried.
	CodeParse           ErrorCode = "E_PARSE"
	CodeVersionMismatch ErrorCode = "E_VERSION_MISMATCH"
	CodeUnknownType     ErrorCode = "E_UNKNOWN_TYPE"
	CodeMissingField    ErrorCode = "E_MISSING_FIELD"
	CodeBadSender       ErrorCode = "E_BAD_SENDER"
	CodeBadTimestamp    ErrorCode = "E_BAD_TIMESTAMP"
	CodeBadConversation ErrorCode = "E_BAD_CONVERSATION"
	CodeInvalidParams   ErrorCode = "E_INVALID_PARAMS"
	CodeInvalidChoice   ErrorCode = "E_INVALID_CHOICE"

	// Authorization.
	CodeTokenMissing ErrorCode = "E_TOKEN_MISSING"
	CodeUnauthorized ErrorCode = "E_UNAUTHORIZED"

	// Domain rejections.
	CodeDuplicateRegistration ErrorCode = "E_DUPLICATE_REGISTRATION"
	CodeUnsupportedGame       ErrorCode = "E_UNSUPPORTED_GAME"
	CodeSenderMismatch        ErrorCode = "E_SENDER_MISMATCH"
	CodeUnknownMatch          ErrorCode = "E_UNKNOWN_MATCH"
)

var retryable = map[ErrorCode]bool{
	CodeTimeout:     true,
	CodeConnection:  true,
	CodeUnavailable: true,
	CodeInternal:    true,
}

// numericCodes maps domain codes onto JSON-RPC style numeric codes.
var numericCodes = map[ErrorCode]int{
	CodeParse:                 -32700,
	CodeVersionMismatch:       -32600,
	CodeUnknownType:           -32601,
	CodeMissingField:          -32602,
	CodeBadSender:             -32602,
	CodeBadTimestamp:          -32602,
	CodeBadConversation:       -32602,
	CodeInvalidParams:         -32602,
	CodeInvalidChoice:         -32602,
	CodeInternal:              -32000,
	CodeTokenMissing:          -32001,
	CodeUnauthorized:          -32001,
	CodeDuplicateRegistration: -32002,
	CodeUnsupportedGame:       -32003,
	CodeSenderMismatch:        -32004,
	CodeUnknownMatch:          -32005,
	CodeTimeout:               -32050,
	CodeConnection:            -32051,
	CodeUnavailable:           -32052,
}

func (c ErrorCode) Retryable() bool { return retryable[c] }

func (c ErrorCode) Numeric() int {
	if n, ok := numericCodes[c]; ok {
		return n
	}
	return -32000
}

func (c ErrorCode) Known() bool {
	_, ok := numericCodes[c]
	return ok
}

// Error is the explicit failure value used across the protocol boundary.
type Error struct {
	Code    ErrorCode
	Message string
}

func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Retryable() bool { return e.Code.Retryable() }
