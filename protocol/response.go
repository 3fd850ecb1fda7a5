package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ErrorBody is the JSON-RPC style error object returned on the wire: a
// numeric code plus the domain error code string in data.
type ErrorBody struct {
	Code    int       `json:"code"`
	Message string    `json:"message"`
	Data    ErrorData `json:"data"`
}

type ErrorData struct {
	Code ErrorCode `json:"code"`
}

// Response carries either a result or an error, never both.
type Response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorBody      `json:"error,omitempty"`
}

func OK(result any) (Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Response{}, fmt.Errorf("marshal result: %w", err)
	}
	return Response{Result: raw}, nil
}

func Err(e *Error) Response {
	return Response{Error: &ErrorBody{
		Code:    e.Code.Numeric(),
		Message: e.Message,
		Data:    ErrorData{Code: e.Code},
	}}
}

// Err returns the response error as a *Error, or nil on success. Unknown
// domain codes from a misbehaving peer collapse to CodeInternal so that the
// retry classification stays within the closed enumeration.
func (r *Response) Err() *Error {
	if r.Error == nil {
		return nil
	}
	code := r.Error.Data.Code
	if !code.Known() {
		code = CodeInternal
	}
	return &Error{Code: code, Message: r.Error.Message}
}

// DecodeResult strictly decodes the result object into dst.
func (r *Response) DecodeResult(dst any) error {
	if r.Error != nil {
		return r.Err()
	}
	if len(r.Result) == 0 {
		return fmt.Errorf("response has no result")
	}
	dec := json.NewDecoder(bytes.NewReader(r.Result))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
