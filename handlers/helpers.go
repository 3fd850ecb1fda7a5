package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/protocol"
)

const maxBodyBytes = 1 << 20 // 1MB

// ReadBody drains a size-limited request body for envelope validation.
func ReadBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	return raw, nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}
	js = append(js, '\n')

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

// WriteResult responds with a successful protocol response object.
func WriteResult(w http.ResponseWriter, result any) {
	resp, err := protocol.OK(result)
	if err != nil {
		WriteProtocolError(w, protocol.NewError(protocol.CodeInternal, "encode result: %v", err))
		return
	}
	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// WriteProtocolError responds with a protocol error object at the HTTP
// status the domain code maps to.
func WriteProtocolError(w http.ResponseWriter, e *protocol.Error) {
	if err := writeJSON(w, httpStatus(e.Code), protocol.Err(e)); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func httpStatus(code protocol.ErrorCode) int {
	switch code {
	case protocol.CodeTokenMissing, protocol.CodeUnauthorized:
		return http.StatusUnauthorized
	case protocol.CodeSenderMismatch:
		return http.StatusForbidden
	case protocol.CodeUnknownMatch:
		return http.StatusNotFound
	case protocol.CodeDuplicateRegistration:
		return http.StatusConflict
	case protocol.CodeTimeout:
		return http.StatusGatewayTimeout
	case protocol.CodeUnavailable, protocol.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// readJSON strictly decodes an operator request body.
func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("body contains invalid JSON: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}
	return nil
}

type jsonResponse map[string]interface{}

func errorResponse(w http.ResponseWriter, status int, message interface{}) {
	_ = writeJSON(w, status, jsonResponse{"error": message})
}
