package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseRoundTripsResult(t *testing.T) {
	resp, err := OK(RegisterResult{ID: "P01", Token: "tok"})
	require.NoError(t, err)
	require.Nil(t, resp.Err())

	var result RegisterResult
	require.NoError(t, resp.DecodeResult(&result))
	assert.Equal(t, "P01", result.ID)
}

func TestResponseErrCarriesDomainCode(t *testing.T) {
	resp := Err(NewError(CodeUnknownMatch, "match R9M9 was never dispatched"))
	assert.Equal(t, -32005, resp.Error.Code)

	perr := resp.Err()
	require.NotNil(t, perr)
	assert.Equal(t, CodeUnknownMatch, perr.Code)
}

func TestResponseErrCollapsesUnknownCodes(t *testing.T) {
	raw := []byte(`{"error":{"code":-1,"message":"weird","data":{"code":"E_MADE_UP"}}}`)
	var resp Response
	require.NoError(t, json.Unmarshal(raw, &resp))

	perr := resp.Err()
	require.NotNil(t, perr)
	assert.Equal(t, CodeInternal, perr.Code)
	assert.True(t, perr.Retryable())
}

func TestDecodeResultOnErrorResponse(t *testing.T) {
	resp := Err(NewError(CodeUnauthorized, "unknown token"))
	var out Ack
	err := resp.DecodeResult(&out)
	require.Error(t, err)
}

func TestRetryClassification(t *testing.T) {
	for _, code := range []ErrorCode{CodeTimeout, CodeConnection, CodeUnavailable, CodeInternal} {
		assert.True(t, code.Retryable(), "%s should be retryable", code)
	}
	for _, code := range []ErrorCode{
		CodeParse, CodeVersionMismatch, CodeUnknownType, CodeMissingField,
		CodeBadSender, CodeBadTimestamp, CodeBadConversation, CodeInvalidParams,
		CodeInvalidChoice, CodeTokenMissing, CodeUnauthorized,
		CodeDuplicateRegistration, CodeUnsupportedGame, CodeSenderMismatch, CodeUnknownMatch,
	} {
		assert.False(t, code.Retryable(), "%s should not be retryable", code)
	}
}
