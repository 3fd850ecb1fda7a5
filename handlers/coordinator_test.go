package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/models"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/protocol"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSink struct {
	calls []protocol.ResultReportParams
	reply *protocol.Error
}

func (s *recordingSink) HandleResultReport(_ context.Context, _ *models.Registration, params protocol.ResultReportParams) *protocol.Error {
	s.calls = append(s.calls, params)
	return s.reply
}

func postEnvelope(t *testing.T, h *CoordinatorHandler, env protocol.Envelope) (*httptest.ResponseRecorder, protocol.Response) {
	t.Helper()
	raw, err := json.Marshal(env)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h.RPC(rec, req)

	var resp protocol.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec, resp
}

func TestRPCRegisterIssuesIdentityAndToken(t *testing.T) {
	reg := registry.New(testLogger())
	h := NewCoordinatorHandler(reg, &recordingSink{}, testLogger())

	env, err := protocol.NewEnvelope(protocol.MsgRegister, models.RolePlayer, "unregistered", "", protocol.RegisterParams{
		Role:      models.RolePlayer,
		GameTypes: []string{"parity"},
		Endpoint:  "http://127.0.0.1:8100/rpc",
	})
	require.NoError(t, err)

	rec, resp := postEnvelope(t, h, env)
	require.Equal(t, http.StatusOK, rec.Code)

	var result protocol.RegisterResult
	require.NoError(t, resp.DecodeResult(&result))
	assert.Equal(t, "P01", result.ID)
	assert.GreaterOrEqual(t, len(result.Token), 32)
}

func TestRPCRegisterDuplicateEndpoint(t *testing.T) {
	reg := registry.New(testLogger())
	h := NewCoordinatorHandler(reg, &recordingSink{}, testLogger())

	env, err := protocol.NewEnvelope(protocol.MsgRegister, models.RolePlayer, "unregistered", "", protocol.RegisterParams{
		Role: models.RolePlayer, Endpoint: "http://127.0.0.1:8100/rpc",
	})
	require.NoError(t, err)

	rec, _ := postEnvelope(t, h, env)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, resp := postEnvelope(t, h, env)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, resp.Err())
	assert.Equal(t, protocol.CodeDuplicateRegistration, resp.Err().Code)
}

func TestRPCRegisterRejectsCoordinatorRole(t *testing.T) {
	h := NewCoordinatorHandler(registry.New(testLogger()), &recordingSink{}, testLogger())

	env, err := protocol.NewEnvelope(protocol.MsgRegister, models.RoleCoordinator, "C02", "", protocol.RegisterParams{
		Role: models.RoleCoordinator, Endpoint: "http://127.0.0.1:9999/rpc",
	})
	require.NoError(t, err)

	_, resp := postEnvelope(t, h, env)
	require.NotNil(t, resp.Err())
	assert.Equal(t, protocol.CodeInvalidParams, resp.Err().Code)
}

func TestRPCRegisterRejectsUnsupportedGames(t *testing.T) {
	h := NewCoordinatorHandler(registry.New(testLogger()), &recordingSink{}, testLogger())

	env, err := protocol.NewEnvelope(protocol.MsgRegister, models.RolePlayer, "unregistered", "", protocol.RegisterParams{
		Role: models.RolePlayer, GameTypes: []string{"chess"}, Endpoint: "http://127.0.0.1:8100/rpc",
	})
	require.NoError(t, err)

	_, resp := postEnvelope(t, h, env)
	require.NotNil(t, resp.Err())
	assert.Equal(t, protocol.CodeUnsupportedGame, resp.Err().Code)
}

func TestRPCResultReportRequiresValidToken(t *testing.T) {
	h := NewCoordinatorHandler(registry.New(testLogger()), &recordingSink{}, testLogger())

	env, err := protocol.NewEnvelope(protocol.MsgResultReport, models.RoleReferee, "R01", "forged-token",
		protocol.ResultReportParams{})
	require.NoError(t, err)

	rec, resp := postEnvelope(t, h, env)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, resp.Err())
	assert.Equal(t, protocol.CodeUnauthorized, resp.Err().Code)
}

func TestRPCResultReportRejectsBorrowedToken(t *testing.T) {
	reg := registry.New(testLogger())
	r1, err := reg.Register(models.RoleReferee, registry.Meta{Endpoint: "http://127.0.0.1:8200/rpc"})
	require.NoError(t, err)

	h := NewCoordinatorHandler(reg, &recordingSink{}, testLogger())

	// R02 presents R01's token.
	env, err := protocol.NewEnvelope(protocol.MsgResultReport, models.RoleReferee, "R02", r1.Token,
		protocol.ResultReportParams{})
	require.NoError(t, err)

	rec, resp := postEnvelope(t, h, env)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	require.NotNil(t, resp.Err())
	assert.Equal(t, protocol.CodeSenderMismatch, resp.Err().Code)
}

func TestRPCResultReportRejectsPlayers(t *testing.T) {
	reg := registry.New(testLogger())
	p1, err := reg.Register(models.RolePlayer, registry.Meta{Endpoint: "http://127.0.0.1:8100/rpc"})
	require.NoError(t, err)

	sink := &recordingSink{}
	h := NewCoordinatorHandler(reg, sink, testLogger())

	env, err := protocol.NewEnvelope(protocol.MsgResultReport, models.RolePlayer, p1.ID, p1.Token,
		protocol.ResultReportParams{})
	require.NoError(t, err)

	_, resp := postEnvelope(t, h, env)
	require.NotNil(t, resp.Err())
	assert.Equal(t, protocol.CodeSenderMismatch, resp.Err().Code)
	assert.Empty(t, sink.calls)
}

func TestRPCResultReportReachesSink(t *testing.T) {
	reg := registry.New(testLogger())
	r1, err := reg.Register(models.RoleReferee, registry.Meta{Endpoint: "http://127.0.0.1:8200/rpc"})
	require.NoError(t, err)

	sink := &recordingSink{}
	h := NewCoordinatorHandler(reg, sink, testLogger())

	env, err := protocol.NewEnvelope(protocol.MsgResultReport, models.RoleReferee, r1.ID, r1.Token,
		protocol.ResultReportParams{Result: models.MatchResult{
			MatchID: "R1M1", Round: 1, PlayerA: "P01", PlayerB: "P02", Outcome: models.OutcomeWinA,
		}})
	require.NoError(t, err)

	rec, resp := postEnvelope(t, h, env)
	require.Equal(t, http.StatusOK, rec.Code)

	var result protocol.ResultReportResult
	require.NoError(t, resp.DecodeResult(&result))
	assert.True(t, result.Accepted)
	require.Len(t, sink.calls, 1)
	assert.Equal(t, "R1M1", sink.calls[0].Result.MatchID)
}

func TestRPCRejectsTypesTheCoordinatorDoesNotServe(t *testing.T) {
	reg := registry.New(testLogger())
	r1, err := reg.Register(models.RoleReferee, registry.Meta{Endpoint: "http://127.0.0.1:8200/rpc"})
	require.NoError(t, err)

	h := NewCoordinatorHandler(reg, &recordingSink{}, testLogger())

	env, err := protocol.NewEnvelope(protocol.MsgChoiceRequest, models.RoleReferee, r1.ID, r1.Token,
		protocol.ChoiceRequestParams{MatchID: "R1M1"})
	require.NoError(t, err)

	_, resp := postEnvelope(t, h, env)
	require.NotNil(t, resp.Err())
	assert.Equal(t, protocol.CodeUnknownType, resp.Err().Code)
}

func TestRPCRejectsMalformedEnvelope(t *testing.T) {
	h := NewCoordinatorHandler(registry.New(testLogger()), &recordingSink{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.RPC(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp protocol.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Err())
	assert.Equal(t, protocol.CodeParse, resp.Err().Code)
}
