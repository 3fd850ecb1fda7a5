package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/config"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/models"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/protocol"
	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/registry"
)

// Registrar is the slice of the registry the RPC surface needs.
type Registrar interface {
	Register(role models.Role, meta registry.Meta) (*models.Registration, error)
	Authenticate(token string) (*models.Registration, bool)
}

// ReportSink accepts validated result reports from referees.
type ReportSink interface {
	HandleResultReport(ctx context.Context, sender *models.Registration, params protocol.ResultReportParams) *protocol.Error
}

type CoordinatorHandler struct {
	registrar Registrar
	reports   ReportSink
	logger    *slog.Logger
}

func NewCoordinatorHandler(registrar Registrar, reports ReportSink, logger *slog.Logger) *CoordinatorHandler {
	return &CoordinatorHandler{
		registrar: registrar,
		reports:   reports,
		logger:    logger,
	}
}

// RPC is the coordinator's single well-known endpoint. Every call carries
// an envelope; dispatch is an exhaustive switch over the closed message
// type set.
func (h *CoordinatorHandler) RPC(w http.ResponseWriter, r *http.Request) {
	raw, err := ReadBody(w, r)
	if err != nil {
		WriteProtocolError(w, protocol.NewError(protocol.CodeParse, "%v", err))
		return
	}

	env, perr := protocol.Validate(raw)
	if perr != nil {
		WriteProtocolError(w, perr)
		return
	}

	var sender *models.Registration
	if env.MessageType.RequiresAuth() {
		reg, ok := h.registrar.Authenticate(env.AuthToken)
		if !ok {
			WriteProtocolError(w, protocol.NewError(protocol.CodeUnauthorized, "unknown or inactive token"))
			return
		}
		if _, id := env.SenderParts(); id != reg.ID {
			WriteProtocolError(w, protocol.NewError(protocol.CodeSenderMismatch,
				"sender %s does not own the presented token", env.Sender))
			return
		}
		sender = reg
	}

	switch env.MessageType {
	case protocol.MsgRegister:
		h.handleRegister(w, env)
	case protocol.MsgResultReport:
		h.handleResultReport(w, r.Context(), env, sender)
	case protocol.MsgMatchAssign, protocol.MsgMatchInvite, protocol.MsgChoiceRequest,
		protocol.MsgMatchResult, protocol.MsgRoundStart, protocol.MsgStandingsUpdate,
		protocol.MsgTournamentEnd:
		WriteProtocolError(w, protocol.NewError(protocol.CodeUnknownType,
			"coordinator does not serve %s", env.MessageType))
	default:
		WriteProtocolError(w, protocol.NewError(protocol.CodeUnknownType,
			"unknown message type %q", env.MessageType))
	}
}

func (h *CoordinatorHandler) handleRegister(w http.ResponseWriter, env *protocol.Envelope) {
	var params protocol.RegisterParams
	if perr := env.DecodePayload(&params); perr != nil {
		WriteProtocolError(w, perr)
		return
	}
	if !params.Role.Valid() || params.Role == models.RoleCoordinator {
		WriteProtocolError(w, protocol.NewError(protocol.CodeInvalidParams,
			"role %q cannot register", params.Role))
		return
	}
	if len(params.GameTypes) > 0 && !slices.Contains(params.GameTypes, config.GameTypeParity) {
		WriteProtocolError(w, protocol.NewError(protocol.CodeUnsupportedGame,
			"none of the declared game types %v is supported", params.GameTypes))
		return
	}

	reg, err := h.registrar.Register(params.Role, registry.Meta{
		Endpoint:  params.Endpoint,
		GameTypes: params.GameTypes,
	})
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrDuplicateRegistration):
			WriteProtocolError(w, protocol.NewError(protocol.CodeDuplicateRegistration, "%v", err))
		case errors.Is(err, registry.ErrInvalidEndpoint), errors.Is(err, registry.ErrUnknownRole):
			WriteProtocolError(w, protocol.NewError(protocol.CodeInvalidParams, "%v", err))
		default:
			h.logger.Error("registration failed", slog.Any("error", err))
			WriteProtocolError(w, protocol.NewError(protocol.CodeInternal, "registration failed"))
		}
		return
	}

	WriteResult(w, protocol.RegisterResult{ID: reg.ID, Token: reg.Token})
}

func (h *CoordinatorHandler) handleResultReport(w http.ResponseWriter, ctx context.Context, env *protocol.Envelope, sender *models.Registration) {
	if sender.Role != models.RoleReferee {
		WriteProtocolError(w, protocol.NewError(protocol.CodeSenderMismatch,
			"%s may not report results", sender.ID))
		return
	}
	var params protocol.ResultReportParams
	if perr := env.DecodePayload(&params); perr != nil {
		WriteProtocolError(w, perr)
		return
	}
	if perr := h.reports.HandleResultReport(ctx, sender, params); perr != nil {
		WriteProtocolError(w, perr)
		return
	}
	WriteResult(w, protocol.ResultReportResult{Accepted: true})
}
