// Package protocol defines the wire envelope every agent call carries, its
// pure validator, and the closed enumerations of message types and error
// codes. Validation never performs I/O.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/models"
)

// Version is the fixed protocol literal; envelopes carrying anything else
// are rejected before dispatch.
const Version = "parity-arena/1"

// TimestampFormat is the fixed UTC timestamp layout on the wire.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

type MessageType string

const (
	MsgRegister        MessageType = "register"
	MsgMatchAssign     MessageType = "match_assign"
	MsgMatchInvite     MessageType = "match_invite"
	MsgChoiceRequest   MessageType = "choice_request"
	MsgMatchResult     MessageType = "match_result"
	MsgResultReport    MessageType = "result_report"
	MsgRoundStart      MessageType = "round_start"
	MsgStandingsUpdate MessageType = "standings_update"
	MsgTournamentEnd   MessageType = "tournament_end"
)

var knownTypes = map[MessageType]bool{
	MsgRegister:        true,
	MsgMatchAssign:     true,
	MsgMatchInvite:     true,
	MsgChoiceRequest:   true,
	MsgMatchResult:     true,
	MsgResultReport:    true,
	MsgRoundStart:      true,
	MsgStandingsUpdate: true,
	MsgTournamentEnd:   true,
}

func (t MessageType) Known() bool { return knownTypes[t] }

// RequiresAuth reports whether an envelope of this type must carry a token.
// Only the initial registration call is exempt.
func (t MessageType) RequiresAuth() bool { return t != MsgRegister }

var senderPattern = regexp.MustCompile(`^(coordinator|referee|player):[A-Za-z0-9_-]+$`)

// Envelope is the wire shape of every call. The conversation id is unique
// per logical exchange and correlates retries without duplicating side
// effects.
type Envelope struct {
	ProtocolVersion string          `json:"protocol_version"`
	MessageType     MessageType     `json:"message_type"`
	Sender          string          `json:"sender"`
	Timestamp       string          `json:"timestamp"`
	ConversationID  string          `json:"conversation_id"`
	AuthToken       string          `json:"auth_token,omitempty"`
	Payload         json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope builds an outbound envelope with a fresh conversation id.
func NewEnvelope(t MessageType, role models.Role, senderID, token string, payload any) (Envelope, error) {
	env := Envelope{
		ProtocolVersion: Version,
		MessageType:     t,
		Sender:          fmt.Sprintf("%s:%s", role, senderID),
		Timestamp:       time.Now().UTC().Format(TimestampFormat),
		ConversationID:  uuid.NewString(),
		AuthToken:       token,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("marshal %s payload: %w", t, err)
		}
		env.Payload = raw
	}
	return env, nil
}

// SenderParts splits the validated "{role}:{id}" sender field.
func (e *Envelope) SenderParts() (models.Role, string) {
	for i := 0; i < len(e.Sender); i++ {
		if e.Sender[i] == ':' {
			return models.Role(e.Sender[:i]), e.Sender[i+1:]
		}
	}
	return "", e.Sender
}

// DecodePayload strictly decodes the payload into dst.
func (e *Envelope) DecodePayload(dst any) *Error {
	if len(e.Payload) == 0 {
		return NewError(CodeInvalidParams, "%s payload is empty", e.MessageType)
	}
	dec := json.NewDecoder(bytes.NewReader(e.Payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return NewError(CodeInvalidParams, "decode %s payload: %v", e.MessageType, err)
	}
	return nil
}

// Validate parses and checks a raw envelope. It is pure: no I/O, no clock
// other than parsing the stated timestamp. Token ownership is checked later
// by whoever holds the registry; Validate only enforces presence.
func Validate(raw []byte) (*Envelope, *Error) {
	var env Envelope
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return nil, NewError(CodeParse, "malformed envelope: %v", err)
	}

	if env.ProtocolVersion == "" {
		return nil, NewError(CodeMissingField, "protocol_version is required")
	}
	if env.ProtocolVersion != Version {
		return nil, NewError(CodeVersionMismatch, "protocol version %q, want %q", env.ProtocolVersion, Version)
	}
	if env.MessageType == "" {
		return nil, NewError(CodeMissingField, "message_type is required")
	}
	if !env.MessageType.Known() {
		return nil, NewError(CodeUnknownType, "unknown message type %q", env.MessageType)
	}
	if env.Sender == "" {
		return nil, NewError(CodeMissingField, "sender is required")
	}
	if !senderPattern.MatchString(env.Sender) {
		return nil, NewError(CodeBadSender, "sender %q does not match {role}:{id}", env.Sender)
	}
	if env.Timestamp == "" {
		return nil, NewError(CodeMissingField, "timestamp is required")
	}
	if _, err := time.Parse(TimestampFormat, env.Timestamp); err != nil {
		return nil, NewError(CodeBadTimestamp, "timestamp %q is not %s", env.Timestamp, TimestampFormat)
	}
	if env.ConversationID == "" {
		return nil, NewError(CodeBadConversation, "conversation_id is required")
	}
	if env.MessageType.RequiresAuth() && env.AuthToken == "" {
		return nil, NewError(CodeTokenMissing, "auth_token is required for %s", env.MessageType)
	}
	return &env, nil
}
