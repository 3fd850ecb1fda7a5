// Package registry owns agent registration: identity issue, token issue,
// duplicate detection and token authentication. All state is in memory;
// the hot path never touches disk. Reads vastly outnumber writes, so a
// single RWMutex over plain maps is enough.
package registry

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/igornazarenko434/LLM-Agent-Orchestration-HW7-sub001/models"
)

var (
	ErrDuplicateRegistration = errors.New("agent is already registered")
	ErrUnknownRole           = errors.New("role cannot register")
	ErrInvalidEndpoint       = errors.New("callback endpoint is required")
	ErrNotFound              = errors.New("registration not found")
)

// tokenBytes yields 64 hex characters, double the required minimum of 32.
const tokenBytes = 32

// Meta is the metadata an agent supplies when registering. The declared
// endpoint doubles as the duplicate-detection key.
type Meta struct {
	Endpoint  string
	GameTypes []string
}

type Registry struct {
	mu         sync.RWMutex
	byID       map[string]*models.Registration
	byEndpoint map[string]string // normalized endpoint -> id
	byToken    map[string]string // token -> id
	seq        map[models.Role]int

	logger *slog.Logger
	tokens io.Reader
}

type Option func(*Registry)

// WithTokenSource overrides the randomness source for token generation.
func WithTokenSource(r io.Reader) Option {
	return func(reg *Registry) { reg.tokens = r }
}

func New(logger *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		byID:       make(map[string]*models.Registration),
		byEndpoint: make(map[string]string),
		byToken:    make(map[string]string),
		seq:        make(map[models.Role]int),
		logger:     logger,
		tokens:     rand.Reader,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var rolePrefix = map[models.Role]string{
	models.RolePlayer:  "P",
	models.RoleReferee: "R",
}

// Register issues a fresh identity and token, or fails if the declared
// endpoint has already registered.
func (r *Registry) Register(role models.Role, meta Meta) (*models.Registration, error) {
	prefix, ok := rolePrefix[role]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	endpoint := normalizeEndpoint(meta.Endpoint)
	if endpoint == "" {
		return nil, ErrInvalidEndpoint
	}

	token, err := r.newToken()
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.byEndpoint[endpoint]; exists {
		return nil, fmt.Errorf("%w: endpoint %s already registered as %s", ErrDuplicateRegistration, endpoint, id)
	}

	r.seq[role]++
	reg := &models.Registration{
		ID:           fmt.Sprintf("%s%02d", prefix, r.seq[role]),
		Role:         role,
		GameTypes:    append([]string(nil), meta.GameTypes...),
		Endpoint:     endpoint,
		Token:        token,
		Active:       true,
		RegisteredAt: time.Now().UTC(),
	}
	r.byID[reg.ID] = reg
	r.byEndpoint[endpoint] = reg.ID
	r.byToken[token] = reg.ID

	r.logger.Info("agent registered",
		slog.String("id", reg.ID),
		slog.String("role", string(role)),
		slog.String("endpoint", endpoint))

	copied := *reg
	return &copied, nil
}

// Authenticate resolves a bearer token to an active registration.
func (r *Registry) Authenticate(token string) (*models.Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byToken[token]
	if !ok {
		return nil, false
	}
	reg := r.byID[id]
	if reg == nil || !reg.Active {
		return nil, false
	}
	copied := *reg
	return &copied, true
}

func (r *Registry) Get(id string) (*models.Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	copied := *reg
	return &copied, true
}

// Deactivate flips the Active flag, e.g. after an agent exhausted all
// retries. The registration itself stays immutable.
func (r *Registry) Deactivate(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	reg.Active = false
	r.logger.Warn("agent deactivated", slog.String("id", id))
	return nil
}

// List returns copies of all registrations for a role, sorted by identity.
func (r *Registry) List(role models.Role) []*models.Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Registration, 0)
	for _, reg := range r.byID {
		if reg.Role == role {
			copied := *reg
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(r.tokens, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func normalizeEndpoint(endpoint string) string {
	return strings.ToLower(strings.TrimSpace(endpoint))
}
