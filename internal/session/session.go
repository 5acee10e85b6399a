// Package session owns the client's authentication lifecycle.
//
// A Session is the single holder of the Principal and its Credential. The HTTP
// client reads it through Snapshot when building each request and tears it down
// through Expire on any 401. Nothing else mutates it.
package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"crm-cli/internal/logger"
	"crm-cli/internal/model"
	"crm-cli/internal/perm"
	"crm-cli/internal/store"
)

type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

var (
	ErrNotAuthenticating = errors.New("session: no login in progress")
	ErrEmptyCredentials  = errors.New("session: username and password are required")
)

// Credential is the Basic token base64(username:password). Its String form is masked.
type Credential string

func NewCredential(username, password string) Credential {
	return Credential(base64.StdEncoding.EncodeToString([]byte(username + ":" + password)))
}

func (c Credential) Header() string {
	if c == "" {
		return ""
	}
	return "Basic " + string(c)
}

func (c Credential) String() string {
	if c == "" {
		return ""
	}
	return "Basic ****"
}

// Persister is the durable side of the session.
type Persister interface {
	Load(ctx context.Context) (*store.Saved, error)
	Save(ctx context.Context, v store.Saved) error
	Clear(ctx context.Context) error
}

// Snapshot is an immutable view of the session at one instant.
type Snapshot struct {
	State      State
	Principal  *model.Principal
	Credential Credential
	Generation uint64
}

func (s Snapshot) Authenticated() bool {
	return s.State == Authenticated && s.Credential != ""
}

// Role is recomputed from the principal on every call.
func (s Snapshot) Role() perm.Role {
	if !s.Authenticated() {
		return perm.RoleNone
	}
	return perm.ResolveRole(s.Principal)
}

type Session struct {
	mu    sync.RWMutex
	store Persister
	log   zerolog.Logger

	state     State
	principal *model.Principal
	cred      Credential

	candUser string
	candCred Credential

	gen       uint64
	nextSubID int
	listeners map[int]func()
}

func New(p Persister) *Session {
	return &Session{
		store:     p,
		log:       logger.Get().With().Str("component", "session").Logger(),
		listeners: map[int]func(){},
	}
}

// Restore trusts a persisted credential without re-validating it. The first
// request that comes back 401 bounces the session to Anonymous.
func (s *Session) Restore(ctx context.Context) error {
	saved, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("session: restore: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if saved == nil {
		s.resetLocked()
		return nil
	}
	s.state = Authenticated
	s.cred = Credential(saved.Auth)
	s.principal = &model.Principal{Username: saved.Username}
	s.gen++
	s.log.Debug().Str("username", saved.Username).Msg("restored persisted credential")
	return nil
}

// BeginLogin enters Authenticating and returns the candidate credential for the probe.
func (s *Session) BeginLogin(username, password string) (Credential, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", ErrEmptyCredentials
	}
	cred := NewCredential(username, password)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Authenticating
	s.principal = nil
	s.cred = ""
	s.candUser = username
	s.candCred = cred
	return cred, nil
}

// Commit persists the candidate credential and enters Authenticated. If p has
// no username the one typed at login is used.
func (s *Session) Commit(ctx context.Context, p model.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Authenticating || s.candCred == "" {
		return ErrNotAuthenticating
	}
	if strings.TrimSpace(p.Username) == "" {
		p.Username = s.candUser
	}
	if err := s.store.Save(ctx, store.Saved{Username: p.Username, Auth: string(s.candCred)}); err != nil {
		s.resetLocked()
		return fmt.Errorf("session: persist credential: %w", err)
	}
	claims := append([]string(nil), p.RoleClaims...)
	s.principal = &model.Principal{Username: p.Username, RoleClaims: claims}
	s.cred = s.candCred
	s.candUser, s.candCred = "", ""
	s.state = Authenticated
	s.gen++

	if res := perm.Resolve(s.principal); res.Disagrees {
		s.log.Warn().
			Str("username", p.Username).
			Str("role", res.Role.String()).
			Msg("role claims disagree with username; claims win")
	}
	s.log.Info().Str("username", p.Username).Msg("logged in")
	return nil
}

// Abort leaves Authenticating without persisting anything.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Authenticating {
		s.resetLocked()
	}
}

// Logout clears the in-memory principal and the persisted keys.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.resetLocked()
	s.gen++
	s.mu.Unlock()
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("session: clear credential: %w", err)
	}
	return nil
}

// Expire is the global 401 handler. It tears the session down unconditionally
// and notifies the expiry listeners when it was authenticated.
func (s *Session) Expire(ctx context.Context) {
	s.expire(ctx, 0, false)
}

// ExpireAt is Expire for a 401 answering a request built at generation gen.
// A session committed or torn down since then is left alone. Reports whether
// it tore down.
func (s *Session) ExpireAt(ctx context.Context, gen uint64) bool {
	return s.expire(ctx, gen, true)
}

func (s *Session) expire(ctx context.Context, gen uint64, checkGen bool) bool {
	s.mu.Lock()
	if checkGen && s.gen != gen {
		cur := s.gen
		s.mu.Unlock()
		s.log.Debug().Uint64("request_gen", gen).Uint64("gen", cur).Msg("ignoring 401 from an earlier session")
		return false
	}
	was := s.state
	s.resetLocked()
	s.gen++
	fns := make([]func(), 0, len(s.listeners))
	if was == Authenticated {
		for _, fn := range s.listeners {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		s.log.Error().Err(err).Msg("clear persisted credential after 401")
	}
	if was == Authenticated {
		s.log.Info().Msg("session expired (401); credential cleared")
	}
	for _, fn := range fns {
		fn()
	}
	return true
}

// OnExpire registers fn to run after a 401 teardown. The returned func unregisters it.
func (s *Session) OnExpire(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// UpdateClaims replaces the role claims of the current principal if the session
// is still at generation gen. Reports whether it applied.
func (s *Session) UpdateClaims(gen uint64, claims []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.state != Authenticated || s.principal == nil {
		return false
	}
	s.principal = &model.Principal{
		Username:   s.principal.Username,
		RoleClaims: append([]string(nil), claims...),
	}
	return true
}

func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{State: s.state, Credential: s.cred, Generation: s.gen}
	if s.principal != nil {
		p := *s.principal
		p.RoleClaims = append([]string(nil), s.principal.RoleClaims...)
		snap.Principal = &p
	}
	return snap
}

func (s *Session) Role() perm.Role {
	return s.Snapshot().Role()
}

func (s *Session) resetLocked() {
	s.state = Anonymous
	s.principal = nil
	s.cred = ""
	s.candUser, s.candCred = "", ""
}
