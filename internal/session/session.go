// Package session holds who is signed in. One Manager is built at start
// and handed to every screen.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/planmarket/internal/client"
	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
)

// Destination is the navigation group for a role.
type Destination string

const (
	DestGuest    Destination = "guest"
	DestCustomer Destination = "customer"
	DestAdvisor  Destination = "advisor"
)

var ErrNoProfile = errors.New("session: account has no profile")

// State is a snapshot of the current session. The zero value is a guest.
type State struct {
	Token   string
	UserID  uuid.UUID
	Email   string
	Profile *models.Profile
	Role    models.Role
}

func guest() State {
	return State{Role: models.RoleGuest}
}

func (s State) SignedIn() bool {
	return s.Token != "" && s.Profile != nil
}

type Manager struct {
	auth   client.AuthGateway
	tokens TokenStore

	mu        sync.RWMutex
	state     State
	listeners map[int]func(State)
	nextID    int
}

func NewManager(auth client.AuthGateway, tokens TokenStore) *Manager {
	if tokens == nil {
		tokens = &MemoryTokenStore{}
	}
	return &Manager{auth: auth, tokens: tokens, state: guest(), listeners: map[int]func(State){}}
}

func (m *Manager) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) Destination() Destination {
	switch m.Current().Role {
	case models.RoleAdvisor:
		return DestAdvisor
	case models.RoleCustomer:
		return DestCustomer
	}
	return DestGuest
}

// OnChange registers fn for every session change and returns its removal.
func (m *Manager) OnChange(fn func(State)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Manager) set(s State) State {
	m.mu.Lock()
	m.state = s
	fns := make([]func(State), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
	return s
}

func fromSession(sess *client.Session) (State, error) {
	if sess.Profile == nil {
		return guest(), ErrNoProfile
	}
	return State{
		Token:   sess.Token,
		UserID:  sess.User.ID,
		Email:   sess.User.Email,
		Profile: sess.Profile,
		Role:    sess.Profile.Role,
	}, nil
}

// Restore validates a stored token. A token the server rejects is
// dropped and the session falls back to guest.
func (m *Manager) Restore(ctx context.Context) (State, error) {
	tok, err := m.tokens.Load()
	if err != nil {
		return m.Current(), err
	}
	if tok == "" {
		return m.set(guest()), nil
	}

	m.auth.SetToken(tok)
	sess, err := m.auth.Session(ctx)
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Unauthorized() {
			m.forget()
			return m.set(guest()), nil
		}
		return m.Current(), err
	}
	if sess.Token == "" {
		sess.Token = tok
	}
	st, err := fromSession(sess)
	if err != nil {
		m.forget()
		return m.set(guest()), err
	}
	return m.set(st), nil
}

func (m *Manager) SignIn(ctx context.Context, email, password string) (State, error) {
	sess, err := m.auth.SignIn(ctx, email, password)
	if err != nil {
		return m.Current(), err
	}
	return m.establish(sess)
}

// SignUp always creates a customer.
func (m *Manager) SignUp(ctx context.Context, fullName, email, password, phone string) (State, error) {
	sess, err := m.auth.SignUp(ctx, fullName, email, password, phone)
	if err != nil {
		return m.Current(), err
	}
	return m.establish(sess)
}

func (m *Manager) establish(sess *client.Session) (State, error) {
	st, err := fromSession(sess)
	if err != nil {
		m.forget()
		return m.set(guest()), err
	}
	if err := m.tokens.Save(st.Token); err != nil {
		log.Warnf("[Session] persist token: %v", err)
	}
	return m.set(st), nil
}

// SignOut resets to a guest even when the server call fails.
func (m *Manager) SignOut(ctx context.Context) error {
	err := m.auth.SignOut(ctx)
	if err != nil {
		log.Warnf("[Session] sign out: %v", err)
	}
	m.forget()
	m.set(guest())
	return err
}

func (m *Manager) forget() {
	m.auth.SetToken("")
	if err := m.tokens.Clear(); err != nil {
		log.Warnf("[Session] clear token: %v", err)
	}
}
