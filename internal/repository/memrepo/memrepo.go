// Package memrepo implements the repository interfaces in memory. It
// backs handler tests and the end-to-end client tests.
package memrepo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
	"github.com/Windi-Fikriyansyah/planmarket/internal/repository"
)

// Store holds every table behind one lock so relations stay consistent.
type Store struct {
	mu        sync.Mutex
	users     map[uuid.UUID]models.User
	profiles  map[uuid.UUID]models.Profile
	plans     map[uuid.UUID]models.Plan
	contracts map[uuid.UUID]models.ContractRequest
	messages  []models.ChatMessage
	// seq orders rows created within the same clock tick.
	seq int64
	now func() time.Time
}

func New() *Store {
	return &Store{
		users:     map[uuid.UUID]models.User{},
		profiles:  map[uuid.UUID]models.Profile{},
		plans:     map[uuid.UUID]models.Plan{},
		contracts: map[uuid.UUID]models.ContractRequest{},
		now:       time.Now,
	}
}

// tick returns a strictly increasing timestamp.
func (s *Store) tick() time.Time {
	s.seq++
	return s.now().Add(time.Duration(s.seq) * time.Microsecond)
}

func (s *Store) Users() repository.UserRepository         { return userRepo{s} }
func (s *Store) Plans() repository.PlanRepository         { return planRepo{s} }
func (s *Store) Contracts() repository.ContractRepository { return contractRepo{s} }
func (s *Store) Chats() repository.ChatRepository         { return chatRepo{s} }

// SetRole changes a stored profile's role. Roles are never changed through
// the API; tests use it to provision advisors.
func (s *Store) SetRole(id uuid.UUID, role models.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[id]; ok {
		p.Role = role
		s.profiles[id] = p
	}
}

// DeleteProfile removes a profile, leaving its identity behind.
func (s *Store) DeleteProfile(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, id)
}

func (s *Store) profilePtr(id uuid.UUID) *models.Profile {
	p, ok := s.profiles[id]
	if !ok {
		return nil
	}
	return &p
}

func (s *Store) planPtr(id uuid.UUID) *models.Plan {
	p, ok := s.plans[id]
	if !ok {
		return nil
	}
	return &p
}

type userRepo struct{ s *Store }

func (r userRepo) CreateWithProfile(_ context.Context, user *models.User, profile *models.Profile) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return repository.ErrEmailTaken
		}
	}
	now := s.tick()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt, user.UpdatedAt = now, now
	profile.ID = user.ID
	profile.CreatedAt, profile.UpdatedAt = now, now

	stored := *user
	stored.Profile = nil
	s.users[user.ID] = stored
	s.profiles[profile.ID] = *profile
	user.Profile = profile
	return nil
}

func (r userRepo) withProfile(u models.User) *models.User {
	u.Profile = r.s.profilePtr(u.ID)
	return &u
}

func (r userRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.withProfile(u), nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return r.withProfile(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userRepo) GetProfile(_ context.Context, id uuid.UUID) (*models.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p := r.s.profilePtr(id)
	if p == nil {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (r userRepo) UpdateProfile(_ context.Context, id uuid.UUID, upd models.ProfileUpdate) (*models.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if upd.FullName != nil {
		p.FullName = *upd.FullName
	}
	if upd.Phone != nil {
		p.Phone = *upd.Phone
	}
	if upd.PushToken != nil {
		p.PushToken = *upd.PushToken
	}
	p.UpdatedAt = r.s.tick()
	r.s.profiles[id] = p
	return &p, nil
}

func (r userRepo) SetPendingEmail(_ context.Context, id uuid.UUID, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PendingEmail = email
	r.s.users[id] = u
	return nil
}

func (r userRepo) ConfirmEmail(_ context.Context, id uuid.UUID, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.users {
		if other.ID != id && other.Email == email {
			return repository.ErrEmailTaken
		}
	}
	u, ok := r.s.users[id]
	if !ok || u.PendingEmail != email {
		return repository.ErrNotFound
	}
	u.Email, u.PendingEmail = email, ""
	r.s.users[id] = u
	return nil
}

func (r userRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Password = hash
	r.s.users[id] = u
	return nil
}

type planRepo struct{ s *Store }

func contains(p *string, q string) bool {
	return p != nil && strings.Contains(strings.ToLower(*p), q)
}

func (r planRepo) ListActive(_ context.Context, query string) ([]models.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q := strings.ToLower(strings.TrimSpace(query))
	out := []models.Plan{}
	for _, p := range r.s.plans {
		if !p.Active {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) && !contains(p.ShortDescription, q) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Price == out[j].Price {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Price < out[j].Price
	})
	return out, nil
}

func (r planRepo) ListAll(_ context.Context) ([]models.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Plan, 0, len(r.s.plans))
	for _, p := range r.s.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r planRepo) Get(_ context.Context, id uuid.UUID, activeOnly bool) (*models.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.plans[id]
	if !ok || (activeOnly && !p.Active) {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r planRepo) Create(_ context.Context, plan *models.Plan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	now := r.s.tick()
	plan.CreatedAt, plan.UpdatedAt = now, now
	r.s.plans[plan.ID] = *plan
	return nil
}

func (r planRepo) Update(_ context.Context, plan *models.Plan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	old, ok := r.s.plans[plan.ID]
	if !ok {
		return repository.ErrNotFound
	}
	plan.CreatedAt = old.CreatedAt
	plan.UpdatedAt = r.s.tick()
	r.s.plans[plan.ID] = *plan
	return nil
}

func (r planRepo) Delete(_ context.Context, id uuid.UUID) (*models.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for _, c := range r.s.contracts {
		if c.PlanID == id {
			return nil, repository.ErrPlanInUse
		}
	}
	delete(r.s.plans, id)
	return &p, nil
}

func (r planRepo) Segments(_ context.Context) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := map[string]bool{}
	out := []string{}
	for _, p := range r.s.plans {
		if p.Active && p.Segment != nil && *p.Segment != "" && !seen[*p.Segment] {
			seen[*p.Segment] = true
			out = append(out, *p.Segment)
		}
	}
	sort.Strings(out)
	return out, nil
}

type contractRepo struct{ s *Store }

func (r contractRepo) hydrate(c models.ContractRequest) models.ContractRequest {
	c.Plan = r.s.planPtr(c.PlanID)
	c.User = r.s.profilePtr(c.UserID)
	return c
}

func (r contractRepo) Create(_ context.Context, c *models.ContractRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = models.ContractPending
	}
	if c.RequestedAt.IsZero() {
		c.RequestedAt = r.s.tick()
	}
	stored := *c
	stored.Plan, stored.User = nil, nil
	r.s.contracts[c.ID] = stored
	*c = r.hydrate(stored)
	return nil
}

func (r contractRepo) Get(_ context.Context, id uuid.UUID) (*models.ContractRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contracts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c = r.hydrate(c)
	return &c, nil
}

func (r contractRepo) list(keep func(models.ContractRequest) bool) []models.ContractRequest {
	out := []models.ContractRequest{}
	for _, c := range r.s.contracts {
		if keep(c) {
			out = append(out, r.hydrate(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out
}

func (r contractRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]models.ContractRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(func(c models.ContractRequest) bool { return c.UserID == userID }), nil
}

func (r contractRepo) ListAll(_ context.Context) ([]models.ContractRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.list(func(models.ContractRequest) bool { return true }), nil
}

func (r contractRepo) UpdateStatus(_ context.Context, id uuid.UUID, to models.ContractStatus, now time.Time) (*models.ContractRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contracts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !c.Transition(to, now) {
		return nil, repository.ErrInvalidTransition
	}
	r.s.contracts[id] = c
	c = r.hydrate(c)
	return &c, nil
}

type chatRepo struct{ s *Store }

func (r chatRepo) withSender(m models.ChatMessage) models.ChatMessage {
	m.Sender = r.s.profilePtr(m.SenderID)
	return m
}

func (r chatRepo) ListMessages(_ context.Context, contractID uuid.UUID) ([]models.ChatMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.ChatMessage{}
	for i := len(r.s.messages) - 1; i >= 0; i-- {
		if m := r.s.messages[i]; m.ContractID == contractID {
			out = append(out, r.withSender(m))
		}
	}
	return out, nil
}

func (r chatRepo) CreateMessage(_ context.Context, msg *models.ChatMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.s.tick()
	}
	stored := *msg
	stored.Sender = nil
	r.s.messages = append(r.s.messages, stored)
	*msg = r.withSender(stored)
	return nil
}

func (r chatRepo) Conversations(_ context.Context) ([]repository.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	contracts := contractRepo(r).list(func(models.ContractRequest) bool { return true })
	out := make([]repository.Conversation, 0, len(contracts))
	for _, c := range contracts {
		conv := repository.Conversation{Contract: c}
		for i := len(r.s.messages) - 1; i >= 0; i-- {
			if r.s.messages[i].ContractID == c.ID {
				m := r.withSender(r.s.messages[i])
				conv.LastMessage = &m
				break
			}
		}
		out = append(out, conv)
	}
	return out, nil
}
