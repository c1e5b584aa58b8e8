package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
)

// UserRepository covers auth identities and their profiles.
type UserRepository interface {
	// CreateWithProfile inserts the identity and its profile atomically.
	CreateWithProfile(ctx context.Context, user *models.User, profile *models.Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, upd models.ProfileUpdate) (*models.Profile, error)
	SetPendingEmail(ctx context.Context, id uuid.UUID, email string) error
	ConfirmEmail(ctx context.Context, id uuid.UUID, email string) error
	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
}

// PlanRepository is the plan catalog.
type PlanRepository interface {
	// ListActive returns active plans by ascending price, optionally
	// narrowed by a case-insensitive match on name or short description.
	ListActive(ctx context.Context, query string) ([]models.Plan, error)
	// ListAll returns every plan, newest first.
	ListAll(ctx context.Context) ([]models.Plan, error)
	Get(ctx context.Context, id uuid.UUID, activeOnly bool) (*models.Plan, error)
	Create(ctx context.Context, plan *models.Plan) error
	Update(ctx context.Context, plan *models.Plan) error
	// Delete removes the plan and returns the removed row. A plan that
	// has ever been requested is kept and ErrPlanInUse returned.
	Delete(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	Segments(ctx context.Context) ([]string, error)
}

// ContractRepository stores contract requests.
type ContractRepository interface {
	Create(ctx context.Context, c *models.ContractRequest) error
	Get(ctx context.Context, id uuid.UUID) (*models.ContractRequest, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ContractRequest, error)
	ListAll(ctx context.Context) ([]models.ContractRequest, error)
	// UpdateStatus moves a pending request to a terminal status.
	UpdateStatus(ctx context.Context, id uuid.UUID, to models.ContractStatus, now time.Time) (*models.ContractRequest, error)
}

// ChatRepository stores chat messages.
type ChatRepository interface {
	// ListMessages returns the contract's messages newest first.
	ListMessages(ctx context.Context, contractID uuid.UUID) ([]models.ChatMessage, error)
	CreateMessage(ctx context.Context, msg *models.ChatMessage) error
	Conversations(ctx context.Context) ([]Conversation, error)
}

// Conversation is a contract request with its most recent message.
type Conversation struct {
	Contract    models.ContractRequest
	LastMessage *models.ChatMessage
}
