package client

import (
	"time"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
)

// Session is what sign-in, sign-up and session restore return.
type Session struct {
	Token string `json:"token"`
	User  struct {
		ID    uuid.UUID `json:"id"`
		Email string    `json:"email"`
	} `json:"user"`
	Profile *models.Profile `json:"profile"`
}

// Requester is the customer shown on advisor request listings.
type Requester struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Phone    string    `json:"phone,omitempty"`
}

// Contract is a contract request as listed, with its plan summary.
type Contract struct {
	ID          uuid.UUID             `json:"id"`
	UserID      uuid.UUID             `json:"user_id"`
	PlanID      uuid.UUID             `json:"plan_id"`
	Status      models.ContractStatus `json:"status"`
	RequestedAt time.Time             `json:"requested_at"`
	ApprovedAt  *time.Time            `json:"approved_at"`
	Plan        *models.PlanSummary   `json:"plan,omitempty"`
	Requester   *Requester            `json:"requester,omitempty"`
}

type Message struct {
	ID         uuid.UUID `json:"id"`
	ContractID uuid.UUID `json:"contract_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	SenderName string    `json:"sender_name,omitempty"`
}

type Conversation struct {
	Contract    Contract `json:"contract"`
	LastMessage *Message `json:"last_message,omitempty"`
}

// PlanInput is the body of plan create and update. Nil pointers clear
// the column.
type PlanInput struct {
	Name             string                 `json:"name"`
	Price            float64                `json:"price"`
	ShortDescription *string                `json:"short_description"`
	Promotion        *string                `json:"promotion"`
	DataGB           *int                   `json:"data_gb"`
	Minutes          *int                   `json:"minutes"`
	Segment          *string                `json:"segment"`
	TargetAudience   *string                `json:"target_audience"`
	ImageURL         *string                `json:"image_url"`
	Active           *bool                  `json:"active"`
	TechnicalDetails map[string]interface{} `json:"technical_details"`
}

// InputFromPlan copies the editable columns of p.
func InputFromPlan(p *models.Plan) PlanInput {
	active := p.Active
	in := PlanInput{
		Name:             p.Name,
		Price:            p.Price,
		ShortDescription: p.ShortDescription,
		Promotion:        p.Promotion,
		DataGB:           p.DataGB,
		Minutes:          p.Minutes,
		Segment:          p.Segment,
		TargetAudience:   p.TargetAudience,
		ImageURL:         p.ImageURL,
		Active:           &active,
	}
	if p.TechnicalDetails != nil {
		in.TechnicalDetails = map[string]interface{}(p.TechnicalDetails)
	}
	return in
}
