package screens

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/planmarket/internal/client"
	"github.com/Windi-Fikriyansyah/planmarket/internal/livesync"
	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
	"github.com/Windi-Fikriyansyah/planmarket/internal/realtime"
	"github.com/Windi-Fikriyansyah/planmarket/internal/session"
)

func planKey(p models.Plan) uuid.UUID { return p.ID }

// Explore lists active plans for guests and customers.
type Explore struct {
	live[models.Plan]

	mu    sync.RWMutex
	query string
}

func NewExplore(plans client.PlanGateway, feed livesync.Subscriber) *Explore {
	return &Explore{
		live: newLive(feed, livesync.Config[models.Plan]{
			Topic: anyChange(realtime.TablePlans),
			Mode:  livesync.Refetch,
			Key:   planKey,
			Fetch: func(ctx context.Context) ([]models.Plan, error) {
				return plans.ListActivePlans(ctx, "")
			},
		}),
	}
}

func (e *Explore) SetQuery(q string) {
	e.mu.Lock()
	e.query = strings.TrimSpace(q)
	e.mu.Unlock()
}

// Visible is the list filtered by the search box, on name and short
// description, ignoring case.
func (e *Explore) Visible() []models.Plan {
	e.mu.RLock()
	q := strings.ToLower(e.query)
	e.mu.RUnlock()

	all := e.Items()
	if q == "" {
		return all
	}
	out := make([]models.Plan, 0, len(all))
	for _, p := range all {
		if strings.Contains(strings.ToLower(p.Name), q) ||
			(p.ShortDescription != nil && strings.Contains(strings.ToLower(*p.ShortDescription), q)) {
			out = append(out, p)
		}
	}
	return out
}

// PlanDetail shows one plan and lets a customer request it.
type PlanDetail struct {
	plans     client.PlanGateway
	contracts client.ContractGateway
	session   *session.Manager
	id        uuid.UUID

	Plan *models.Plan
}

func NewPlanDetail(plans client.PlanGateway, contracts client.ContractGateway, sess *session.Manager, id uuid.UUID) *PlanDetail {
	return &PlanDetail{plans: plans, contracts: contracts, session: sess, id: id}
}

// Load fetches the plan. Advisors also see inactive plans.
func (d *PlanDetail) Load(ctx context.Context) error {
	var (
		p   *models.Plan
		err error
	)
	if d.session.Current().Role == models.RoleAdvisor {
		p, err = d.plans.GetPlan(ctx, d.id)
	} else {
		p, err = d.plans.GetActivePlan(ctx, d.id)
	}
	if err != nil {
		return err
	}
	d.Plan = p
	return nil
}

func (d *PlanDetail) CanRequest() bool {
	return d.session.Current().Role == models.RoleCustomer
}

// Request files a pending contract request for the plan.
func (d *PlanDetail) Request(ctx context.Context) (*client.Contract, error) {
	switch d.session.Current().Role {
	case models.RoleCustomer:
	case models.RoleGuest:
		return nil, ErrSignInRequired
	default:
		return nil, ErrWrongRole
	}
	return d.contracts.RequestPlan(ctx, d.id)
}

// PlanManagement is the advisor catalog with optimistic delete.
type PlanManagement struct {
	live[models.Plan]

	plans client.PlanGateway
	opt   *livesync.Optimistic[models.Plan]
}

func NewPlanManagement(plans client.PlanGateway, feed livesync.Subscriber, n livesync.Notifier) *PlanManagement {
	m := &PlanManagement{
		plans: plans,
		live: newLive(feed, livesync.Config[models.Plan]{
			Topic: anyChange(realtime.TablePlans),
			Mode:  livesync.Refetch,
			Key:   planKey,
			Fetch: plans.ListAllPlans,
		}),
	}
	m.opt = livesync.NewOptimistic(m.sync.Items, n)
	return m
}

// Delete hides the plan at once and restores it if the server refuses.
func (m *PlanManagement) Delete(ctx context.Context, id uuid.UUID) error {
	return m.opt.Remove(ctx, id, func(ctx context.Context) error {
		return m.plans.DeletePlan(ctx, id)
	})
}

// FieldErrors maps a form field to its problem.
type FieldErrors map[string]string

type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, msg := range e.Fields {
		parts = append(parts, f+" "+msg)
	}
	return "invalid form: " + strings.Join(parts, ", ")
}

type pendingImage struct {
	name string
	data []byte
}

// PlanForm creates or edits a plan. On edit the server removes the blob
// of a replaced or removed image.
type PlanForm struct {
	plans client.PlanGateway
	id    uuid.UUID

	Input client.PlanInput

	image       *pendingImage
	removeImage bool
}

func NewPlanForm(plans client.PlanGateway) *PlanForm {
	active := true
	return &PlanForm{plans: plans, Input: client.PlanInput{Active: &active}}
}

// EditPlanForm loads plan id into a form.
func EditPlanForm(ctx context.Context, plans client.PlanGateway, id uuid.UUID) (*PlanForm, error) {
	p, err := plans.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PlanForm{plans: plans, id: p.ID, Input: client.InputFromPlan(p)}, nil
}

func (f *PlanForm) Editing() bool { return f.id != uuid.Nil }

// SetImage stages an image to upload on Submit, replacing any current one.
func (f *PlanForm) SetImage(filename string, data []byte) {
	f.image = &pendingImage{name: filename, data: data}
	f.removeImage = false
}

func (f *PlanForm) RemoveImage() {
	f.image = nil
	f.removeImage = true
}

func (f *PlanForm) Validate() FieldErrors {
	errs := FieldErrors{}
	if strings.TrimSpace(f.Input.Name) == "" {
		errs["name"] = "is required"
	}
	if f.Input.Price <= 0 {
		errs["price"] = "must be greater than 0"
	}
	return errs
}

// Submit validates locally, uploads a staged image and saves the plan.
func (f *PlanForm) Submit(ctx context.Context) (*models.Plan, error) {
	if errs := f.Validate(); len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	in := f.Input
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case f.image != nil:
		url, err := f.plans.UploadImage(ctx, f.image.name, f.image.data)
		if err != nil {
			return nil, fmt.Errorf("upload image: %w", err)
		}
		in.ImageURL = &url
	case f.removeImage:
		in.ImageURL = nil
	}

	var (
		p   *models.Plan
		err error
	)
	if f.Editing() {
		p, err = f.plans.UpdatePlan(ctx, f.id, in)
	} else {
		p, err = f.plans.CreatePlan(ctx, in)
	}
	if err != nil {
		if f.image != nil {
			log.Warnf("[Screens] plan save failed after upload, image %s is orphaned", *in.ImageURL)
		}
		return nil, err
	}

	f.id = p.ID
	f.Input = client.InputFromPlan(p)
	f.image = nil
	f.removeImage = false
	return p, nil
}
