package screens

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/planmarket/internal/client"
	"github.com/Windi-Fikriyansyah/planmarket/internal/livesync"
	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
	"github.com/Windi-Fikriyansyah/planmarket/internal/realtime"
)

// MyRequests is the customer's own request list.
type MyRequests struct {
	live[client.Contract]
}

func NewMyRequests(contracts client.ContractGateway, feed livesync.Subscriber) *MyRequests {
	return &MyRequests{
		live: newLive(feed, livesync.Config[client.Contract]{
			Topic: anyChange(realtime.TableContracts),
			Mode:  livesync.Refetch,
			Key:   contractKey,
			Fetch: contracts.MyRequests,
		}),
	}
}

// Requests is the advisor's list of every request, with optimistic
// approve and reject.
type Requests struct {
	live[client.Contract]

	contracts client.ContractGateway
	opt       *livesync.Optimistic[client.Contract]
	now       func() time.Time
}

func NewRequests(contracts client.ContractGateway, feed livesync.Subscriber, n livesync.Notifier) *Requests {
	r := &Requests{
		contracts: contracts,
		now:       time.Now,
		live: newLive(feed, livesync.Config[client.Contract]{
			Topic: anyChange(realtime.TableContracts),
			Mode:  livesync.Refetch,
			Key:   contractKey,
			Fetch: contracts.AllRequests,
		}),
	}
	r.opt = livesync.NewOptimistic(r.sync.Items, n)
	return r
}

func (r *Requests) Approve(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(ctx, id, models.ContractApproved)
}

func (r *Requests) Reject(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(ctx, id, models.ContractRejected)
}

// Pending counts requests still awaiting a decision.
func (r *Requests) Pending() int {
	n := 0
	for _, c := range r.Items() {
		if c.Status == models.ContractPending {
			n++
		}
	}
	return n
}

func (r *Requests) setStatus(ctx context.Context, id uuid.UUID, to models.ContractStatus) error {
	cur, ok := r.sync.Items.Get(id)
	if ok && !cur.Status.CanTransition(to) {
		return ErrNotPending
	}
	return r.opt.Update(ctx, id,
		func(c *client.Contract) {
			c.Status = to
			if to == models.ContractApproved {
				t := r.now()
				c.ApprovedAt = &t
			}
		},
		func(ctx context.Context) error {
			_, err := r.contracts.SetRequestStatus(ctx, id, to)
			return err
		})
}
