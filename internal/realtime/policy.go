package realtime

import (
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
)

// Visibility says who may receive a change besides advisors.
type Visibility struct {
	// Public rows reach every viewer, guests included.
	Public bool `json:"public"`
	// OwnerID is the customer owning the row's contract, if any.
	OwnerID uuid.UUID `json:"owner_id"`
}

// Viewer is the identity behind a realtime connection.
type Viewer struct {
	UserID uuid.UUID
	Role   models.Role
}

func (v Viewer) CanSee(vis Visibility) bool {
	if v.Role == models.RoleAdvisor || vis.Public {
		return true
	}
	return vis.OwnerID != uuid.Nil && vis.OwnerID == v.UserID
}

// PlanVisibility makes a plan change public when the plan was or is active,
// so customers also learn about a plan being hidden.
func PlanVisibility(active ...bool) Visibility {
	for _, a := range active {
		if a {
			return Visibility{Public: true}
		}
	}
	return Visibility{}
}

// OwnedBy limits a change to the contract owner and advisors.
func OwnedBy(owner uuid.UUID) Visibility {
	return Visibility{OwnerID: owner}
}
