package models

import (
	"time"

	"github.com/google/uuid"
)

type ContractStatus string

const (
	ContractPending  ContractStatus = "pending"
	ContractApproved ContractStatus = "approved"
	ContractRejected ContractStatus = "rejected"
)

func (s ContractStatus) Valid() bool {
	switch s {
	case ContractPending, ContractApproved, ContractRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s ContractStatus) Terminal() bool {
	return s == ContractApproved || s == ContractRejected
}

// CanTransition allows only pending -> approved|rejected.
func (s ContractStatus) CanTransition(to ContractStatus) bool {
	return s == ContractPending && to.Terminal()
}

// ContractRequest is a customer's request to subscribe to a plan.
type ContractRequest struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	PlanID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"plan_id"`
	Status      ContractStatus `gorm:"type:varchar(20);default:pending;not null" json:"status"`
	RequestedAt time.Time      `gorm:"not null;index" json:"requested_at"`
	ApprovedAt  *time.Time     `json:"approved_at"`

	Plan *Plan    `gorm:"foreignKey:PlanID" json:"-"`
	User *Profile `gorm:"foreignKey:UserID" json:"-"`
}

// Transition applies a status change, stamping ApprovedAt on approval.
func (c *ContractRequest) Transition(to ContractStatus, now time.Time) bool {
	if !c.Status.CanTransition(to) {
		return false
	}
	c.Status = to
	if to == ContractApproved {
		t := now
		c.ApprovedAt = &t
	}
	return true
}
