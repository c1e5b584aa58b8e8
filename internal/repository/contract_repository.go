package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
)

type contractRepository struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) ContractRepository {
	return &contractRepository{db: db}
}

func (r *contractRepository) Create(ctx context.Context, c *models.ContractRequest) error {
	if c.Status == "" {
		c.Status = models.ContractPending
	}
	if c.RequestedAt.IsZero() {
		c.RequestedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Preload("Plan").First(c, "id = ?", c.ID).Error
}

func (r *contractRepository) Get(ctx context.Context, id uuid.UUID) (*models.ContractRequest, error) {
	var c models.ContractRequest
	if err := r.db.WithContext(ctx).Preload("Plan").Preload("User").First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (r *contractRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.ContractRequest, error) {
	var out []models.ContractRequest
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("user_id = ?", userID).
		Order("requested_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *contractRepository) ListAll(ctx context.Context) ([]models.ContractRequest, error) {
	var out []models.ContractRequest
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Preload("User").
		Order("requested_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *contractRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to models.ContractStatus, now time.Time) (*models.ContractRequest, error) {
	var c models.ContractRequest
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&c, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		if !c.Transition(to, now) {
			return ErrInvalidTransition
		}

		// guarded on the stored status so two advisors cannot both win
		res := tx.Model(&models.ContractRequest{}).
			Where("id = ? AND status = ?", id, models.ContractPending).
			Updates(map[string]interface{}{"status": c.Status, "approved_at": c.ApprovedAt})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}
