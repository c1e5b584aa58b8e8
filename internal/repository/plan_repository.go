package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
)

type planRepository struct {
	db *gorm.DB
}

func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

func (r *planRepository) ListActive(ctx context.Context, query string) ([]models.Plan, error) {
	q := r.db.WithContext(ctx).Where("active = ?", true)
	if s := strings.ToLower(strings.TrimSpace(query)); s != "" {
		like := "%" + s + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(COALESCE(short_description, '')) LIKE ?", like, like)
	}

	var plans []models.Plan
	if err := q.Order("price ASC").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *planRepository) ListAll(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *planRepository) Get(ctx context.Context, id uuid.UUID, activeOnly bool) (*models.Plan, error) {
	q := r.db.WithContext(ctx).Where("id = ?", id)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var p models.Plan
	if err := q.First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *planRepository) Create(ctx context.Context, plan *models.Plan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *planRepository) Update(ctx context.Context, plan *models.Plan) error {
	res := r.db.WithContext(ctx).Model(&models.Plan{}).Where("id = ?", plan.ID).Select("*").Omit("id", "created_at").Updates(plan)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *planRepository) Delete(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	var p models.Plan
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&p, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		var count int64
		if err := tx.Model(&models.ContractRequest{}).Where("plan_id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrPlanInUse
		}
		return tx.Delete(&p).Error
	})
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		// a request landed between the count and the delete
		return nil, ErrPlanInUse
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *planRepository) Segments(ctx context.Context) ([]string, error) {
	var segments []string
	err := r.db.WithContext(ctx).
		Model(&models.Plan{}).
		Where("active = ? AND segment IS NOT NULL AND segment <> ''", true).
		Distinct("segment").
		Pluck("segment", &segments).
		Error
	if err != nil {
		return nil, err
	}
	return segments, nil
}
