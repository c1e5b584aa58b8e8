package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
)

type chatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) ListMessages(ctx context.Context, contractID uuid.UUID) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Where("contract_id = ?", contractID).
		Order("created_at DESC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *chatRepository) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Preload("Sender").First(msg, "id = ?", msg.ID).Error
}

func (r *chatRepository) Conversations(ctx context.Context) ([]Conversation, error) {
	var contracts []models.ContractRequest
	if err := r.db.WithContext(ctx).
		Preload("Plan").
		Preload("User").
		Order("requested_at DESC").
		Find(&contracts).Error; err != nil {
		return nil, err
	}

	out := make([]Conversation, 0, len(contracts))
	for _, c := range contracts {
		conv := Conversation{Contract: c}

		var last models.ChatMessage
		err := r.db.WithContext(ctx).
			Preload("Sender").
			Where("contract_id = ?", c.ID).
			Order("created_at DESC").
			Limit(1).
			First(&last).Error
		if err == nil {
			conv.LastMessage = &last
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, nil
}
