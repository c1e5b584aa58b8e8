package handlers

import (
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
	"github.com/Windi-Fikriyansyah/planmarket/internal/repository"
)

type requesterView struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Phone    string    `json:"phone,omitempty"`
}

// ContractView is a contract request with its plan summary embedded.
type ContractView struct {
	models.ContractRequest
	Plan      *models.PlanSummary `json:"plan,omitempty"`
	Requester *requesterView      `json:"requester,omitempty"`
}

func contractView(c *models.ContractRequest, withRequester bool) ContractView {
	v := ContractView{ContractRequest: *c, Plan: c.Plan.Summary()}
	if withRequester && c.User != nil {
		v.Requester = &requesterView{ID: c.User.ID, FullName: c.User.FullName, Phone: c.User.Phone}
	}
	return v
}

func contractViews(list []models.ContractRequest, withRequester bool) []ContractView {
	out := make([]ContractView, 0, len(list))
	for i := range list {
		out = append(out, contractView(&list[i], withRequester))
	}
	return out
}

// MessageView is a chat message with its sender's display name.
type MessageView struct {
	models.ChatMessage
	SenderName string `json:"sender_name,omitempty"`
}

func messageView(m *models.ChatMessage) MessageView {
	v := MessageView{ChatMessage: *m}
	if m.Sender != nil {
		v.SenderName = m.Sender.FullName
	}
	return v
}

type conversationView struct {
	Contract    ContractView `json:"contract"`
	LastMessage *MessageView `json:"last_message,omitempty"`
}

func conversationViews(list []repository.Conversation) []conversationView {
	out := make([]conversationView, 0, len(list))
	for i := range list {
		cv := conversationView{Contract: contractView(&list[i].Contract, true)}
		if list[i].LastMessage != nil {
			mv := messageView(list[i].LastMessage)
			cv.LastMessage = &mv
		}
		out = append(out, cv)
	}
	return out
}
