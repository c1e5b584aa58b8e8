package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
	"github.com/Windi-Fikriyansyah/planmarket/internal/realtime"
	"github.com/Windi-Fikriyansyah/planmarket/internal/repository"
)

// ChatRoomPrefix names the broadcast room of a contract's chat.
const ChatRoomPrefix = "chat-"

type ChatHandler struct {
	Chats     repository.ChatRepository
	Contracts repository.ContractRepository
	Pub       realtime.Publisher
}

func canAccessContract(uid uuid.UUID, role models.Role, cr *models.ContractRequest) bool {
	return role == models.RoleAdvisor || cr.UserID == uid
}

// contractFor loads the :id contract and checks the caller may use its chat.
// Strangers get 404 so contract ids are not disclosed.
func (h *ChatHandler) contractFor(c *fiber.Ctx) (*models.ContractRequest, uuid.UUID, error) {
	uid, err := getUserUUID(c)
	if err != nil {
		return nil, uuid.Nil, fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return nil, uid, fail(c, fiber.StatusNotFound, "contract request not found")
	}
	cr, err := h.Contracts.Get(c.UserContext(), id)
	if err != nil {
		return nil, uid, storeFail(c, err, "contract request")
	}
	if !canAccessContract(uid, currentRole(c), cr) {
		return nil, uid, fail(c, fiber.StatusNotFound, "contract request not found")
	}
	return cr, uid, nil
}

// GetMessages returns the contract's messages newest first.
func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	cr, _, err := h.contractFor(c)
	if cr == nil {
		return err
	}

	msgs, err := h.Chats.ListMessages(c.UserContext(), cr.ID)
	if err != nil {
		return storeFail(c, err, "messages")
	}
	out := make([]MessageView, 0, len(msgs))
	for i := range msgs {
		out = append(out, messageView(&msgs[i]))
	}
	return c.JSON(fiber.Map{"success": true, "data": out})
}

type sendMessageReq struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// SendMessage persists the message and publishes it on the change feed.
// Senders see their own message through the feed like everyone else.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	cr, uid, err := h.contractFor(c)
	if cr == nil {
		return err
	}

	var req sendMessageReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	req.Content = strings.TrimSpace(req.Content)
	if errs := validateStruct(req); len(errs) > 0 {
		return validationFail(c, errs)
	}

	msg := &models.ChatMessage{ContractID: cr.ID, SenderID: uid, Content: req.Content}
	if err := h.Chats.CreateMessage(c.UserContext(), msg); err != nil {
		return storeFail(c, err, "message")
	}
	view := messageView(msg)

	ch, err := realtime.NewChange(realtime.Insert, realtime.TableMessages, view, nil)
	if err != nil {
		log.Errorf("[Realtime] message change: %v", err)
	} else {
		h.Pub.Publish(c.UserContext(), realtime.Event{Change: ch, Visibility: realtime.OwnedBy(cr.UserID)})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    view,
	})
}

// GetConversations lists every contract request with its latest message.
func (h *ChatHandler) GetConversations(c *fiber.Ctx) error {
	convs, err := h.Chats.Conversations(c.UserContext())
	if err != nil {
		return storeFail(c, err, "conversations")
	}
	return c.JSON(fiber.Map{"success": true, "data": conversationViews(convs)})
}

// ChatRoomAuthorizer lets advisors and the contract owner join
// chat-<contract_id> rooms. Any other room is refused.
func ChatRoomAuthorizer(contracts repository.ContractRepository) realtime.RoomAuthorizer {
	return func(ctx context.Context, v realtime.Viewer, room string) bool {
		raw, ok := strings.CutPrefix(room, ChatRoomPrefix)
		if !ok {
			return false
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return false
		}
		if v.Role == models.RoleGuest {
			return false
		}
		cr, err := contracts.Get(ctx, id)
		if err != nil {
			return false
		}
		return canAccessContract(v.UserID, v.Role, cr)
	}
}
