package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
	"github.com/Windi-Fikriyansyah/planmarket/internal/realtime"
	"github.com/Windi-Fikriyansyah/planmarket/internal/repository"
)

type ContractHandler struct {
	Contracts repository.ContractRepository
	Plans     repository.PlanRepository
	Pub       realtime.Publisher
	Now       func() time.Time
}

func (h *ContractHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *ContractHandler) publish(c *fiber.Ctx, typ realtime.EventType, cr *models.ContractRequest, old *ContractView) {
	var prev interface{}
	if old != nil {
		prev = old
	}
	ch, err := realtime.NewChange(typ, realtime.TableContracts, contractView(cr, true), prev)
	if err != nil {
		log.Errorf("[Realtime] contract change: %v", err)
		return
	}
	h.Pub.Publish(c.UserContext(), realtime.Event{Change: ch, Visibility: realtime.OwnedBy(cr.UserID)})
}

type createContractReq struct {
	PlanID string `json:"plan_id" validate:"required,uuid"`
}

// Create files a pending request for an active plan on behalf of the
// calling customer.
func (h *ContractHandler) Create(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	var req createContractReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	if errs := validateStruct(req); len(errs) > 0 {
		return validationFail(c, errs)
	}
	planID := uuid.MustParse(req.PlanID)

	ctx := c.UserContext()
	if _, err := h.Plans.Get(ctx, planID, true); err != nil {
		return storeFail(c, err, "plan")
	}

	cr := &models.ContractRequest{
		UserID:      uid,
		PlanID:      planID,
		Status:      models.ContractPending,
		RequestedAt: h.now(),
	}
	if err := h.Contracts.Create(ctx, cr); err != nil {
		return storeFail(c, err, "contract request")
	}
	h.publish(c, realtime.Insert, cr, nil)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Request sent",
		"data":    contractView(cr, false),
	})
}

func (h *ContractHandler) ListMine(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}
	list, err := h.Contracts.ListByUser(c.UserContext(), uid)
	if err != nil {
		return storeFail(c, err, "contract requests")
	}
	return c.JSON(fiber.Map{"success": true, "data": contractViews(list, false)})
}

func (h *ContractHandler) ListAll(c *fiber.Ctx) error {
	list, err := h.Contracts.ListAll(c.UserContext())
	if err != nil {
		return storeFail(c, err, "contract requests")
	}
	return c.JSON(fiber.Map{"success": true, "data": contractViews(list, true)})
}

type updateStatusReq struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
}

// UpdateStatus approves or rejects a pending request. A request that is no
// longer pending answers 409.
func (h *ContractHandler) UpdateStatus(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusNotFound, "contract request not found")
	}

	var req updateStatusReq
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid body")
	}
	if errs := validateStruct(req); len(errs) > 0 {
		return validationFail(c, errs)
	}

	ctx := c.UserContext()
	before, err := h.Contracts.Get(ctx, id)
	if err != nil {
		return storeFail(c, err, "contract request")
	}
	old := contractView(before, true)

	cr, err := h.Contracts.UpdateStatus(ctx, id, models.ContractStatus(req.Status), h.now())
	if err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			return fail(c, fiber.StatusConflict, "request was already "+string(before.Status))
		}
		return storeFail(c, err, "contract request")
	}
	h.publish(c, realtime.Update, cr, &old)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Request " + req.Status,
		"data":    contractView(cr, true),
	})
}
