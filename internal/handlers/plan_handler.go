package handlers

import (
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"

	"github.com/Windi-Fikriyansyah/planmarket/internal/models"
	"github.com/Windi-Fikriyansyah/planmarket/internal/realtime"
	"github.com/Windi-Fikriyansyah/planmarket/internal/repository"
	"github.com/Windi-Fikriyansyah/planmarket/internal/storage"
)

// maxImageSize caps plan image uploads.
const maxImageSize = 5 << 20

type PlanHandler struct {
	Plans  repository.PlanRepository
	Images storage.ImageStore
	Pub    realtime.Publisher
}

// ListPublic returns active plans by ascending price, optionally searched
// with ?q= on name and short description.
func (h *PlanHandler) ListPublic(c *fiber.Ctx) error {
	plans, err := h.Plans.ListActive(c.UserContext(), c.Query("q"))
	if err != nil {
		return storeFail(c, err, "plans")
	}
	return c.JSON(fiber.Map{"success": true, "data": plans})
}

func (h *PlanHandler) Segments(c *fiber.Ctx) error {
	segments, err := h.Plans.Segments(c.UserContext())
	if err != nil {
		return storeFail(c, err, "segments")
	}
	return c.JSON(fiber.Map{"success": true, "data": segments})
}

func (h *PlanHandler) GetPublic(c *fiber.Ctx) error {
	return h.get(c, true)
}

func (h *PlanHandler) ListAll(c *fiber.Ctx) error {
	plans, err := h.Plans.ListAll(c.UserContext())
	if err != nil {
		return storeFail(c, err, "plans")
	}
	return c.JSON(fiber.Map{"success": true, "data": plans})
}

func (h *PlanHandler) GetAny(c *fiber.Ctx) error {
	return h.get(c, false)
}

func (h *PlanHandler) get(c *fiber.Ctx, activeOnly bool) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusNotFound, "plan not found")
	}
	p, err := h.Plans.Get(c.UserContext(), id, activeOnly)
	if err != nil {
		return storeFail(c, err, "plan")
	}
	return c.JSON(fiber.Map{"success": true, "data": p})
}

// PlanInput is the advisor-editable part of a plan.
type PlanInput struct {
	Name             string                 `json:"name" validate:"required,max=120"`
	Price            float64                `json:"price" validate:"gt=0"`
	ShortDescription *string                `json:"short_description" validate:"omitempty,max=280"`
	Promotion        *string                `json:"promotion" validate:"omitempty,max=280"`
	DataGB           *int                   `json:"data_gb" validate:"omitempty,min=0"`
	Minutes          *int                   `json:"minutes" validate:"omitempty,min=0"`
	Segment          *string                `json:"segment" validate:"omitempty,max=60"`
	TargetAudience   *string                `json:"target_audience" validate:"omitempty,max=120"`
	ImageURL         *string                `json:"image_url"`
	Active           *bool                  `json:"active"`
	TechnicalDetails map[string]interface{} `json:"technical_details"`
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func (in PlanInput) apply(p *models.Plan) {
	p.Name = strings.TrimSpace(in.Name)
	p.Price = in.Price
	p.ShortDescription = blankToNil(in.ShortDescription)
	p.Promotion = blankToNil(in.Promotion)
	p.DataGB = in.DataGB
	p.Minutes = in.Minutes
	p.Segment = blankToNil(in.Segment)
	p.TargetAudience = blankToNil(in.TargetAudience)
	p.ImageURL = blankToNil(in.ImageURL)
	if in.Active != nil {
		p.Active = *in.Active
	}
	if in.TechnicalDetails != nil {
		p.TechnicalDetails = datatypes.JSONMap(in.TechnicalDetails)
	} else {
		p.TechnicalDetails = nil
	}
}

func (h *PlanHandler) parseInput(c *fiber.Ctx) (*PlanInput, error) {
	var in PlanInput
	if err := c.BodyParser(&in); err != nil {
		return nil, fail(c, fiber.StatusBadRequest, "invalid body")
	}
	in.Name = strings.TrimSpace(in.Name)
	if errs := validateStruct(in); len(errs) > 0 {
		return nil, validationFail(c, errs)
	}
	return &in, nil
}

func (h *PlanHandler) publish(c *fiber.Ctx, typ realtime.EventType, record, old *models.Plan) {
	var rec, prev interface{}
	var active []bool
	if record != nil {
		rec = record
		active = append(active, record.Active)
	}
	if old != nil {
		prev = old
		active = append(active, old.Active)
	}
	ch, err := realtime.NewChange(typ, realtime.TablePlans, rec, prev)
	if err != nil {
		log.Errorf("[Realtime] plan change: %v", err)
		return
	}
	h.Pub.Publish(c.UserContext(), realtime.Event{Change: ch, Visibility: realtime.PlanVisibility(active...)})
}

func (h *PlanHandler) Create(c *fiber.Ctx) error {
	in, err := h.parseInput(c)
	if in == nil {
		return err
	}

	p := &models.Plan{Active: true}
	in.apply(p)
	if err := h.Plans.Create(c.UserContext(), p); err != nil {
		return storeFail(c, err, "plan")
	}
	h.publish(c, realtime.Insert, p, nil)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Plan created",
		"data":    p,
	})
}

// Update replaces the plan's editable fields. A replaced or removed image
// has its blob deleted.
func (h *PlanHandler) Update(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusNotFound, "plan not found")
	}
	in, err := h.parseInput(c)
	if in == nil {
		return err
	}

	ctx := c.UserContext()
	old, err := h.Plans.Get(ctx, id, false)
	if err != nil {
		return storeFail(c, err, "plan")
	}

	p := *old
	in.apply(&p)
	if err := h.Plans.Update(ctx, &p); err != nil {
		return storeFail(c, err, "plan")
	}

	if old.ImageURL != nil && (p.ImageURL == nil || *p.ImageURL != *old.ImageURL) {
		h.deleteImage(c, *old.ImageURL)
	}
	h.publish(c, realtime.Update, &p, old)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Plan updated",
		"data":    p,
	})
}

func (h *PlanHandler) Delete(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return fail(c, fiber.StatusNotFound, "plan not found")
	}

	old, err := h.Plans.Delete(c.UserContext(), id)
	if err != nil {
		return storeFail(c, err, "plan")
	}
	if old.ImageURL != nil {
		h.deleteImage(c, *old.ImageURL)
	}
	h.publish(c, realtime.Delete, nil, old)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Plan deleted",
	})
}

// deleteImage removes a blob we own. Failures leave an orphan and are
// only logged.
func (h *PlanHandler) deleteImage(c *fiber.Ctx, url string) {
	if err := h.Images.DeleteByURL(c.UserContext(), url); err != nil && !errors.Is(err, storage.ErrForeignURL) {
		log.Warnf("[Storage] failed to delete %s: %v", url, err)
	}
}

// UploadImage stores the multipart "image" file and returns its public URL.
func (h *PlanHandler) UploadImage(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "image file is required")
	}
	if file.Size <= 0 || file.Size > maxImageSize {
		return fail(c, fiber.StatusBadRequest, "invalid image size")
	}

	f, err := file.Open()
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "cannot read image")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "cannot read image")
	}

	url, err := h.Images.Upload(c.UserContext(), file.Filename, data)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedImage) || errors.Is(err, storage.ErrEmptyFile) {
			errs := FieldErrors{}
			errs.Add("image", err.Error())
			return validationFail(c, errs)
		}
		log.Errorf("[Storage] upload: %v", err)
		return fail(c, fiber.StatusBadGateway, "failed to store image")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"url": url},
	})
}
