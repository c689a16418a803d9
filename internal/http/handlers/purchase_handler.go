package handlers

import (
	"errors"

	"posbackend/internal/domain"
	applog "posbackend/internal/log"
	"posbackend/internal/services"
	"posbackend/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type PurchaseHandler struct {
	Purchases    *services.PurchaseService
	DefaultLimit int
}

type commitRequest struct {
	Items []domain.LineInput `json:"items"`
}

type commitResponse struct {
	Success     bool   `json:"success"`
	TotalAmount int64  `json:"total_amount"`
	HeaderID    string `json:"header_id"`
}

func commitFailed(c *fiber.Ctx, msg string) error {
	return c.JSON(fiber.Map{"success": false, "error": msg})
}

// POST /purchase/commit
func (h *PurchaseHandler) Commit(c *fiber.Ctx) error {
	var req commitRequest
	if err := c.BodyParser(&req); err != nil {
		c.Status(fiber.StatusBadRequest)
		applog.Warn(c, "validation.fail", map[string]any{"field": "body", "reason": err.Error()})
		return commitFailed(c, "request body must be JSON with an items array of integer amounts")
	}

	res, err := h.Purchases.Commit(c.UserContext(), req.Items)
	if errors.Is(err, services.ErrValidation) {
		c.Status(fiber.StatusBadRequest)
		applog.Warn(c, "purchase.validation.fail", map[string]any{"reason": err.Error(), "lines": len(req.Items)})
		return commitFailed(c, err.Error())
	}
	if err != nil {
		c.Status(fiber.StatusInternalServerError)
		applog.Error(c, "purchase.commit.fail", err, map[string]any{"lines": len(req.Items)})
		return commitFailed(c, "purchase could not be recorded")
	}

	applog.Audit(c, "purchase.commit", map[string]any{
		"header_id":    res.HeaderID,
		"total_amount": res.TotalAmount,
		"lines":        res.Lines,
	})
	return c.JSON(commitResponse{Success: true, TotalAmount: res.TotalAmount, HeaderID: res.HeaderID})
}

// GET /purchases?limit=
func (h *PurchaseHandler) List(c *fiber.Ctx) error {
	limit := validate.Limit(c.Query("limit"), h.DefaultLimit, services.MaxListLimit)
	ps, err := h.Purchases.ListRecent(c.UserContext(), limit)
	if err != nil {
		c.Status(fiber.StatusInternalServerError)
		applog.Error(c, "purchase.list.fail", err, map[string]any{"limit": limit})
		return c.JSON(fiber.Map{"error": "could not load purchases"})
	}
	return c.JSON(fiber.Map{"purchases": ps})
}

// GET /purchases/:id
func (h *PurchaseHandler) Detail(c *fiber.Ctx) error {
	id, ok := validate.HeaderID(c.Params("id"))
	if !ok {
		c.Status(fiber.StatusBadRequest)
		applog.Warn(c, "validation.fail", map[string]any{"field": "id"})
		return c.JSON(fiber.Map{"error": "invalid purchase id"})
	}
	p, found, err := h.Purchases.Get(c.UserContext(), id)
	if err != nil {
		c.Status(fiber.StatusInternalServerError)
		applog.Error(c, "purchase.get.fail", err, map[string]any{"header_id": id})
		return c.JSON(fiber.Map{"error": "could not load purchase"})
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "purchase not found"})
	}
	return c.JSON(p)
}
