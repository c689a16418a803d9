package handlers

import (
	applog "posbackend/internal/log"
	"posbackend/internal/services"
	"posbackend/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	Purchases    *services.PurchaseService
	DefaultLimit int
}

// GET /admin/purchases
func (h *AdminHandler) PurchasesPage(c *fiber.Ctx) error {
	limit := validate.Limit(c.Query("limit"), h.DefaultLimit, services.MaxListLimit)
	ps, err := h.Purchases.ListRecent(c.UserContext(), limit)
	if err != nil {
		c.Status(fiber.StatusInternalServerError)
		applog.Error(c, "admin.purchases.list.fail", err, nil)
		return c.SendString("Could not load purchases")
	}
	return c.Render("purchases", fiber.Map{"Purchases": ps, "Limit": limit})
}
