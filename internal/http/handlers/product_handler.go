package handlers

import (
	"posbackend/internal/domain"
	applog "posbackend/internal/log"
	"posbackend/internal/services"
	"posbackend/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type ProductHandler struct {
	Catalog *services.CatalogService
}

type productResponse struct {
	Product *domain.Product `json:"product"`
}

// GET /product?code=
// The code is matched exactly as sent. Anything not in the catalog,
// including odd or oversized codes, is a 200 with "product": null.
func (h *ProductHandler) Lookup(c *fiber.Ctx) error {
	if !c.Request().URI().QueryArgs().Has("code") {
		c.Status(fiber.StatusBadRequest)
		applog.Warn(c, "validation.fail", map[string]any{"field": "code"})
		return c.JSON(fiber.Map{"error": "missing code parameter"})
	}
	code := c.Query("code")
	if len(code) > validate.MaxCodeLen {
		return c.JSON(productResponse{})
	}
	p, found, err := h.Catalog.FindProduct(c.UserContext(), code)
	if err != nil {
		c.Status(fiber.StatusInternalServerError)
		applog.Error(c, "product.lookup.fail", err, map[string]any{"code": code})
		return c.JSON(fiber.Map{"error": "product lookup failed"})
	}
	if !found {
		return c.JSON(productResponse{})
	}
	return c.JSON(productResponse{Product: &p})
}

// GET /products
func (h *ProductHandler) List(c *fiber.Ctx) error {
	ps, err := h.Catalog.ListProducts(c.UserContext())
	if err != nil {
		c.Status(fiber.StatusInternalServerError)
		applog.Error(c, "product.list.fail", err, nil)
		return c.JSON(fiber.Map{"error": "could not load products"})
	}
	if ps == nil {
		ps = []domain.Product{}
	}
	return c.JSON(fiber.Map{"products": ps})
}
