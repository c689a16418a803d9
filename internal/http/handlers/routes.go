package handlers

import "github.com/gofiber/fiber/v2"

func Register(app *fiber.App, d *Deps) {
	app.Get("/", d.HealthHandler.Root)
	app.Get("/healthz", d.HealthHandler.Healthz)

	// Catalog
	app.Get("/product", d.ProductHandler.Lookup)
	app.Get("/products", d.ProductHandler.List)

	// Purchases
	app.Post("/purchase/commit", d.PurchaseHandler.Commit)
	app.Get("/purchases", d.PurchaseHandler.List)
	app.Get("/purchases/:id", d.PurchaseHandler.Detail)

	app.Get("/admin/purchases", d.AdminHandler.PurchasesPage)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	})
}
