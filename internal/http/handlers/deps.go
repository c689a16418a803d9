package handlers

import (
	"posbackend/internal/config"
	"posbackend/internal/events"
	"posbackend/internal/repos"
	"posbackend/internal/services"

	"github.com/jmoiron/sqlx"
)

type Deps struct {
	HealthHandler   *HealthHandler
	ProductHandler  *ProductHandler
	PurchaseHandler *PurchaseHandler
	AdminHandler    *AdminHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config, pub events.Publisher) *Deps {
	prodRepo := repos.NewProductRepo(db)
	purchaseRepo := repos.NewPurchaseRepo(db)

	catalogSvc := services.NewCatalogService(prodRepo)
	purchaseSvc := services.NewPurchaseService(db, purchaseRepo, pub, cfg.DefaultCustomerID)

	limit := cfg.PurchaseListLimit
	if limit < 1 {
		limit = 10
	}
	return &Deps{
		HealthHandler:   &HealthHandler{DB: db},
		ProductHandler:  &ProductHandler{Catalog: catalogSvc},
		PurchaseHandler: &PurchaseHandler{Purchases: purchaseSvc, DefaultLimit: limit},
		AdminHandler:    &AdminHandler{Purchases: purchaseSvc, DefaultLimit: limit},
	}
}
