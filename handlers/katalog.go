package handlers

import (
	"synchro-manager/middleware"
	"synchro-manager/services"

	"github.com/gofiber/fiber/v2"
)

// SetupKatalogRoutes registers competitions, figures and the affiliation tables.
// Reads are open to every session, writes need the admin role.
func SetupKatalogRoutes(
	router fiber.Router,
	wettkampfService *services.WettkampfService,
	anmeldungService *services.AnmeldungService,
	figurService *services.FigurService,
	stammdaten *services.StammdatenService,
) {
	admin := middleware.RequireRole(middleware.RoleAdmin)

	router.Get("/wettkampf", wettkampfService.ListWettkaempfe)
	router.Get("/wettkampf/:id", wettkampfService.GetWettkampf)
	router.Get("/wettkampf/:id/startliste.csv", anmeldungService.Startliste)
	router.Post("/wettkampf", admin, wettkampfService.CreateWettkampf)
	router.Put("/wettkampf/:id", admin, wettkampfService.UpdateWettkampf)
	router.Delete("/wettkampf/:id", admin, wettkampfService.DeleteWettkampf)

	router.Get("/figur", figurService.ListFiguren)
	router.Get("/figur/:id", figurService.GetFigur)
	router.Post("/figur", admin, figurService.CreateFigur)
	router.Put("/figur/:id", admin, figurService.UpdateFigur)
	router.Delete("/figur/:id", admin, figurService.DeleteFigur)

	setupLookup(router, "/verband", admin, stammdaten.Verbaende)
	setupLookup(router, "/verein", admin, stammdaten.Vereine)
	setupLookup(router, "/versicherung", admin, stammdaten.Versicherungen)
}

type lookupHandlers interface {
	List(*fiber.Ctx) error
	Get(*fiber.Ctx) error
	Create(*fiber.Ctx) error
	Update(*fiber.Ctx) error
	Delete(*fiber.Ctx) error
}

func setupLookup(router fiber.Router, path string, admin fiber.Handler, l lookupHandlers) {
	router.Get(path, l.List)
	router.Get(path+"/:id", l.Get)
	router.Post(path, admin, l.Create)
	router.Put(path+"/:id", admin, l.Update)
	router.Delete(path+"/:id", admin, l.Delete)
}
