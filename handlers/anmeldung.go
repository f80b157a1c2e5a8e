package handlers

import (
	"synchro-manager/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAnmeldungRoutes(router fiber.Router, anmeldungService *services.AnmeldungService) {
	router.Get("/anmeldung", anmeldungService.ListAnmeldungen)
	router.Post("/anmeldung", anmeldungService.CreateAnmeldung)
	router.Get("/anmeldung/:id", anmeldungService.GetAnmeldung)
	router.Put("/anmeldung/:id", anmeldungService.UpdateAnmeldung)
	router.Delete("/anmeldung/:id", anmeldungService.DeleteAnmeldung)

	// Figure selection; every change recomputes vorläufig/aktiv
	router.Post("/anmeldung/:id/figuren/:figur_id", anmeldungService.AddFigurHandler)
	router.Delete("/anmeldung/:id/figuren/:figur_id", anmeldungService.RemoveFigurHandler)

	router.Get("/anmeldung/:id/qr", anmeldungService.QRCode)
}
