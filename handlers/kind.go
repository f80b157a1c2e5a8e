package handlers

import (
	"synchro-manager/services"

	"github.com/gofiber/fiber/v2"
)

func SetupKindRoutes(router fiber.Router, kindService *services.KindService) {
	router.Get("/kind", kindService.ListKinder)
	router.Post("/kind", kindService.CreateKind)
	router.Get("/kind/:id", kindService.GetKind)
	router.Put("/kind/:id", kindService.UpdateKind)
	router.Delete("/kind/:id", kindService.DeleteKind)
}
