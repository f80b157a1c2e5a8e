package handlers

import (
	"synchro-manager/middleware"
	"synchro-manager/services"
	"synchro-manager/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"gorm.io/gorm"
)

// Services bundles every service the routes dispatch to.
type Services struct {
	Anmeldungen *services.AnmeldungService
	Kinder      *services.KindService
	Wettkaempfe *services.WettkampfService
	Figuren     *services.FigurService
	Stammdaten  *services.StammdatenService
}

func NewServices(db *gorm.DB, store utils.ObjectStore) *Services {
	return &Services{
		Anmeldungen: services.NewAnmeldungService(db),
		Kinder:      services.NewKindService(db),
		Wettkaempfe: services.NewWettkampfService(db),
		Figuren:     services.NewFigurService(db, store),
		Stammdaten:  services.NewStammdatenService(db),
	}
}

type Options struct {
	ServiceToken   string
	SessionSecret  []byte
	AllowedOrigins string
	// UploadDir is served under /uploads when pictures are stored locally.
	UploadDir string
}

// NewApp wires middleware and routes.
func NewApp(svc *Services, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // figure pictures
	})

	origins := opts.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Content-Disposition",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Use(middleware.GatewayAuthMiddleware(opts.ServiceToken))

	if opts.UploadDir != "" {
		app.Static("/uploads", opts.UploadDir)
	}

	api := app.Group("/", middleware.SessionMiddleware(opts.SessionSecret))
	SetupKindRoutes(api, svc.Kinder)
	SetupAnmeldungRoutes(api, svc.Anmeldungen)
	SetupKatalogRoutes(api, svc.Wettkaempfe, svc.Anmeldungen, svc.Figuren, svc.Stammdaten)

	return app
}
