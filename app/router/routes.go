// Package router wires the decision API onto a fiber app
package router

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/amirphl/nba-decision-core/app/dto"
	"github.com/amirphl/nba-decision-core/app/handlers"
	"github.com/amirphl/nba-decision-core/app/middleware"
	"github.com/amirphl/nba-decision-core/models"
	"github.com/amirphl/nba-decision-core/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	healthPath  = "/healthz"
	metricsPath = "/metrics"
)

// Config tunes the fiber app
type Config struct {
	BodyLimit    int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Handlers groups everything the routes dispatch to
type Handlers struct {
	Decision *handlers.DecisionHandler
	Campaign *handlers.CampaignHandler
	Audit    *handlers.AuditHandler
}

// FiberRouter owns the fiber app
type FiberRouter struct {
	app      *fiber.App
	handlers Handlers
}

func NewFiberRouter(cfg Config, h Handlers) *FiberRouter {
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = 1 << 20
	}
	app := fiber.New(fiber.Config{
		AppName:      "NBA Decision Core",
		ErrorHandler: errorHandler,
		BodyLimit:    cfg.BodyLimit,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	return &FiberRouter{app: app, handlers: h}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")
	r.setupMiddleware()

	r.app.Get(healthPath, r.healthCheck)
	r.app.Get(metricsPath, adaptor.HTTPHandler(promhttp.Handler()))

	api := r.app.Group("/api/v1")

	api.Post("/decisions", r.handlers.Decision.Decide)
	api.Get("/customers/:id/eligibility", r.handlers.Decision.Eligibility)

	campaigns := api.Group("/campaigns")
	campaigns.Get("/", r.handlers.Campaign.ListCampaigns)
	campaigns.Get("/:id", r.handlers.Campaign.GetCampaign)
	campaigns.Get("/:id/versions", r.handlers.Campaign.ListVersions)
	campaigns.Get("/:id/versions/diff", r.handlers.Campaign.DiffVersions)
	campaigns.Post("/:id/transitions",
		middleware.RequireActor(),
		middleware.RequireRole(models.RoleMarketer, models.RoleAdmin),
		r.handlers.Campaign.Transition,
	)

	api.Get("/audit/:entityType/:entityId", r.handlers.Audit.Query)

	r.app.Use(r.notFoundHandler)
}

func (r *FiberRouter) setupMiddleware() {
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return gonanoid.Must()
		},
	}))

	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e any) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
				requestid.FromContext(c),
				e,
				c.Path(),
				c.Method(),
			)
		},
	}))

	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","request_id":"${respHeader:X-Request-ID}","level":"info","method":"${method}","path":"${path}","status":${status},"latency":"${latency}","actor":"${reqHeader:X-Actor-ID}"}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			return c.Path() == healthPath || c.Path() == metricsPath
		},
	}))

	r.app.Use(middleware.Metrics(healthPath, metricsPath))
}

func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"timestamp": utils.UTCNow().Format(time.RFC3339),
		},
	})
}

func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}

// errorHandler renders errors that escape handlers, mostly fiber's own
func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	if code >= fiber.StatusInternalServerError {
		log.Printf("Error %d: %v", code, err)
	}

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: http.StatusText(code),
		Error: dto.ErrorDetail{
			Code: "REQUEST_FAILED",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestid.FromContext(c),
			},
		},
	})
}
