// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/makerden/makerden-backend/internal/config"
	"github.com/makerden/makerden-backend/internal/events"
	"github.com/makerden/makerden-backend/internal/handlers"
	"github.com/makerden/makerden-backend/internal/middleware"
	"github.com/makerden/makerden-backend/internal/models"
	"github.com/makerden/makerden-backend/internal/services"
	"github.com/makerden/makerden-backend/internal/storage"
	"github.com/makerden/makerden-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	stores := storage.NewGormStores(db)
	bus := events.NewInProcBus()

	// Initialize services
	trustService := services.NewTrustService(stores.Profiles, stores.Users, cfg.Moderation)
	moderationService := services.NewModerationService(stores, bus, cfg.Frontend.BaseURL)
	scoreService := services.NewScoreService(stores, moderationService, cfg.Moderation)
	reportService := services.NewReportService(stores, trustService, scoreService, cfg.Moderation)
	classifierService := services.NewClassifierService(
		services.NewOpenAITextClassifier(cfg.Classifier),
		services.NewHTTPImageClassifier(cfg.Classifier.ImageURL),
		reportService,
		moderationService,
		models.ImageFallbackPolicy(cfg.Moderation.ImageFallbackPolicy),
	)

	// The trust ledger consumes resolution events; nothing else does.
	bus.Subscribe(trustService.ApplyResolution)

	// Initialize handlers
	reportHandler := handlers.NewReportHandler(reportService, trustService)
	moderationHandler := handlers.NewModerationHandler(moderationService, scoreService, classifierService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(middleware.I18nMiddleware())
	r.Use(middleware.GeneralRateLimit())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Report intake
		reports := v1.Group("/reports")
		reports.Use(middleware.AuthRequired())
		{
			reports.POST("", middleware.ReportRateLimit(), reportHandler.CreateReport)
		}

		// User trust profiles
		users := v1.Group("/users")
		users.Use(middleware.AuthRequired(), middleware.ModeratorRequired())
		{
			users.GET("/:id/report-profile", reportHandler.GetReportProfile)
		}

		// Moderation surface
		moderation := v1.Group("/moderation")
		moderation.Use(middleware.AuthRequired())
		{
			// Classifier-driven scans come from trusted backend services
			// authenticated as admins.
			moderation.POST("/scan", middleware.AdminRequired(), middleware.ScanRateLimit(), moderationHandler.ScanContent)

			protected := moderation.Group("")
			protected.Use(middleware.ModeratorRequired())
			{
				protected.GET("/queue", moderationHandler.GetQueue)
				protected.GET("/logs", moderationHandler.GetLogs)
				protected.GET("/:contentType/:id/score", moderationHandler.GetContentScore)
				protected.POST("/:contentType/:id/queue", moderationHandler.QueueContent)
				protected.POST("/:contentType/:id/hide", moderationHandler.HideContent)
				protected.POST("/:contentType/:id/restore", moderationHandler.RestoreContent)
			}
		}
	}

	return r
}
