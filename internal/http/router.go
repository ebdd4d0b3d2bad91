package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/outlet_survey/backend/internal/config"
	"github.com/outlet_survey/backend/internal/http/handlers"
	"github.com/outlet_survey/backend/internal/http/middleware"
	"github.com/outlet_survey/backend/internal/navigation"
	"github.com/outlet_survey/backend/internal/outlets"

	_ "github.com/outlet_survey/backend/docs"
)

func Router(cfg config.Config, db handlers.Pinger, svc *outlets.Service, nav *navigation.Manager, images handlers.ImageUploader, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.MaxMultipartMemory = cfg.MaxUploadSizeMB << 20

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-Id", "X-User-Id", "X-User-Email"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		DB:             db,
		Outlets:        svc,
		Navigation:     nav,
		Images:         images,
		Validator:      svc.Validator,
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout,
		MaxUploadBytes: cfg.MaxUploadSizeMB << 20,
		AllowedOrigin:  cfg.CORSAllowed,
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.AgentAuth(cfg.JWTSecret, svc)

	api := r.Group("/api")
	api.Use(auth)
	{
		api.GET("/session", h.CurrentSession)
		api.POST("/session/signout", h.SignOut)

		api.GET("/outlets", h.ListOutlets)
		api.GET("/outlets/:id", h.OutletDetails)
		api.POST("/outlets/:id/validate", h.ValidateOutlet)
		api.DELETE("/outlets/:id/validate", h.UnvalidateOutlet)

		api.GET("/products", h.ListProducts)
		api.POST("/images", h.UploadImage)

		api.POST("/navigation", h.StartNavigation)
		api.GET("/navigation/:id", h.NavigationState)
		api.POST("/navigation/:id/position", h.ReportPosition)
		api.DELETE("/navigation/:id", h.StopNavigation)
	}

	ws := r.Group("/ws")
	ws.Use(auth)
	{
		ws.GET("/navigation/:id", h.NavigationStream)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
