package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/case-framework/field-survey-backend/pkg/apihelpers"
	"github.com/case-framework/field-survey-backend/services/field-api/apihandlers"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := fieldEngine.Store.Close(ctx); err != nil {
			slog.Error("Error closing Field DB", slog.String("error", err.Error()))
		}
	}()

	// Start webserver
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     conf.GinConfig.AllowOrigins,
		AllowMethods:     []string{"POST", "GET", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "Content-Length", "Api-Key"},
		ExposeHeaders:    []string{"Authorization", "Content-Type", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Add handlers
	router.GET("/", apihandlers.HealthCheckHandle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	v1Root := router.Group("/v1")

	v1APIHandlers := apihandlers.NewHTTPHandler(
		conf.UserManagementConfig.JWTSignKey,
		conf.ServiceAPIKeys,
		fieldEngine,
	)
	v1APIHandlers.AddFieldAPI(v1Root)
	v1APIHandlers.AddAdminAPI(v1Root)
	v1APIHandlers.AddServiceAPI(v1Root)

	if conf.GinConfig.DebugMode {
		if err := apihelpers.WriteRoutesToFile(router, "field-api-routes.txt"); err != nil {
			slog.Warn("Error writing routes to file", slog.String("error", err.Error()))
		}
	}

	// Start the server
	slog.Info("Starting Field API on port " + conf.GinConfig.Port)
	if !conf.GinConfig.MTLS.Use {
		err := router.Run(":" + conf.GinConfig.Port)
		if err != nil {
			slog.Error("Exited Field API", slog.String("error", err.Error()))
			return
		}
	} else {
		// Create tls config for mutual TLS
		tlsConfig, err := apihelpers.LoadTLSConfig(conf.GinConfig.MTLS.CertificatePaths)
		if err != nil {
			slog.Error("Error loading TLS config.", slog.String("error", err.Error()))
			return
		}

		server := &http.Server{
			Addr:      ":" + conf.GinConfig.Port,
			Handler:   router,
			TLSConfig: tlsConfig,
		}

		err = server.ListenAndServeTLS(conf.GinConfig.MTLS.CertificatePaths.ServerCertPath, conf.GinConfig.MTLS.CertificatePaths.ServerKeyPath)
		if err != nil {
			slog.Error("Exited Field API", slog.String("error", err.Error()))
			return
		}
	}
}
