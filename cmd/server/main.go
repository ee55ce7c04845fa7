package main

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/defTPmodh/library-management/internal/api"
	"github.com/defTPmodh/library-management/internal/config"
	"github.com/defTPmodh/library-management/internal/repository"
	"github.com/defTPmodh/library-management/internal/service"
	"github.com/defTPmodh/library-management/internal/utils"
)

func main() {
	logger := utils.NewLogger()

	// Load configuration
	cfg := config.LoadConfig()

	// Set up database connection
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to set up database: %v", err)
	}
	defer db.Close()

	// Create repository
	repo := repository.NewPostgresRepository(db)

	// Create service
	svc := service.NewLibraryService(repo, cfg.Auth.JWTSecret, cfg.Auth.SessionHours, cfg.Library.LoanDays)

	// Create API handler
	handler := api.NewHandler(svc, logger)

	// Set up Gin router
	router := gin.Default()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Starting server on %s (loan period %d days)", serverAddr, cfg.Library.LoanDays)
	if err := http.ListenAndServe(serverAddr, router); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}
