package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/ndthien/promptshrink/config"
	"github.com/ndthien/promptshrink/database"
	_ "github.com/ndthien/promptshrink/docs" // Swagger docs - auto-generated
	adminctrl "github.com/ndthien/promptshrink/internal/controller/admin"
	userctrl "github.com/ndthien/promptshrink/internal/controller/user"
	"github.com/ndthien/promptshrink/internal/logger"
	"github.com/ndthien/promptshrink/internal/middleware"
	"github.com/ndthien/promptshrink/internal/model"
	"github.com/ndthien/promptshrink/internal/repository"
	"github.com/ndthien/promptshrink/internal/service"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title Promptshrink API
// @version 1.0
// @description Prompt-compression evaluation platform. Users submit compressing prompts; a background tasker measures how well they shrink the stored test corpus while preserving correct answers.
// @contact.name API Support
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @schemes http https
func main() {
	logger.Init()

	app := fx.New(
		// Core application components
		fx.Provide(
			config.NewConfig,
			database.NewDatabase, // Provides *gorm.DB
			NewGinEngine,         // Provides *gin.Engine
		),

		// Repositories layer
		fx.Provide(
			repository.NewUserRepository,
			repository.NewTestRepository,
			repository.NewAttemptRepository,
			repository.NewTestResultRepository,
		),

		// Services layer
		fx.Provide(
			service.NewOpenRouterLLMService,
			service.NewEvaluatorService,
			service.NewTaskerService,
			service.NewSeederService,
			service.NewAuthService,
			service.NewAttemptService,
			service.NewAdminTestService,
		),

		// API controllers layer
		fx.Provide(
			userctrl.NewAuthController,
			userctrl.NewAttemptController,
			adminctrl.NewAdminTestController,
		),

		// Invokers - executed by fx in order
		fx.Invoke(AutoMigrateDB),
		fx.Invoke(SeedDefaultAdmin),
		fx.Invoke(RegisterRoutesAndStartServer),
		fx.Invoke(StartTasker),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown finished with errors")
	}
	log.Info().Msg("Application shut down gracefully")
}

func NewGinEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// RegisterRoutesAndStartServer configures API routes and manages the
// HTTP server lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	authService service.AuthService,
	authCtrl *userctrl.AuthController,
	attemptCtrl *userctrl.AttemptController,
	adminTestCtrl *adminctrl.AdminTestController,
) {
	api := router.Group("/api/v1")
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/register", authCtrl.Register)
		authGroup.POST("/login", authCtrl.Login)

		attemptsGroup := api.Group("/attempts", middleware.Auth(authService))
		attemptsGroup.POST("", attemptCtrl.SubmitAttempt)
		attemptsGroup.GET("", attemptCtrl.GetMyAttempts)
		attemptsGroup.GET("/:attempt_id", attemptCtrl.GetAttemptDetails)

		adminGroup := api.Group("/admin", middleware.Auth(authService), middleware.AdminOnly())
		adminGroup.POST("/tests", adminTestCtrl.CreateTest)
		adminGroup.POST("/tests/bulk", adminTestCtrl.BulkCreateTests)
		adminGroup.GET("/tests", adminTestCtrl.GetAllTests)
		adminGroup.PATCH("/tests/:test_id", adminTestCtrl.UpdateTest)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("API server starting on port %s", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			return server.Shutdown(ctx)
		},
	})
}

// StartTasker runs the evaluation worker for the whole process
// lifetime. OnStop cancels the loop and waits for the in-flight test
// to finalize before returning.
func StartTasker(lc fx.Lifecycle, tasker service.TaskerService) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				tasker.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

func SeedDefaultAdmin(seeder service.SeederService) error {
	return seeder.SeedDefaultAdmin()
}

func AutoMigrateDB(cfg *config.Config, db *gorm.DB) error {
	if !cfg.Database.Synchronize {
		log.Info().Msg("DB_SYNCHRONIZE is off, skipping migrations")
		return nil
	}
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.User{},
		&model.Test{},
		&model.Attempt{},
		&model.TestResult{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	log.Info().Msg("Database migration completed successfully")
	return nil
}
