package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carelink/shift-portal/internal/config"
	"github.com/carelink/shift-portal/internal/database"
	"github.com/carelink/shift-portal/internal/handlers"
	"github.com/carelink/shift-portal/internal/middleware"
	"github.com/carelink/shift-portal/internal/models"
	"github.com/carelink/shift-portal/internal/services"
	"github.com/carelink/shift-portal/pkg/jwt"
	"github.com/carelink/shift-portal/pkg/realtime"
	"github.com/carelink/shift-portal/pkg/validator"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

// app holds everything the router needs
type app struct {
	cfg        *config.Config
	db         database.DB
	jwtService *jwt.Service
	sessions   *services.SessionService
	audit      *services.AuditService
	limiter    *services.RateLimitService
	hub        *realtime.Hub

	auth       *handlers.AuthHandler
	shifts     *handlers.ShiftHandler
	timesheets *handlers.TimesheetHandler
	payslips   *handlers.PayslipHandler
	roster     *handlers.RosterHandler
	incidents  *handlers.IncidentHandler
	events     *handlers.EventsHandler
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting care shift portal")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		migrator, err := database.NewMigrator(db, logger)
		if err != nil {
			logger.Fatalf("Failed to prepare migrations: %v", err)
		}
		if err := migrator.Up(context.Background()); err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := newApp(cfg, db, logger)

	cronService := services.NewCronService(a.sessions, a.audit, a.limiter, cfg.Session.PurgeSchedule, logger)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}

	listenerDone := make(chan struct{})
	if a.hub != nil {
		listener := realtime.NewListener(realtime.PgxDialer(cfg.Database.URL), a.hub, cfg.Realtime.Channel, cfg.Realtime.RetryDelay, logger)
		go func() {
			defer close(listenerDone)
			listener.Run(ctx)
		}()
	} else {
		close(listenerDone)
		logger.Info("Realtime change feed disabled")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           a.router(logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if a.events != nil {
		srv.RegisterOnShutdown(a.events.Close)
	}

	go func() {
		logger.Infof("Server listening on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	cronService.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}
	<-listenerDone

	logger.Info("Server exited")
}

func auditFor(cfg *config.Config, db database.DB, logger logrus.FieldLogger) *services.AuditService {
	if !cfg.Security.EnableAuditLog {
		return nil
	}
	return services.NewAuditService(database.NewAuditRepository(db), logger)
}

func newApp(cfg *config.Config, db database.DB, logger logrus.FieldLogger) *app {
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	fieldValidator := validator.NewFieldValidator()
	audit := auditFor(cfg, db, logger)

	careHomeRepository := database.NewCareHomeRepository(db)
	careWorkerRepository := database.NewCareWorkerRepository(db)
	sessionRepository := database.NewSessionRepository(db)
	shiftRepository := database.NewShiftRepository(db)
	timesheetRepository := database.NewTimesheetRepository(db)
	payslipRepository := database.NewPayslipRepository(db)
	rosterRepository := database.NewRosterRepository(db)
	incidentRepository := database.NewIncidentRepository(db)

	sessionService := services.NewSessionService(sessionRepository, jwtService, cfg.Session.TTL, logger)
	authService := services.NewAuthService(careHomeRepository, careWorkerRepository, sessionService,
		fieldValidator, audit, logger, services.AuthOptions{
			BcryptCost:              cfg.Security.BcryptCost,
			GeneratedPasswordLength: cfg.Security.GeneratedPasswordLength,
		})
	limiter := services.NewRateLimitService(db, services.RateLimitConfig{
		MaxEmailAttempts: cfg.Security.SignInMaxAttempts,
		EmailWindow:      cfg.Security.SignInWindow,
		MaxIPAttempts:    cfg.Security.SignInMaxAttemptsPerIP,
		IPWindow:         cfg.Security.SignInIPWindow,
	}, logger)
	authService.UseRateLimiter(limiter)

	shiftService := services.NewShiftService(db, shiftRepository, timesheetRepository, rosterRepository,
		fieldValidator, audit, logger)
	timesheetService := services.NewTimesheetService(timesheetRepository, fieldValidator, audit, logger)
	payslipService := services.NewPayslipService(payslipRepository, timesheetRepository, fieldValidator, audit, logger)
	rosterService := services.NewRosterService(rosterRepository, fieldValidator, audit, logger)
	incidentService := services.NewIncidentService(db, incidentRepository, rosterRepository, fieldValidator, audit, logger)

	a := &app{
		cfg:        cfg,
		db:         db,
		jwtService: jwtService,
		sessions:   sessionService,
		audit:      audit,
		limiter:    limiter,
		auth:       handlers.NewAuthHandler(authService, logger),
		shifts:     handlers.NewShiftHandler(shiftService, logger),
		timesheets: handlers.NewTimesheetHandler(timesheetService, logger),
		payslips:   handlers.NewPayslipHandler(payslipService, logger),
		roster:     handlers.NewRosterHandler(rosterService, logger),
		incidents:  handlers.NewIncidentHandler(incidentService, logger),
	}

	if cfg.Realtime.Enabled {
		a.hub = realtime.NewHub()
		a.events = handlers.NewEventsHandler(a.hub, shiftService, timesheetService, cfg.Realtime.Heartbeat, logger)
	}

	return a
}

func (a *app) router(logger *logrus.Logger) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	if a.cfg.Security.EnableRequestLog {
		router.Use(requestLogger(logger))
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORS.AllowedOrigins,
		AllowMethods:     a.cfg.CORS.AllowedMethods,
		AllowHeaders:     a.cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !containsWildcard(a.cfg.CORS.AllowedOrigins),
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthCheckHandler(a.db))

	v1 := router.Group("/api/v1")
	{
		if !a.cfg.IsProduction() {
			v1.GET("/debug/headers", debugHeadersHandler())
		}

		auth := v1.Group("/auth")
		{
			auth.POST("/care-home/register", a.auth.RegisterCareHome)
			auth.POST("/care-home/sign-in", a.auth.SignIn(models.RoleCareHome))
			auth.POST("/worker/register", a.auth.RegisterWorker)
			auth.POST("/worker/sign-in", a.auth.SignIn(models.RoleCareWorker))
			auth.POST("/refresh", a.auth.RefreshToken)
		}

		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(a.jwtService, a.sessions, logger))
		{
			protected.GET("/auth/session", a.auth.GetSession)
			protected.POST("/auth/sign-out", a.auth.SignOut)
			protected.PUT("/auth/password", a.auth.ChangePassword)
			protected.GET("/profile", a.auth.GetProfile)
			protected.PUT("/profile", a.auth.UpdateProfile)

			careHome := middleware.RequireRole(models.RoleCareHome)
			worker := middleware.RequireRole(models.RoleCareWorker)

			shifts := protected.Group("/shifts")
			{
				shifts.GET("", a.shifts.List)
				shifts.POST("", careHome, a.shifts.Post)
				shifts.POST("/recurring", careHome, a.shifts.PostRecurring)
				shifts.GET("/overview", careHome, a.shifts.Overview)
				shifts.GET("/:id", a.shifts.Get)
				shifts.POST("/:id/apply", worker, a.shifts.Apply)
				shifts.POST("/:id/withdraw", worker, a.shifts.Withdraw)
				shifts.POST("/:id/approve", careHome, a.shifts.Approve)
				shifts.POST("/:id/reject", careHome, a.shifts.Reject)
				shifts.POST("/:id/complete", careHome, a.shifts.Complete)
			}

			timesheets := protected.Group("/timesheets")
			{
				timesheets.GET("", a.timesheets.List)
				timesheets.GET("/:id", a.timesheets.Get)
				timesheets.POST("/:id/sign", worker, a.timesheets.Sign)
				timesheets.POST("/:id/review", careHome, a.timesheets.Review)
			}

			payslips := protected.Group("/payslips")
			{
				payslips.GET("", a.payslips.List)
				payslips.POST("", careHome, a.payslips.Issue)
				payslips.GET("/:id", a.payslips.Get)
			}

			roster := protected.Group("/roster", careHome)
			{
				roster.GET("", a.roster.ListWorkers)
				roster.GET("/:workerId", a.roster.WorkerDetails)
				roster.PUT("/:workerId", a.roster.SetCategory)
			}

			incidents := protected.Group("/incidents", careHome)
			{
				incidents.GET("", a.incidents.List)
				incidents.POST("", a.incidents.Report)
				incidents.GET("/:id", a.incidents.Get)
				incidents.PUT("/:id/status", a.incidents.Close)
				incidents.PUT("/:id/follow-up", a.incidents.FollowUp)
			}

			if a.events != nil {
				protected.GET("/events/shifts", a.events.Shifts)
				protected.GET("/events/timesheets", a.events.Timesheets)
			}
		}
	}

	return router
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// requestLogger creates a logrus middleware for request logging
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
			"has_auth":   c.GetHeader("Authorization") != "",
		}

		if id, ok := middleware.GetIdentity(c); ok {
			fields["account_id"] = id.AccountID
			fields["role"] = id.Role
			fields["session_id"] = id.SessionID
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
			return
		}

		status := c.Writer.Status()
		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}

// debugHeadersHandler shows request headers and IP detection for proxy setup
func debugHeadersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		headers := make(map[string]string)
		for name, values := range c.Request.Header {
			if name == "Authorization" || name == "Cookie" {
				continue
			}
			headers[name] = values[0]
		}

		c.JSON(http.StatusOK, gin.H{
			"headers": headers,
			"ip_detection": gin.H{
				"gin_clientip":    c.ClientIP(),
				"remote_addr":     c.Request.RemoteAddr,
				"x_real_ip":       c.Request.Header.Get("X-Real-IP"),
				"x_forwarded_for": c.Request.Header.Get("X-Forwarded-For"),
			},
			"user_agent": c.Request.UserAgent(),
			"timestamp":  time.Now().Unix(),
		})
	}
}
