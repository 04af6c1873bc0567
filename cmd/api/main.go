package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/acadreg/acadreg-api/api/swagger"
	"github.com/acadreg/acadreg-api/internal/handler"
	"github.com/acadreg/acadreg-api/internal/middleware"
	"github.com/acadreg/acadreg-api/internal/models"
	"github.com/acadreg/acadreg-api/internal/repository"
	"github.com/acadreg/acadreg-api/internal/service"
	"github.com/acadreg/acadreg-api/pkg/cache"
	"github.com/acadreg/acadreg-api/pkg/config"
	"github.com/acadreg/acadreg-api/pkg/database"
	"github.com/acadreg/acadreg-api/pkg/jobs"
	"github.com/acadreg/acadreg-api/pkg/logger"
	corsmiddleware "github.com/acadreg/acadreg-api/pkg/middleware/cors"
	reqidmiddleware "github.com/acadreg/acadreg-api/pkg/middleware/requestid"
)

// @title Academic Records API
// @version 1.0.0
// @description Accounts, role profiles, password resets and course enrollment
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := database.Migrate(cfg.Database); err != nil {
		logr.Sugar().Fatalw("migrations failed", "error", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, catalog cache disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	auditQueue := jobs.NewQueue("audit", func(ctx context.Context, job jobs.Job) error {
		return userRepo.CreateAuditLog(ctx, job.Payload.(*models.AuditLog))
	}, jobs.QueueConfig{Workers: 2, Logger: logr})
	auditQueue.Start(context.Background())
	defer auditQueue.Stop()

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Catalog.CacheTTL, logr, redisClient != nil)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		ResetTokenTTL:      cfg.Reset.TokenTTL,
		Issuer:             cfg.JWT.Issuer,
	})
	identitySvc := service.NewIdentityService(userRepo, validate, logr)
	userSvc := service.NewUserService(userRepo, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, departmentRepo, validate, logr)
	departmentSvc := service.NewDepartmentService(departmentRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, teacherRepo, departmentRepo, enrollmentRepo, cacheSvc, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, courseRepo, userRepo, logr)

	authHandler := handler.NewAuthHandler(authSvc, identitySvc)
	userHandler := handler.NewUserHandler(userSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	departmentHandler := handler.NewDepartmentHandler(departmentSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/signup/student", authHandler.RegisterStudent)
		auth.POST("/signup/teacher", authHandler.RegisterTeacher)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.GET("/reset-password/validate", authHandler.ValidateResetToken)
		auth.POST("/reset-password", authHandler.ResetPassword)

		authed := auth.Group("")
		authed.Use(middleware.JWT(authSvc))
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.GET("/me", authHandler.Me)
	}

	users := api.Group("/users")
	users.Use(middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	{
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.POST("/:id/enable", middleware.Audit(auditQueue, "USER_ENABLE", "user"), userHandler.Enable)
		users.POST("/:id/disable", middleware.Audit(auditQueue, "USER_DISABLE", "user"), userHandler.Disable)
	}

	students := api.Group("/students")
	students.Use(middleware.JWT(authSvc))
	{
		students.GET("/me", studentHandler.Me)
		students.GET("", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), studentHandler.List)
		students.GET("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), studentHandler.Get)
		students.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), studentHandler.Update)
	}

	teachers := api.Group("/teachers")
	teachers.Use(middleware.JWT(authSvc))
	{
		teachers.GET("/me", teacherHandler.Me)
		teachers.GET("", teacherHandler.List)
		teachers.GET("/:id", teacherHandler.Get)
		teachers.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), teacherHandler.Update)
	}

	departments := api.Group("/departments")
	departments.Use(middleware.JWT(authSvc))
	{
		departments.GET("", departmentHandler.List)
		departments.GET("/:id", departmentHandler.Get)
		departments.POST("", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(auditQueue, "DEPARTMENT_CREATE", "department"), departmentHandler.Create)
		departments.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(auditQueue, "DEPARTMENT_UPDATE", "department"), departmentHandler.Update)
		departments.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(auditQueue, "DEPARTMENT_DELETE", "department"), departmentHandler.Delete)
	}

	courses := api.Group("/courses")
	courses.Use(middleware.JWT(authSvc))
	{
		courses.GET("", courseHandler.List)
		courses.GET("/:id", courseHandler.Get)
		courses.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), middleware.Audit(auditQueue, "COURSE_CREATE", "course"), courseHandler.Create)
		courses.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher), middleware.Audit(auditQueue, "COURSE_UPDATE", "course"), courseHandler.Update)
		courses.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin), middleware.Audit(auditQueue, "COURSE_DELETE", "course"), courseHandler.Delete)
	}

	enrollments := api.Group("/enrollments")
	enrollments.Use(middleware.JWT(authSvc), middleware.RequireRoles(models.RoleStudent))
	{
		enrollments.GET("", enrollmentHandler.ListEnrolled)
		enrollments.GET("/available", enrollmentHandler.ListAvailable)
		enrollments.GET("/export", enrollmentHandler.Export)
		enrollments.POST("/:courseId", enrollmentHandler.Enroll)
		enrollments.DELETE("/:courseId", enrollmentHandler.Unenroll)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}
