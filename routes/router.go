package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/Dikshant-04/webapp/analytics"
	"github.com/Dikshant-04/webapp/config"
	"github.com/Dikshant-04/webapp/controllers"
	"github.com/Dikshant-04/webapp/middleware"
	"github.com/Dikshant-04/webapp/models"
	"github.com/Dikshant-04/webapp/utils"
)

// Deps are the long-lived components the HTTP layer hands work to.
type Deps struct {
	DB        *gorm.DB
	Analytics analytics.Config
	Views     middleware.ViewEnqueuer
	Reporter  *analytics.Reporter
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(deps Deps) *gin.Engine {
	// Load config and set Gin mode from configuration
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access log and panics go to their own rolling file
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(ginzap.Ginzap(gl, time.RFC3339, true))
		r.Use(ginzap.RecoveryWithZap(gl, false))
	} else {
		utils.Sugar.Warnf("gin logger unavailable, using default recovery: %v", err)
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))
	r.Use(middleware.Metrics())

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	db := deps.DB
	authController := controllers.NewAuthController(db)
	blogController := controllers.NewBlogController(db)
	contactController := controllers.NewContactController(db, nil)
	if deps.Reporter != nil {
		contactController = controllers.NewContactController(db, deps.Reporter)
	}
	analyticsController := controllers.NewAnalyticsController(db, deps.Analytics)

	authed := middleware.AuthRequired()
	admin := middleware.RequireRole(models.RoleAdmin)
	staff := middleware.RequireRole(models.RoleStaff, models.RoleAdmin)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimit("auth", cfg.RateLimitPerMinute))
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/password/forgot", authController.ForgotPassword)
	authGroup.POST("/password/reset", authController.ResetPassword)
	authGroup.POST("/logout", authed, authController.Logout)
	authGroup.GET("/me", authed, authController.Me)
	authGroup.PATCH("/profile", authed, authController.UpdateProfile)

	users := api.Group("/users", authed, admin)
	users.GET("", authController.ListUsers)
	users.GET("/:id", authController.GetUser)
	users.PATCH("/:id", authController.PatchUser)
	users.DELETE("/:id", authController.DeleteUser)

	blogs := api.Group("/blogs")
	blogs.GET("", blogController.ListBlogs)
	blogs.GET("/mine", authed, staff, blogController.MyBlogs)
	blogs.GET("/:slug", middleware.OptionalAuth(), middleware.ViewTracker(deps.Views), blogController.GetBlog)
	blogs.GET("/:slug/comments", blogController.ListComments)
	blogs.POST("/:slug/comments", authed, middleware.RateLimit("comments", cfg.RateLimitPerMinute), blogController.CreateComment)
	blogs.POST("", authed, staff, blogController.CreateBlog)
	blogs.PUT("/:id", authed, staff, blogController.UpdateBlog)
	blogs.DELETE("/:id", authed, staff, blogController.DeleteBlog)

	api.GET("/categories", blogController.ListCategories)
	api.POST("/categories", authed, admin, blogController.CreateCategory)
	api.GET("/tags", blogController.ListTags)
	api.POST("/tags", authed, admin, blogController.CreateTag)

	api.PATCH("/comments/:id/approve", authed, admin, blogController.ApproveComment)
	api.DELETE("/comments/:id", authed, blogController.DeleteComment)

	contact := api.Group("/contact")
	contact.POST("", middleware.RateLimit("contact", 5), contactController.CreateSubmission)
	contactAdmin := contact.Group("", authed, admin)
	contactAdmin.GET("", contactController.ListSubmissions)
	contactAdmin.GET("/stats", contactController.Stats)
	contactAdmin.GET("/:id", contactController.GetSubmission)
	contactAdmin.PATCH("/:id/replied", contactController.MarkReplied)
	contactAdmin.DELETE("/:id", contactController.DeleteSubmission)

	stats := api.Group("/analytics", authed)
	stats.GET("/blogs/:id", analyticsController.BlogAnalytics)
	statsAdmin := stats.Group("", admin)
	statsAdmin.GET("/dashboard", analyticsController.Dashboard)
	statsAdmin.GET("/daily", analyticsController.Daily)
	statsAdmin.GET("/monthly", analyticsController.Monthly)
	statsAdmin.GET("/views", analyticsController.Views)
	statsAdmin.POST("/daily/run", analyticsController.RunDaily)
	statsAdmin.POST("/monthly/run", analyticsController.RunMonthly)
	statsAdmin.POST("/retention/run", analyticsController.RunRetention)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}
