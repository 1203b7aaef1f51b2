package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/agroadvisor/community/config"
	"github.com/agroadvisor/community/controllers"
	"github.com/agroadvisor/community/middleware"
	"github.com/agroadvisor/community/repository"
	"github.com/agroadvisor/community/services"
	"github.com/agroadvisor/community/storage"
	"github.com/agroadvisor/community/utils"
)

// Dependencies are the backends the HTTP layer is built on.
type Dependencies struct {
	Posts repository.PostRepository
	Users repository.UserRepository
	Store storage.Store
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(deps Dependencies) *gin.Engine {
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
	r.Use(utils.Ginzap(accessLogger(cfg), time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(utils.Logger, false))
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.Metrics())

	if local, ok := deps.Store.(*storage.LocalStore); ok {
		r.Static(local.PublicPrefix(), local.Dir())
	}

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Server is live and kicking!")
	})
	r.GET("/cors-check", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "CORS is working fine!"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "message": "API is running."})
	})

	limiter := middleware.RateLimit(cfg.RateLimitPerMinute)

	userCtrl := controllers.NewUserController(services.NewUserService(deps.Users))
	users := api.Group("/users", limiter)
	{
		users.POST("/register", userCtrl.Register)
		users.POST("/login", userCtrl.Login)
		users.POST("/logout", middleware.AuthRequired(), userCtrl.Logout)
	}

	maxFileBytes := int64(cfg.MaxAttachmentSizeMB) << 20
	postSvc := services.NewPostService(deps.Posts, deps.Store, services.Limits{
		MaxFileBytes: maxFileBytes,
		MaxFiles:     cfg.MaxAttachments,
	}, utils.Logger)
	postCtrl := controllers.NewPostController(postSvc, maxBodyBytes(maxFileBytes, cfg.MaxAttachments))

	community := api.Group("/community", limiter, middleware.AuthRequired())
	{
		community.GET("/posts/mine", postCtrl.ListMyPosts)
		community.POST("/posts", postCtrl.CreatePost)
		community.PUT("/posts/:id", postCtrl.UpdatePost)
		community.DELETE("/posts/:id", postCtrl.DeletePost)
	}

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") || c.Request.URL.Path == "/api" {
			utils.Error(c, http.StatusNotFound, 40400, "Route not found")
			return
		}
		c.String(http.StatusNotFound, "Not Found")
	})

	return r
}

// accessLogger writes the request log to its own rolling file when GinPath is set.
func accessLogger(cfg config.AppConfig) *zap.Logger {
	if cfg.GinPath == "" {
		return utils.Logger
	}
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err != nil {
		utils.Sugar.Warnf("access log disabled: %v", err)
		return utils.Logger
	}
	return gl
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "X-Requested-With", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	switch {
	case len(origins) == 0:
		c.AllowOriginFunc = func(string) bool { return false }
	case len(origins) == 1 && origins[0] == "*":
		// A credentialed wildcard is rejected by browsers; echo the origin.
		c.AllowOriginFunc = func(string) bool { return true }
	default:
		c.AllowOrigins = origins
	}
	return c
}

// maxBodyBytes bounds a multipart request: every attachment at its limit plus room for the text fields.
func maxBodyBytes(maxFileBytes int64, maxFiles int) int64 {
	if maxFileBytes <= 0 || maxFiles <= 0 {
		return 0
	}
	return maxFileBytes*int64(maxFiles) + 1<<20
}
