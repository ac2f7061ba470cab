package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmined/syftnotes/internal/notesdk"
	"github.com/openmined/syftnotes/internal/server/handlers/notes"
	"github.com/openmined/syftnotes/internal/server/middlewares"
	"github.com/openmined/syftnotes/internal/version"
)

func SetupRoutes(config *Config, svc *Services) (http.Handler, error) {
	r := gin.New()

	rateLimiter, err := middlewares.RateLimiter(config.RateLimit)
	if err != nil {
		return nil, err
	}

	notesH := notes.New(svc.Notes)

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(middlewares.Secure(config.HTTP.TLS()))
	r.Use(middlewares.GZIP())
	r.Use(middlewares.CORS())

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	v1 := r.Group("/api/v1")
	v1.Use(rateLimiter)
	{
		v1.POST("/commands", notesH.Execute)
		v1.GET("/events", notesH.Events)
		v1.GET("/notes", notesH.List)
		v1.GET("/notes/:id", notesH.Get)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r.Handler(), nil
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, notesdk.HealthResponse{
		Status:  "ok",
		Version: version.Version,
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
