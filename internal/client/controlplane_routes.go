package client

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/syftnotes/internal/client/handlers"
	"github.com/openmined/syftnotes/internal/client/middleware"
	"github.com/openmined/syftnotes/internal/merge"
	"github.com/openmined/syftnotes/internal/version"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

//	@title						SyftNotes Control Plane API
//	@version					0.1.0
//	@description				HTTP API for driving a running SyftNotes daemon
//	@BasePath					/
//	@securityDefinitions.apikey	APIToken
//	@in							header
//	@name						Authorization

type RouteConfig struct {
	ServerURL     string
	MergeStrategy merge.Name
	Token         string
	// RateLimit is a ulule formatted rate, 10 per second when empty
	RateLimit string
}

const defaultControlPlaneRate = "10-S"

func SetupRoutes(syncer handlers.Syncer, manual *merge.Manual, routeConfig *RouteConfig) (http.Handler, error) {
	formatted := routeConfig.RateLimit
	if formatted == "" {
		formatted = defaultControlPlaneRate
	}
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("invalid control plane rate %q: %w", formatted, err)
	}
	rateLimiter := limiter.New(memory.NewStore(), rate)

	statusH := handlers.NewStatusHandler(syncer, manual, routeConfig.ServerURL, routeConfig.MergeStrategy)
	syncH := handlers.NewSyncHandler(syncer)
	conflictsH := handlers.NewConflictsHandler(manual)

	r := gin.New()
	r.Use(middleware.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.Gzip())
	r.Use(mgin.NewMiddleware(rateLimiter))

	r.GET("/", IndexHandler)

	// @Security APIToken
	v1 := r.Group("/v1")
	v1.Use(middleware.TokenAuth(middleware.TokenAuthConfig{Token: routeConfig.Token}))
	{
		v1.GET("/status", statusH.Status)

		v1Sync := v1.Group("/sync")
		{
			v1Sync.POST("", syncH.Trigger)
			v1Sync.GET("/last", syncH.Last)
		}

		v1Conflicts := v1.Group("/conflicts")
		{
			v1Conflicts.GET("", conflictsH.List)
			v1Conflicts.GET("/watch", conflictsH.Watch)
			v1Conflicts.GET("/:id", conflictsH.Get)
			v1Conflicts.POST("/:id/resolve", conflictsH.Resolve)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ControlPlaneError{
			ErrorCode: handlers.ErrCodeNotFound,
			Error:     "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, handlers.ControlPlaneError{
			ErrorCode: handlers.ErrCodeBadRequest,
			Error:     "method not allowed",
		})
	})

	return r.Handler(), nil
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func IndexHandler(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get())
}
