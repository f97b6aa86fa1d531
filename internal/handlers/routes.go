package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the job configuration and session endpoints on v1.
func RegisterRoutes(v1 *gin.RouterGroup, configs *ConfigHandler, sessions *SessionHandler) {
	jobs := v1.Group("/jobs/:" + JobParam)
	{
		jobs.GET("/category-config", configs.Get)
		jobs.PUT("/category-config", configs.Put)
		jobs.POST("/category-config/bootstrap", configs.Bootstrap)
		jobs.POST("/sessions", sessions.Create)
	}

	s := v1.Group("/sessions")
	{
		s.GET("/:id", sessions.Get)
		s.DELETE("/:id", sessions.Delete)
		s.POST("/:id/fetch", sessions.Fetch)
		s.GET("/:id/issues", sessions.Issues)
		s.POST("/:id/decisions", sessions.Decide)
		s.POST("/:id/reconcile", sessions.Reconcile)
		s.GET("/:id/outcome", sessions.Outcome)
		s.POST("/:id/commit", sessions.Commit)
		s.GET("/:id/export", sessions.Export)
	}
}
