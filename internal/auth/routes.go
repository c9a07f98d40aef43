package auth

import "github.com/gin-gonic/gin"

// RegisterRoutes registers Auth routes
func RegisterRoutes(r *gin.RouterGroup, m *Middleware) {
	authGroup := r.Group("/auth", m.RequireActor())
	{
		authGroup.GET("/me", Me)
	}
}
