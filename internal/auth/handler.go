package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
	HeaderUserRole = "X-User-Role"

	actorContextKey = "portal.actor"
)

// Middleware authenticates callers. Bearer tokens are accepted only when
// it was built with a token secret.
type Middleware struct {
	tokenSecret []byte
}

// NewMiddleware builds the middleware. An empty secret disables bearer
// tokens and only identity headers are accepted.
func NewMiddleware(tokenSecret string) *Middleware {
	return &Middleware{tokenSecret: []byte(tokenSecret)}
}

// RequireActor resolves the caller from a bearer token, when tokens are
// enabled and one is presented, or else from the identity headers set by
// the SSO gateway. Requests carrying neither are rejected.
func (m *Middleware) RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(m.tokenSecret) > 0 {
			if raw := bearerToken(c.GetHeader("Authorization"), c.Query("token")); raw != "" {
				actor, err := ParseToken(m.tokenSecret, raw)
				if err != nil {
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
					return
				}
				c.Set(actorContextKey, actor)
				c.Next()
				return
			}
		}

		id, err := uuid.Parse(c.GetHeader(HeaderUserID))
		if err != nil || id == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid " + HeaderUserID})
			return
		}
		name := c.GetHeader(HeaderUserName)
		if name == "" {
			name = id.String()
		}
		c.Set(actorContextKey, Actor{
			ID:   id,
			Name: name,
			Role: ParseRole(c.GetHeader(HeaderUserRole)),
		})
		c.Next()
	}
}

// ActorFrom returns the actor stored by RequireActor.
func ActorFrom(c *gin.Context) (Actor, bool) {
	v, ok := c.Get(actorContextKey)
	if !ok {
		return Actor{}, false
	}
	actor, ok := v.(Actor)
	return actor, ok
}

// Me echoes the resolved identity
func Me(c *gin.Context) {
	actor, ok := ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": actor})
}
