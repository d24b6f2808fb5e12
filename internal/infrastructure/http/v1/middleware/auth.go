package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"stockcore/internal/core/apperror"
	appctx "stockcore/internal/core/context"
)

// TokenValidator turns a bearer token into the acting user.
type TokenValidator interface {
	ValidateToken(tokenString string) (*appctx.Actor, error)
}

// Auth validates the bearer token and puts the actor into the request
// context. A nil validator disables the check; requests may then name their
// actor with the X-Actor-ID header.
func Auth(validator TokenValidator) gin.HandlerFunc {
	if validator == nil {
		return anonymous
	}
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		actor, err := validator.ValidateToken(parts[1])
		if err != nil {
			_ = c.Error(apperror.NewUnauthorized("invalid token").WithCause(err))
			c.Abort()
			return
		}

		setActor(c, actor)
		c.Next()
	}
}

const HeaderActorID = "X-Actor-ID"

func anonymous(c *gin.Context) {
	if actorID := c.GetHeader(HeaderActorID); actorID != "" {
		setActor(c, &appctx.Actor{ID: actorID})
	}
	c.Next()
}

func setActor(c *gin.Context, actor *appctx.Actor) {
	c.Request = c.Request.WithContext(appctx.WithActor(c.Request.Context(), actor))
	c.Set("actor_id", actor.ID)
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
