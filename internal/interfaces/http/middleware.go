package http

import (
	"github.com/gin-gonic/gin"

	"github.com/esunday5/staff-portal/internal/application/service"
	"github.com/esunday5/staff-portal/internal/domain/apperror"
	"github.com/esunday5/staff-portal/internal/domain/entity"
)

const userContextKey = "staff-portal.user"

// basicAuth authenticates every request with HTTP basic credentials
func basicAuth(directory service.DirectoryService, logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		login, password, ok := c.Request.BasicAuth()
		if !ok {
			respondError(c, logger, apperror.Unauthenticated("basic credentials are required"))
			return
		}

		user, err := directory.Authenticate(c.Request.Context(), login, password)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *entity.User {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	user, _ := v.(*entity.User)
	return user
}

// requireRole aborts with Unauthorized unless the user holds one of roles
func requireRole(c *gin.Context, logger Logger, roles ...entity.RoleName) (*entity.User, bool) {
	user := currentUser(c)
	if user == nil {
		respondError(c, logger, apperror.Unauthenticated("authentication required"))
		return nil, false
	}
	for _, role := range roles {
		if user.HasRole(role) {
			return user, true
		}
	}
	respondError(c, logger, apperror.Unauthorized("role %s may not access %s", user.RoleName, c.FullPath()))
	return nil, false
}
