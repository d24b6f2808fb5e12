package v1

import (
	"github.com/gin-gonic/gin"
)

// RouteRegistrar is a handler that mounts its own routes on a group.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Mount registers each handler under its path below rg.
func Mount(rg *gin.RouterGroup, routes map[string]RouteRegistrar) {
	for path, h := range routes {
		h.RegisterRoutes(rg.Group(path))
	}
}
