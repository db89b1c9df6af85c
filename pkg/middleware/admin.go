package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/linelogic/fraudgate/pkg/config"
)

// AdminHeader carries the operator identity asserted by the upstream auth
// gateway. This service does not authenticate accounts itself; it trusts the
// gateway and only checks the allow-list.
const AdminHeader = "X-Admin-Email"

// AdminOnly rejects requests whose asserted operator identity is not on the
// configured allow-list.
func AdminOnly(cfg *config.AdminConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.GetHeader(AdminHeader)
		if !cfg.IsAdmin(email) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "admin access required",
			})
			return
		}
		c.Next()
	}
}
