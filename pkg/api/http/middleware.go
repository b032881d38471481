package http

import (
	"net/http"
	"strconv"

	"github.com/aescanero/nodecomp/pkg/domain"
	"github.com/gin-gonic/gin"
)

const (
	// HeaderTenantID carries the calling tenant
	HeaderTenantID = "X-Tenant-ID"
	// HeaderAdmin marks an admin caller when set to true
	HeaderAdmin = "X-Admin"
)

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, "+HeaderTenantID+", "+HeaderAdmin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// AuthMiddleware attaches the caller identity from the request headers to
// the request context. Identity is asserted by a fronting proxy; requests
// without a tenant must be admin requests.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(HeaderTenantID)
		isAdmin, _ := strconv.ParseBool(c.GetHeader(HeaderAdmin))

		if tenantID == "" && !isAdmin {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: ErrorDetail{
					Code:    "UNAUTHENTICATED",
					Message: HeaderTenantID + " header is required",
				},
			})
			return
		}

		ctx := domain.WithCaller(c.Request.Context(), domain.Caller{TenantID: tenantID, IsAdmin: isAdmin})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
