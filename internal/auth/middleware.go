package auth

import (
	"net/http"
	"strings"
	"time"

	"call-insights-platform/internal/company"

	"github.com/gin-gonic/gin"
)

const (
	apiKeyHeader        = "X-API-Key"
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
)

// RequireAPIKey authenticates tenant requests by API key and injects the
// company into the request context. Unknown and disabled keys get the same
// 401 so the header cannot be used to probe for live tenants.
func RequireAPIKey(companies *company.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(apiKeyHeader))
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing api key"})
			return
		}

		co, err := companies.Authenticate(c.Request.Context(), key)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
			return
		}

		c.Request = c.Request.WithContext(WithCompany(c.Request.Context(), co))
		c.Set("company_id", co.ID)
		c.Next()
	}
}

// RequireAdminToken verifies a bearer admin token. It guards the provisioning
// endpoints only.
func RequireAdminToken(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
		if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := m.Verify(strings.TrimPrefix(raw, bearerPrefix), time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("admin_subject", claims.Subject)
		c.Next()
	}
}
