package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/suiflow/suiflow_service/pkg/logger"
)

// AdminRole is the role claim required on admin tokens
const AdminRole = "admin"

var errNotAdmin = errors.New("token does not carry the admin role")

// AdminClaims are the claims carried by admin bearer tokens
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AdminAuth requires an HS256 bearer token with the admin role. An empty
// secret disables the check.
func AdminAuth(secret string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			abortUnauthorized(c, "Authorization header required")
			return
		}

		claims, err := ValidateAdminToken(tokenString, secret)
		if err != nil {
			logger.FromContext(c.Request.Context(), log).Warn("Admin token rejected",
				"request_id", c.GetString("request_id"),
				"error", err)
			abortUnauthorized(c, "Invalid token")
			return
		}

		c.Set("admin_subject", claims.Subject)
		c.Next()
	}
}

// ValidateAdminToken parses and verifies an admin token
func ValidateAdminToken(tokenString, secret string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.Role != AdminRole {
		return nil, errNotAdmin
	}
	return claims, nil
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   message,
		"code":    "UNAUTHORIZED",
	})
}
