package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/chainshop/chainshop-api/config"
)

// Claims carried by an access token: the subject is the account email and
// Roles is the single role granted at registration.
type Claims struct {
	Roles string `json:"roles"`
	jwt.RegisteredClaims
}

// IssueToken creates a signed access token for the given account.
func IssueToken(cfg *config.Config, email, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		Roles: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.JWTTokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// EnsureValidToken is a middleware that will check the validity of our JWT.
func EnsureValidToken(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			unauthorized(c)
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(
			strings.TrimPrefix(header, "Bearer "),
			claims,
			func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(cfg.JWTSecret), nil
			},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		)
		if err != nil || !token.Valid {
			unauthorized(c)
			return
		}

		c.Set("user_email", claims.Subject)
		c.Set("user_role", claims.Roles)
		c.Next()
	}
}

// RequireRole is a middleware that rejects tokens carrying any other role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("user_role") != role {
			unauthorized(c)
			return
		}
		c.Next()
	}
}

// GetUserEmail extracts the authenticated account email from the Gin context.
func GetUserEmail(c *gin.Context) (string, error) {
	email := c.GetString("user_email")
	if email == "" {
		return "", &AuthError{Code: "MISSING_USER", Message: "User email not found in context"}
	}
	return email, nil
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "UNAUTHORIZED",
			"message": "Missing Authorization Header",
		},
	})
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
