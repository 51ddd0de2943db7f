package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"crm-pipeline-api/internal/response"
)

// Claims is the bearer token payload. The identity provider issues it; this
// service only verifies it.
type Claims struct {
	UserID string `json:"user_id"`
	UID    string `json:"uid,omitempty"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// subject returns the user id, accepting the claim layouts seen in practice
func (c *Claims) subject() string {
	switch {
	case c.UserID != "":
		return c.UserID
	case c.Subject != "":
		return c.Subject
	}
	return c.UID
}

// Auth validates HS256 bearer tokens and exposes the actor to handlers and
// services. The user id and role are stored on the gin context and on the
// request context under "user_id" and "user_role".
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "Authorization header is required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			unauthorized(c, "Invalid authorization header format")
			return
		}

		authenticate(c, jwtSecret, strings.TrimSpace(parts[1]))
	}
}

// QueryTokenAuth is Auth for browser websocket upgrades, which cannot set
// headers. The token travels in the "token" query parameter.
func QueryTokenAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			unauthorized(c, "Token required")
			return
		}
		authenticate(c, jwtSecret, token)
	}
}

// ParseToken verifies tokenString and returns its claims and user id
func ParseToken(jwtSecret, tokenString string) (*Claims, uuid.UUID, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(jwtSecret), nil
	})
	if err != nil {
		return nil, uuid.Nil, err
	}
	if !token.Valid {
		return nil, uuid.Nil, jwt.ErrTokenInvalidClaims
	}

	userID, err := uuid.Parse(claims.subject())
	if err != nil {
		return nil, uuid.Nil, err
	}
	return claims, userID, nil
}

func authenticate(c *gin.Context, jwtSecret, tokenString string) {
	claims, userID, err := ParseToken(jwtSecret, tokenString)
	if err != nil {
		unauthorized(c, "Invalid or expired token")
		return
	}

	c.Set("user_id", userID)
	c.Set("user_role", claims.Role)
	c.Set("jwtToken", tokenString)

	ctx := context.WithValue(c.Request.Context(), "user_id", userID)
	if claims.Role != "" {
		ctx = context.WithValue(ctx, "user_role", claims.Role)
	}
	c.Request = c.Request.WithContext(ctx)

	c.Next()
}

func unauthorized(c *gin.Context, message string) {
	response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, message)
	c.Abort()
}
