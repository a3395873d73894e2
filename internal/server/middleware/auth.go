package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nguyentranbao-ct/family-chat/internal/models"
	log "github.com/nguyentranbao-ct/family-chat/pkg/logger/logctx"
)

const userKey = "user"

// JWTAuth accepts HS256 bearer tokens whose subject is the user's hex id.
func JWTAuth(secret string) echo.MiddlewareFunc {
	key := []byte(secret)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header format")
			}

			user, err := parseUser(parser, key, tokenString)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(userKey, user)
			ctx := log.With(c.Request().Context(), "user_id", user.ID.Hex())
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func parseUser(parser *jwt.Parser, key []byte, tokenString string) (*models.AuthUser, error) {
	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}); err != nil {
		return nil, err
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return nil, err
	}
	id, err := primitive.ObjectIDFromHex(sub)
	if err != nil {
		return nil, fmt.Errorf("invalid subject %q: %w", sub, err)
	}
	name, _ := claims["name"].(string)
	return &models.AuthUser{ID: id, Name: name}, nil
}

// GetUser returns the authenticated caller, nil outside JWTAuth.
func GetUser(c echo.Context) *models.AuthUser {
	user, _ := c.Get(userKey).(*models.AuthUser)
	return user
}

func GetUserID(c echo.Context) string {
	if user := GetUser(c); user != nil {
		return user.ID.Hex()
	}
	return ""
}
