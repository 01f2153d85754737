package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		app := c.(*AppContext).App

		// Master API Key bypass
		if app.MasterAPIKey != "" && token == app.MasterAPIKey {
			role := app.MasterUserRole
			if role == "" {
				role = "admin"
			}
			c.(*AppContext).User = &AppUser{
				Role:        role,
				Permissions: allPermissions,
			}
			return next(c)
		}

		if app.Keyfunc == nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}
		parsed, err := jwt.Parse(token, app.Keyfunc)
		if err != nil || !parsed.Valid {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}
		user, err := userFromClaims(claims)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid user ID"})
		}
		c.(*AppContext).User = user

		return next(c)
	}
}

var errInvalidUserID = errors.New("invalid user id")

// userFromClaims reads id, role and permissions. Admins without explicit
// permissions get all of them.
func userFromClaims(claims jwt.MapClaims) (*AppUser, error) {
	user := &AppUser{Role: "user"}
	switch id := claims["id"].(type) {
	case string:
		parsed, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, errInvalidUserID
		}
		user.UserID = parsed
	case float64:
		user.UserID = int64(id)
	default:
		return nil, errInvalidUserID
	}

	if role, ok := claims["role"].(string); ok && role != "" {
		user.Role = role
	}
	user.Permissions = parsePermissions(claims["permissions"])
	if user.Role == "admin" && len(user.Permissions) == 0 {
		user.Permissions = allPermissions
	}
	return user, nil
}
