package middleware

import (
	"github.com/OFFIS-RIT/dishgraph/backend/internal/queue"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/resolve"
	"github.com/OFFIS-RIT/dishgraph/backend/pkg/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      int64
	Role        string
	Permissions []Permission
}

// App holds the dependencies shared by all request handlers.
type App struct {
	Storage  store.GraphQuerier
	Queue    queue.Publisher
	Resolver *resolve.Resolver
	// Keyfunc verifies bearer tokens, nil disables JWT auth.
	Keyfunc        jwt.Keyfunc
	MasterAPIKey   string
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
