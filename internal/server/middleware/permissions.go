package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"
)

// Permission names one action on the graph API.
type Permission string

const (
	PermBatchCreate Permission = "batch.create"
	PermBatchView   Permission = "batch.view"
	PermGraphView   Permission = "graph.view"
)

var allPermissions = []Permission{
	PermBatchCreate,
	PermBatchView,
	PermGraphView,
}

// parsePermissions keeps the known permissions of a token claim. Unknown
// names and non-string values are dropped.
func parsePermissions(claim any) []Permission {
	values, ok := claim.([]any)
	if !ok {
		return nil
	}
	var out []Permission
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if p := Permission(s); slices.Contains(allPermissions, p) && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

// Can reports whether u holds at least one of perms.
func (u *AppUser) Can(perms ...Permission) bool {
	if u == nil {
		return false
	}
	for _, p := range perms {
		if slices.Contains(u.Permissions, p) {
			return true
		}
	}
	return false
}

// Require lets a request through when the user holds any of perms.
func Require(perms ...Permission) echo.MiddlewareFunc {
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	forbidden := map[string]string{"error": "Forbidden: requires " + strings.Join(names, " or ")}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := c.(*AppContext).User
			if user == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}
			if !user.Can(perms...) {
				return c.JSON(http.StatusForbidden, forbidden)
			}
			return next(c)
		}
	}
}
