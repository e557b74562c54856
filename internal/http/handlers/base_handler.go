// README: Base handler utilities (JSON helpers, caller resolution, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"routebite/internal/apperr"
	"routebite/internal/http/middleware"
	"routebite/internal/modules/order"
	"routebite/internal/types"
)

type errorResponse struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	Current   string `json:"current,omitempty"`
	Requested string `json:"requested,omitempty"`
}

// isValidID accepts the ids we mint (uuids) and the seeded ones (slugs).
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func pathID(c *gin.Context, name string) (types.ID, bool) {
	v := c.Param(name)
	if !isValidID(v) {
		writeError(c, http.StatusBadRequest, "invalid "+name)
		return "", false
	}
	return types.ID(v), true
}

// actor maps the verified caller onto an order actor. Tokens never carry the system role.
func actor(c *gin.Context) order.Actor {
	role := order.Role(middleware.CallerRole(c))
	switch role {
	case order.RoleRestaurant, order.RoleAdmin:
	default:
		role = order.RoleUser
	}
	return order.Actor{Role: role, ID: types.ID(middleware.CallerUID(c))}
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func statusFor(kind error) int {
	switch kind {
	case apperr.ErrInvalidRequest:
		return http.StatusBadRequest
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrForbidden:
		return http.StatusForbidden
	case apperr.ErrInvalidCode:
		return http.StatusUnprocessableEntity
	case apperr.ErrCodeExpired:
		return http.StatusGone
	case apperr.ErrRestaurantUnavailable, apperr.ErrCapacityExceeded, apperr.ErrInvalidTransition,
		apperr.ErrWrongState, apperr.ErrInvalidState, apperr.ErrConflict:
		return http.StatusConflict
	case apperr.ErrDependencyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeAppError renders core errors. Unknown errors are logged by the caller chain and hidden.
func writeAppError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	if kind == nil {
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	resp := errorResponse{Error: kind.Error()}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		resp.Detail = ae.Detail
		resp.Current = ae.Current
		resp.Requested = ae.Requested
	}
	if apperr.Retryable(err) {
		_ = c.Error(err)
		c.Header("Retry-After", "1")
	}
	writeJSON(c, statusFor(kind), resp)
}
