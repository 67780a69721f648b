package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const RequestIDHeader = "X-Request-ID"

const requestIDKey = "request_id"

// RequestID propagates the caller's X-Request-ID or assigns a fresh one, and
// exposes it to later middleware through GetRequestID.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" {
				rid = uuid.New().String()
			}
			c.Set(requestIDKey, rid)
			c.Response().Header().Set(RequestIDHeader, rid)
			return next(c)
		}
	}
}

// GetRequestID returns the id RequestID assigned to c. Middleware that runs
// outside RequestID still finds it on the response header once the inner
// chain has run.
func GetRequestID(c echo.Context) string {
	if rid, ok := c.Get(requestIDKey).(string); ok {
		return rid
	}
	return c.Response().Header().Get(RequestIDHeader)
}
