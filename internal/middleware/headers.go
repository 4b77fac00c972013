package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

var corsMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", ")

// CORS returns an Echo middleware that allows any origin to call the proxy
// with GET, POST and OPTIONS. Headers are set before the handler runs so they
// are present on every response, including errors and preflights.
func CORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set(echo.HeaderAccessControlAllowOrigin, "*")
			h.Set(echo.HeaderAccessControlAllowMethods, corsMethods)
			h.Set(echo.HeaderAccessControlAllowHeaders, echo.HeaderContentType)
			return next(c)
		}
	}
}

// SecurityHeaders returns an Echo middleware that adds security headers.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set(echo.HeaderXContentTypeOptions, "nosniff")
			h.Set(echo.HeaderXFrameOptions, "DENY")
			return next(c)
		}
	}
}
