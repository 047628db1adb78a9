package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// LocalOrigins are the origins a UI on the keeper device is served from
var LocalOrigins = []string{"http://localhost", "http://127.0.0.1"}

// Security returns CORS and response header middleware for the local API.
// The API only serves JSON, so the content policy denies everything.
func Security(origins []string) []echo.MiddlewareFunc {
	if len(origins) == 0 {
		origins = LocalOrigins
	}
	cors := middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPut,
			http.MethodPatch,
			http.MethodPost,
			http.MethodDelete,
		},
		AllowHeaders: []string{
			echo.HeaderContentType,
			echo.HeaderAccept,
			"Accept-Language",
		},
		ExposeHeaders: []string{echo.HeaderXRequestID},
		MaxAge:        600,
	})
	headers := middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:        "no-referrer",
	})
	return []echo.MiddlewareFunc{cors, headers}
}

// NewBodyLimit caps request bodies; attachment uploads carry photos and one
// video, so limits are in megabytes.
func NewBodyLimit(limit string) echo.MiddlewareFunc {
	return middleware.BodyLimit(limit)
}
