package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/formdesk/formdesk/internal/auth"
	"github.com/formdesk/formdesk/internal/forms"
	"github.com/formdesk/formdesk/internal/logger"
)

// New builds the HTTP surface: request logging, token verification on the
// API routes, and the elevated-role gate on every mutation.
func New(svc *forms.Service, verifier *auth.Verifier, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomiddleware.Recover())
	e.Use(logger.RequestLogger(log))
	e.Use(auth.Middleware(verifier))

	h := &FormsHandler{svc: svc}

	e.GET("/health", health)

	api := e.Group("/api/forms")
	api.POST("/create", h.Create, auth.RequireElevatedRole())
	api.PUT("/update/:id", h.Update, auth.RequireElevatedRole())
	api.DELETE("/delete/:id", h.Delete, auth.RequireElevatedRole())
	api.GET("/getForms", h.List)
	api.GET("/getPinnedForms", h.Pinned)
	api.GET("/getForm/:id", h.Get)

	return e
}

func health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}
