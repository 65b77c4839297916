package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/formdesk/formdesk/internal/auth"
	"github.com/formdesk/formdesk/internal/forms"
	"github.com/formdesk/formdesk/internal/models"
)

// FormsHandler binds the HTTP transport to the forms lifecycle service.
// Handlers stay thin: bind, call, map errors.
type FormsHandler struct {
	svc *forms.Service
}

// Create handles POST /api/forms/create.
func (h *FormsHandler) Create(c echo.Context) error {
	caller, ok := auth.FromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	var payload models.Form
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	form, err := h.svc.Create(c.Request().Context(), caller, &payload)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, form)
}

// Update handles PUT /api/forms/update/:id.
func (h *FormsHandler) Update(c echo.Context) error {
	caller, ok := auth.FromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	var payload models.Form
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	form, err := h.svc.Update(c.Request().Context(), caller, c.Param("id"), &payload)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, form)
}

// Delete handles DELETE /api/forms/delete/:id.
func (h *FormsHandler) Delete(c echo.Context) error {
	caller, ok := auth.FromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	if err := h.svc.Delete(c.Request().Context(), caller, c.Param("id")); err != nil {
		return mapError(err)
	}

	return c.NoContent(http.StatusOK)
}

// List handles GET /api/forms/getForms with the optional filter, sort and
// pagination query parameters.
func (h *FormsHandler) List(c echo.Context) error {
	caller, ok := auth.FromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	filters, err := parseListFilters(c)
	if err != nil {
		return err
	}

	result, err := h.svc.List(c.Request().Context(), caller, *filters)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, result)
}

// Pinned handles GET /api/forms/getPinnedForms.
func (h *FormsHandler) Pinned(c echo.Context) error {
	caller, ok := auth.FromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	result, err := h.svc.Pinned(c.Request().Context(), caller)
	if err != nil {
		return mapError(err)
	}
	if result == nil {
		result = []*models.Form{}
	}

	return c.JSON(http.StatusOK, result)
}

// Get handles GET /api/forms/getForm/:id.
func (h *FormsHandler) Get(c echo.Context) error {
	caller, ok := auth.FromContext(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}

	form, err := h.svc.Get(c.Request().Context(), caller, c.Param("id"))
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, form)
}

func parseListFilters(c echo.Context) (*forms.ListFilters, error) {
	filters := &forms.ListFilters{
		Search:    c.QueryParam("search"),
		SortBy:    c.QueryParam("sortBy"),
		SortOrder: c.QueryParam("sortOrder"),
	}

	if raw := c.QueryParam("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 0 {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid page")
		}
		filters.Page = &page
	}

	if raw := c.QueryParam("elementsPerPage"); raw != "" {
		perPage, err := strconv.Atoi(raw)
		if err != nil || perPage <= 0 {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid elementsPerPage")
		}
		filters.PerPage = &perPage
	}

	if raw := c.QueryParam("startDate"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid startDate")
		}
		t = t.UTC()
		filters.StartDate = &t
	}

	if raw := c.QueryParam("endDate"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid endDate")
		}
		t = t.UTC()
		filters.EndDate = &t
	}

	if raw := c.QueryParam("tags"); raw != "" {
		filters.Tags = strings.Split(raw, ",")
	}

	return filters, nil
}

// mapError translates the service error taxonomy to HTTP. Authorization
// failures map to 401 and stay distinct from 404 even though clients often
// present them the same way.
func mapError(err error) error {
	var vErr *forms.ValidationError
	if errors.As(err, &vErr) {
		return echo.NewHTTPError(http.StatusBadRequest, echo.Map{"errors": vErr.Fields})
	}

	switch {
	case errors.Is(err, forms.ErrForbidden):
		return echo.NewHTTPError(http.StatusUnauthorized, "not authorized")
	case errors.Is(err, forms.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "form not found")
	case errors.Is(err, forms.ErrUpstream):
		return echo.NewHTTPError(http.StatusBadGateway, "upstream dependency failure")
	}

	return err
}
