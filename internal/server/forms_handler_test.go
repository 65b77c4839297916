package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/formdesk/formdesk/internal/access"
	"github.com/formdesk/formdesk/internal/auth"
	"github.com/formdesk/formdesk/internal/forms"
	"github.com/formdesk/formdesk/internal/models"
	"github.com/formdesk/formdesk/internal/notify"
	"github.com/formdesk/formdesk/internal/store/memory"
)

type fakeDirectory struct {
	orgsByUser map[string][]access.Organisation
	treeByUser map[string][]access.Organisation
}

func (f *fakeDirectory) AccessibleOrganisations(ctx context.Context, userID string) ([]access.Organisation, error) {
	return f.orgsByUser[userID], nil
}

func (f *fakeDirectory) FullOrganisationsTree(ctx context.Context, userID string) ([]access.Organisation, error) {
	return f.treeByUser[userID], nil
}

func (f *fakeDirectory) UsersByOrganisationID(ctx context.Context, orgID string, includeDetails bool) ([]access.User, error) {
	return nil, nil
}

type discardSink struct{}

func (discardSink) Queue(ctx context.Context, req *notify.Request) error { return nil }
func (discardSink) Flush(ctx context.Context) error                      { return nil }

func newTestService(t *testing.T) (*forms.Service, *fakeDirectory) {
	t.Helper()
	dir := &fakeDirectory{
		orgsByUser: map[string][]access.Organisation{},
		treeByUser: map[string][]access.Organisation{},
	}
	svc := forms.NewService(forms.ServiceConfig{
		Store:    memory.NewFormStore(),
		Resolver: access.NewResolver(dir),
		Fanout:   notify.NewFanout(dir, discardSink{}),
		Now:      func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) },
	})
	return svc, dir
}

func adminPrincipal() *auth.Principal {
	return &auth.Principal{ID: "u1", Name: "Dana", Roles: []string{auth.RoleAdmin}}
}

// invoke runs one handler with a fabricated request, skipping the JWT
// middleware but keeping the error-to-status mapping.
func invoke(t *testing.T, handler echo.HandlerFunc, p *auth.Principal, method, target, body string, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if len(params) > 0 {
		names := make([]string, 0, len(params))
		values := make([]string, 0, len(params))
		for k, v := range params {
			names = append(names, k)
			values = append(values, v)
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	if p != nil {
		auth.SetPrincipal(c, p)
	}

	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestFormsHandler_Create(t *testing.T) {
	t.Run("returns the persisted form", func(t *testing.T) {
		svc, _ := newTestService(t)
		h := &FormsHandler{svc: svc}

		rec := invoke(t, h.Create, adminPrincipal(), http.MethodPost, "/api/forms/create",
			`{"title":"Weekly Report"}`, nil)

		require.Equal(t, http.StatusOK, rec.Code)

		var got models.Form
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.NotEmpty(t, got.ID)
		require.Equal(t, "u1", got.OwnerID)
	})

	t.Run("validation failures map to 400 with field errors", func(t *testing.T) {
		svc, _ := newTestService(t)
		h := &FormsHandler{svc: svc}

		rec := invoke(t, h.Create, adminPrincipal(), http.MethodPost, "/api/forms/create",
			`{"title":"Nope"}`, nil)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "forms.formDto.titleTooShort|chars:6")
	})

	t.Run("missing role maps to 401", func(t *testing.T) {
		svc, _ := newTestService(t)
		h := &FormsHandler{svc: svc}

		p := &auth.Principal{ID: "u1", Roles: []string{"Member"}}
		rec := invoke(t, h.Create, p, http.MethodPost, "/api/forms/create",
			`{"title":"Weekly Report"}`, nil)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed body maps to 400", func(t *testing.T) {
		svc, _ := newTestService(t)
		h := &FormsHandler{svc: svc}

		rec := invoke(t, h.Create, adminPrincipal(), http.MethodPost, "/api/forms/create",
			`{"title":`, nil)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestFormsHandler_Get(t *testing.T) {
	t.Run("unknown id maps to 404", func(t *testing.T) {
		svc, _ := newTestService(t)
		h := &FormsHandler{svc: svc}

		rec := invoke(t, h.Get, adminPrincipal(), http.MethodGet, "/api/forms/getForm/missing",
			"", map[string]string{"id": "missing"})

		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unshared form maps to 401", func(t *testing.T) {
		svc, dir := newTestService(t)
		h := &FormsHandler{svc: svc}
		dir.treeByUser["u1"] = []access.Organisation{{ID: "org-a", FullID: "root_org-a"}}

		created, err := svc.Create(context.Background(), adminPrincipal(), &models.Form{
			Title: "Weekly Report",
			FormAccesses: []models.FormAccess{
				{OrganisationID: "org-a", FullOrganisationID: "root_org-a"},
			},
		})
		require.NoError(t, err)

		outsider := &auth.Principal{ID: "u2", Roles: []string{"Member"}}
		rec := invoke(t, h.Get, outsider, http.MethodGet, "/api/forms/getForm/"+created.ID,
			"", map[string]string{"id": created.ID})

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("owner fetches the form", func(t *testing.T) {
		svc, _ := newTestService(t)
		h := &FormsHandler{svc: svc}

		created, err := svc.Create(context.Background(), adminPrincipal(), &models.Form{Title: "Weekly Report"})
		require.NoError(t, err)

		rec := invoke(t, h.Get, adminPrincipal(), http.MethodGet, "/api/forms/getForm/"+created.ID,
			"", map[string]string{"id": created.ID})

		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestFormsHandler_List(t *testing.T) {
	t.Run("returns forms with the unpaginated total", func(t *testing.T) {
		svc, _ := newTestService(t)
		h := &FormsHandler{svc: svc}

		for i := 0; i < 3; i++ {
			_, err := svc.Create(context.Background(), adminPrincipal(), &models.Form{Title: "Weekly Report"})
			require.NoError(t, err)
		}

		rec := invoke(t, h.List, adminPrincipal(), http.MethodGet,
			"/api/forms/getForms?page=0&elementsPerPage=2", "", nil)

		require.Equal(t, http.StatusOK, rec.Code)

		var result forms.ListResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		require.Len(t, result.Forms, 2)
		require.EqualValues(t, 3, result.Total)
	})

	t.Run("unknown sort column maps to 400", func(t *testing.T) {
		svc, _ := newTestService(t)
		h := &FormsHandler{svc: svc}

		rec := invoke(t, h.List, adminPrincipal(), http.MethodGet,
			"/api/forms/getForms?sortBy=ownerId&sortOrder=asc", "", nil)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Contains(t, rec.Body.String(), "forms.getForms.invalidSortColumn")
	})

	t.Run("invalid pagination maps to 400", func(t *testing.T) {
		svc, _ := newTestService(t)
		h := &FormsHandler{svc: svc}

		rec := invoke(t, h.List, adminPrincipal(), http.MethodGet,
			"/api/forms/getForms?page=abc", "", nil)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid date maps to 400", func(t *testing.T) {
		svc, _ := newTestService(t)
		h := &FormsHandler{svc: svc}

		rec := invoke(t, h.List, adminPrincipal(), http.MethodGet,
			"/api/forms/getForms?startDate=yesterday", "", nil)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestFormsHandler_Delete(t *testing.T) {
	t.Run("owner deletes and a re-fetch is 404", func(t *testing.T) {
		svc, _ := newTestService(t)
		h := &FormsHandler{svc: svc}

		created, err := svc.Create(context.Background(), adminPrincipal(), &models.Form{Title: "Weekly Report"})
		require.NoError(t, err)

		rec := invoke(t, h.Delete, adminPrincipal(), http.MethodDelete, "/api/forms/delete/"+created.ID,
			"", map[string]string{"id": created.ID})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = invoke(t, h.Get, adminPrincipal(), http.MethodGet, "/api/forms/getForm/"+created.ID,
			"", map[string]string{"id": created.ID})
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func mustVerifier(t *testing.T) *auth.Verifier {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	verifier, err := auth.NewVerifier(string(publicPEM))
	require.NoError(t, err)
	return verifier
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestServer_Health(t *testing.T) {
	svc, _ := newTestService(t)

	verifier := mustVerifier(t)
	e := New(svc, verifier, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RequiresBearerToken(t *testing.T) {
	svc, _ := newTestService(t)

	verifier := mustVerifier(t)
	e := New(svc, verifier, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/forms/getForms", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
