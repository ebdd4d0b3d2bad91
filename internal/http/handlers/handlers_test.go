package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outlet_survey/backend/internal/http/middleware"
	"github.com/outlet_survey/backend/internal/models"
	"github.com/outlet_survey/backend/internal/navigation"
	"github.com/outlet_survey/backend/internal/outlets"
	"github.com/outlet_survey/backend/internal/routing"
	"github.com/outlet_survey/backend/internal/storage"
)

type memBackend struct {
	mu       sync.Mutex
	assigned []models.AssignedOutlet
	captured []models.CapturedOutlet
	products []models.Product
	fetchErr error

	productCalls int
}

func (m *memBackend) GetAgentProfile(ctx context.Context, userID string) (*models.AgentProfile, error) {
	if userID == "u1" {
		return &models.AgentProfile{AgentID: "ag1", Name: "Kofi"}, nil
	}
	return nil, nil
}

func (m *memBackend) ListAssignedOutlets(ctx context.Context) ([]models.AssignedOutlet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return append([]models.AssignedOutlet(nil), m.assigned...), nil
}

func (m *memBackend) ListCapturedOutlets(ctx context.Context) ([]models.CapturedOutlet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return append([]models.CapturedOutlet(nil), m.captured...), nil
}

func (m *memBackend) UpsertCapturedOutlet(ctx context.Context, rec models.CapturedOutlet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captured = append(m.captured, rec)
	return nil
}

func (m *memBackend) DeleteCapturedOutlet(ctx context.Context, capturedID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.captured[:0]
	for _, c := range m.captured {
		if c.CapturedID != capturedID {
			kept = append(kept, c)
		}
	}
	m.captured = kept
	return nil
}

func (m *memBackend) ListActiveProducts(ctx context.Context) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.productCalls++
	return m.products, nil
}

type memUploader struct {
	folder, name, contentType string
	body                      []byte
}

func (m *memUploader) Upload(ctx context.Context, folder, name, contentType string, body io.Reader) (storage.Object, error) {
	m.folder, m.name, m.contentType = folder, name, contentType
	m.body, _ = io.ReadAll(body)
	path := folder + "/" + name + "_1.jpg"
	return storage.Object{URL: "https://cdn.test/b/" + path, Path: path}, nil
}

type okPinger struct{ err error }

func (p okPinger) Ping(ctx context.Context) error { return p.err }

type staticRouter struct{}

func (staticRouter) FetchRoute(ctx context.Context, startLon, startLat, endLon, endLat float64) (routing.Response, error) {
	return routing.Response{}, &routing.RoutingError{Cause: errors.New("offline")}
}

type testEnv struct {
	engine   *gin.Engine
	svc      *outlets.Service
	backend  *memBackend
	uploader *memUploader
	nav      *navigation.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := &memBackend{
		assigned: []models.AssignedOutlet{
			{AssignedOutletID: "a1", AgentID: "ag1", OutletName: "Kofi Store", OutletType: models.OutletTypeRetail, Community: "Osu", Latitude: 5.61, Longitude: -0.19},
			{AssignedOutletID: "a2", AgentID: "ag1", OutletName: "Ama Salon", OutletType: models.OutletTypeSalon, Community: "Labone", Latitude: 5.62, Longitude: -0.18},
			{AssignedOutletID: "a3", AgentID: "ag2", OutletName: "Other", Latitude: 5.6, Longitude: -0.2},
		},
		products: []models.Product{{ID: "p1", Name: "Shampoo"}},
	}
	svc := outlets.NewService(backend, nil, zerolog.Nop())
	nav := navigation.NewManager(staticRouter{}, navigation.Config{PollInterval: 20 * time.Millisecond, PositionTimeout: 50 * time.Millisecond, IdleTimeouts: 4}, zerolog.Nop())
	t.Cleanup(nav.CloseAll)
	uploader := &memUploader{}

	h := &Handler{
		DB:             okPinger{},
		Outlets:        svc,
		Navigation:     nav,
		Images:         uploader,
		Validator:      svc.Validator,
		Logger:         zerolog.Nop(),
		RequestTimeout: 5 * time.Second,
		MaxUploadBytes: 1 << 20,
	}

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.AgentAuth("", svc))
	r.GET("/api/outlets", h.ListOutlets)
	r.GET("/api/outlets/:id", h.OutletDetails)
	r.POST("/api/outlets/:id/validate", h.ValidateOutlet)
	r.DELETE("/api/outlets/:id/validate", h.UnvalidateOutlet)
	r.GET("/api/products", h.ListProducts)
	r.POST("/api/images", h.UploadImage)
	r.GET("/api/session", h.CurrentSession)
	r.POST("/api/session/signout", h.SignOut)
	r.POST("/api/navigation", h.StartNavigation)
	r.GET("/api/navigation/:id", h.NavigationState)
	r.POST("/api/navigation/:id/position", h.ReportPosition)
	r.DELETE("/api/navigation/:id", h.StopNavigation)

	return &testEnv{engine: r, svc: svc, backend: backend, uploader: uploader, nav: nav}
}

func (e *testEnv) do(method, path string, body any, userID string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestListOutlets(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/outlets?search=ama", nil, "u1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var listing outlets.Listing
	decode(t, w, &listing)
	require.Len(t, listing.Outlets, 1)
	assert.Equal(t, "a2", listing.Outlets[0].AssignedOutletID)
	assert.Equal(t, 1, listing.Counts.NotValidated)
	assert.Equal(t, []string{"Labone", "Osu"}, listing.Options.Communities)
}

func TestListOutletsRequiresSession(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/outlets", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListOutletsRejectsUnknownValidationFilter(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/outlets?validation=maybe", nil, "u1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListOutletsFetchFailure(t *testing.T) {
	env := newTestEnv(t)
	env.backend.fetchErr = errors.New("backend down")

	w := env.do(http.MethodGet, "/api/outlets", nil, "u1")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "FETCH_FAILED")
}

func TestOutletDetailsNotFound(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/outlets/a3", nil, "u1")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func validForm() map[string]any {
	return map[string]any{
		"outlet_name":                "Kofi Store",
		"outlet_type":                "retail",
		"contact_name":               "Kofi Mensah",
		"contact_phone":              "0241234567",
		"business_phone":             "0301234567",
		"outlet_front_image":         "https://cdn.test/b/u1/front_1.jpg",
		"outlet_side_image":          "https://cdn.test/b/u1/side_1.jpg",
		"product_names":              []string{},
		"product_images":             []string{},
		"partnership_agreement_date": "2024-05-01",
		"partnership_expiring_date":  "2025-05-01",
	}
}

func TestValidateAndUnvalidateOutlet(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/outlets/a1/validate", validForm(), "u1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out map[string]any
	decode(t, w, &out)
	assert.Equal(t, "cap_a1_ag1", out["captured_id"])
	assert.Equal(t, true, out["_isValidated"])
	assert.Equal(t, "u1", out["agent_user_id"])
	env.backend.mu.Lock()
	require.Len(t, env.backend.captured, 1)
	assert.Equal(t, "u1", env.backend.captured[0].AgentUserID)
	assert.Equal(t, "ag1", env.backend.captured[0].AgentID)
	env.backend.mu.Unlock()

	w = env.do(http.MethodGet, "/api/outlets?validation=validated", nil, "u1")
	var listing outlets.Listing
	decode(t, w, &listing)
	assert.Len(t, listing.Outlets, 1)

	w = env.do(http.MethodDelete, "/api/outlets/cap_a1_ag1/validate", nil, "u1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(http.MethodDelete, "/api/outlets/a1/validate", nil, "u1")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestValidateOutletRejectsForm(t *testing.T) {
	env := newTestEnv(t)
	form := validForm()
	form["contact_phone"] = "12345678901"

	w := env.do(http.MethodPost, "/api/outlets/a1/validate", form, "u1")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Contact phone must be 1-10 digits")
}

func TestListProducts(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/products", nil, "u1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Shampoo")

	env.do(http.MethodGet, "/api/products", nil, "u1")
	assert.Equal(t, 1, env.backend.productCalls)

	env.backend.products = append(env.backend.products, models.Product{ID: "p2", Name: "Relaxer"})
	w = env.do(http.MethodGet, "/api/products?refresh=1", nil, "u1")
	assert.Equal(t, 2, env.backend.productCalls)
	assert.Contains(t, w.Body.String(), "Relaxer")
}

func TestCurrentSessionFallsBackToUser(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodGet, "/api/session", nil, "u7")
	var sess models.AgentSession
	decode(t, w, &sess)
	assert.Equal(t, "u7", sess.AgentID)
}

func multipartImage(t *testing.T, contentType string, size int) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="front.jpg"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte{0xff}, size))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("name", "front"))
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadImage(t *testing.T) {
	env := newTestEnv(t)

	body, ct := multipartImage(t, "image/jpeg", 128)
	req := httptest.NewRequest(http.MethodPost, "/api/images", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-User-Id", "u1")
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "u1", env.uploader.folder)
	assert.Equal(t, "front", env.uploader.name)
	assert.Len(t, env.uploader.body, 128)
	assert.Contains(t, w.Body.String(), `"path":"u1/front_1.jpg"`)
}

func TestUploadImageRejects(t *testing.T) {
	env := newTestEnv(t)
	cases := map[string]struct {
		contentType string
		size        int
		status      int
	}{
		"not an image": {"application/pdf", 16, http.StatusBadRequest},
		"too large":    {"image/png", 2 << 20, http.StatusRequestEntityTooLarge},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			body, ct := multipartImage(t, tc.contentType, tc.size)
			req := httptest.NewRequest(http.MethodPost, "/api/images", body)
			req.Header.Set("Content-Type", ct)
			req.Header.Set("X-User-Id", "u1")
			w := httptest.NewRecorder()
			env.engine.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
		})
	}
}

func TestNavigationLifecycle(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/navigation", map[string]string{"outlet_id": "a1"}, "u1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var started struct {
		SessionID string              `json:"session_id"`
		Snapshot  navigation.Snapshot `json:"snapshot"`
	}
	decode(t, w, &started)
	require.NotEmpty(t, started.SessionID)
	assert.Equal(t, "a1", started.Snapshot.Destination.OutletID)

	path := "/api/navigation/" + started.SessionID
	w = env.do(http.MethodPost, path+"/position", map[string]float64{"lat": 5.60, "lon": -0.18}, "u1")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	require.Eventually(t, func() bool {
		w := env.do(http.MethodGet, path, nil, "u1")
		var snap navigation.Snapshot
		_ = json.Unmarshal(w.Body.Bytes(), &snap)
		return snap.Phase == navigation.PhaseTracking && snap.DistanceLabel == navigation.LabelStraightLine
	}, 2*time.Second, 10*time.Millisecond)

	w = env.do(http.MethodGet, path, nil, "u2")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodDelete, path, nil, "u1")
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(http.MethodGet, path, nil, "u1")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReportPositionValidation(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/navigation", map[string]string{"outlet_id": "a1"}, "u1")
	require.Equal(t, http.StatusCreated, w.Code)
	var started struct {
		SessionID string `json:"session_id"`
	}
	decode(t, w, &started)
	path := "/api/navigation/" + started.SessionID + "/position"

	w = env.do(http.MethodPost, path, map[string]any{}, "u1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(http.MethodPost, path, map[string]any{"lat": 95, "lon": 0}, "u1")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(http.MethodPost, path, map[string]any{"error_code": 1}, "u1")
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestAbandonedNavigationExpires(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/navigation", map[string]string{"outlet_id": "a1"}, "u1")
	require.Equal(t, http.StatusCreated, w.Code)
	var started struct {
		SessionID string `json:"session_id"`
	}
	decode(t, w, &started)

	require.Eventually(t, func() bool { return env.nav.Len() == 0 }, 2*time.Second, 20*time.Millisecond)
	w = env.do(http.MethodPost, "/api/navigation/"+started.SessionID+"/position", map[string]float64{"lat": 5.60, "lon": -0.18}, "u1")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSignOutClosesNavigation(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/api/navigation", map[string]string{"outlet_id": "a1"}, "u1")
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(http.MethodPost, "/api/session/signout", nil, "u1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"navigation_closed":1`)
	assert.Equal(t, 0, env.nav.Len())
}
