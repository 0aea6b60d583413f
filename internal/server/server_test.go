package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Jakeminator123/kurs/internal/config"
	"github.com/Jakeminator123/kurs/internal/metrics"
	"github.com/Jakeminator123/kurs/internal/openaiservice"
	"github.com/Jakeminator123/kurs/internal/wizard"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const analysisText = "Strength Factors\n- Daily walks\nChallenges\n- Late snacks\nOpportunities\n- Kimchi\nLife Wisdom\n- Eat slowly"

type fakeGateway struct {
	text     string
	imageURL string
	imageErr error
}

func (f *fakeGateway) GenerateText(_ context.Context, prompt string, _ []wizard.Message, _ float64) openaiservice.Result {
	if strings.Contains(prompt, "four-field analysis") {
		return openaiservice.Result{Value: analysisText}
	}
	return openaiservice.Result{Value: f.text}
}

func (f *fakeGateway) GenerateImage(context.Context, string, openaiservice.ImageOptions) openaiservice.Result {
	if f.imageErr != nil {
		return openaiservice.Result{Err: f.imageErr}
	}
	return openaiservice.Result{Value: f.imageURL}
}

func (f *fakeGateway) FetchImage(context.Context, string) ([]byte, error) {
	return nil, errors.New("offline")
}

func newTestServer(t *testing.T, g *fakeGateway) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	app, err := buildServer(Deps{
		Config: &config.Config{
			SessionSecret:    "test-secret",
			SessionCacheSize: 16,
			OutputDir:        t.TempDir(),
			SnapshotDir:      t.TempDir(),
			CoachName:        "Ulrika Davidsson",
		},
		Gateway:  g,
		Metrics:  metrics.MustNewMetrics(reg),
		Gatherer: reg,
		Now:      func() time.Time { return time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return app, reg
}

// browser keeps the session cookie between requests.
type browser struct {
	t       *testing.T
	h       http.Handler
	cookies []*http.Cookie
	header  http.Header
}

func (b *browser) do(method, path string, body any) *httptest.ResponseRecorder {
	b.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(b.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for k, v := range b.header {
		req.Header[k] = v
	}
	for _, ck := range b.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	b.h.ServeHTTP(rec, req)
	if cks := rec.Result().Cookies(); len(cks) > 0 {
		b.cookies = cks
	}
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func stageOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode(t, rec)["stage"].(string)
}

func TestWizardWalkthrough(t *testing.T) {
	g := &fakeGateway{text: "Week 1:\n\nEat greens.", imageErr: errors.New("content policy violation")}
	app, _ := newTestServer(t, g)
	b := &browser{t: t, h: app.RegisterRoutes()}

	// Intro
	assert.Equal(t, "intro", stageOf(t, b.do(http.MethodGet, "/api/wizard", nil)))
	require.NotEmpty(t, b.cookies)
	assert.Equal(t, "intro", stageOf(t, b.do(http.MethodPut, "/api/wizard/answers", map[string]any{
		"answers": map[string]any{"name": "Anna"},
	})))
	assert.Equal(t, "lifestyle", stageOf(t, b.do(http.MethodPost, "/api/wizard/continue", nil)))

	// Lifestyle
	rec := b.do(http.MethodPut, "/api/wizard/answers", map[string]any{"answers": map[string]any{"age": 17}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "age", decode(t, rec)["field"])

	assert.Equal(t, "lifestyle", stageOf(t, b.do(http.MethodPut, "/api/wizard/answers", map[string]any{
		"answers": map[string]any{"age": 52, "activity": "Moderate (some exercise per week)", "sleep": 7},
	})))
	assert.Equal(t, "diet", stageOf(t, b.do(http.MethodPost, "/api/wizard/continue", nil)))

	// Diet: the image failure reaches the participant
	rec = b.do(http.MethodPost, "/api/diet/vision-image", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "content policy violation")

	g.imageErr, g.imageURL = nil, "https://img.example/vision.png"
	rec = b.do(http.MethodPost, "/api/diet/vision-image", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, g.imageURL, decode(t, rec)["url"])

	b.do(http.MethodPut, "/api/wizard/answers", map[string]any{
		"answers": map[string]any{"diet": "Mediterranean", "superfoods": []string{"Olive oil", "Green tea"}},
	})
	assert.Equal(t, "longevity", stageOf(t, b.do(http.MethodPost, "/api/wizard/continue", nil)))

	// Longevity
	rec = b.do(http.MethodPost, "/api/longevity/analysis", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	quadrants := decode(t, rec)["quadrants"].([]any)
	require.Len(t, quadrants, 4)
	first := quadrants[0].(map[string]any)
	assert.Equal(t, "Strength Factors", first["heading"])
	assert.Equal(t, []any{"Daily walks"}, first["items"])

	rec = b.do(http.MethodGet, "/api/longevity/chart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))

	rec = b.do(http.MethodPost, "/api/longevity/motto", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "plan", stageOf(t, b.do(http.MethodPost, "/api/wizard/continue", nil)))

	// Plan
	rec = b.do(http.MethodPost, "/api/plan/course-plan", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, g.text, decode(t, rec)["text"])

	rec = b.do(http.MethodPost, "/api/plan/question", map[string]string{"question": "Is coffee fine?"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["history"], 2)

	rec = b.do(http.MethodPost, "/api/plan/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rep := decode(t, rec)
	assert.True(t, strings.HasPrefix(rep["data_uri"].(string), "data:application/pdf;base64,"))
	assert.Regexp(t, `^health_plan_20240601_.+\.pdf$`, rep["name"])

	rec = b.do(http.MethodGet, "/api/plan/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "health_plan_20240601_")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	assert.Equal(t, "plan", stageOf(t, b.do(http.MethodPost, "/api/wizard/continue", nil)))

	view := decode(t, b.do(http.MethodGet, "/api/wizard", nil))
	outputs := view["outputs"].(map[string]any)
	assert.Equal(t, "/api/longevity/chart", outputs["quadrant_chart"])
	assert.Equal(t, "/api/plan/report", outputs["report_path"])
}

func TestActionOnWrongStageConflicts(t *testing.T) {
	app, _ := newTestServer(t, &fakeGateway{text: "x"})
	b := &browser{t: t, h: app.RegisterRoutes()}

	rec := b.do(http.MethodPost, "/api/plan/course-plan", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "not offered")

	rec = b.do(http.MethodGet, "/api/longevity/chart", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionsAreIsolated(t *testing.T) {
	app, _ := newTestServer(t, &fakeGateway{})
	h := app.RegisterRoutes()
	anna := &browser{t: t, h: h}
	bert := &browser{t: t, h: h}

	anna.do(http.MethodPost, "/api/wizard/continue", nil)
	assert.Equal(t, "lifestyle", stageOf(t, anna.do(http.MethodGet, "/api/wizard", nil)))
	assert.Equal(t, "intro", stageOf(t, bert.do(http.MethodGet, "/api/wizard", nil)))

	// A forged cookie starts a fresh session instead of failing.
	forged := &browser{t: t, h: h, cookies: []*http.Cookie{{Name: cookieName, Value: "garbage"}}}
	assert.Equal(t, "intro", stageOf(t, forged.do(http.MethodGet, "/api/wizard", nil)))
}

func TestResetClearsSession(t *testing.T) {
	app, _ := newTestServer(t, &fakeGateway{})
	b := &browser{t: t, h: app.RegisterRoutes()}

	b.do(http.MethodPut, "/api/wizard/answers", map[string]any{"answers": map[string]any{"name": "Anna"}})
	b.do(http.MethodPost, "/api/wizard/continue", nil)

	rec := b.do(http.MethodPost, "/api/wizard/reset", nil)
	view := decode(t, rec)
	assert.Equal(t, "intro", view["stage"])
	assert.Empty(t, view["profile"])
	assert.Empty(t, view["outputs"])
	assert.Empty(t, view["history"])
}

func TestSnapshotSaveAndRestore(t *testing.T) {
	app, _ := newTestServer(t, &fakeGateway{})
	b := &browser{t: t, h: app.RegisterRoutes()}

	b.do(http.MethodPut, "/api/wizard/answers", map[string]any{"answers": map[string]any{"name": "Anna"}})
	rec := b.do(http.MethodPost, "/api/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	name := decode(t, rec)["name"].(string)
	assert.Regexp(t, `^progress_20240601_103000_[0-9a-f]{12}\.json$`, name)

	b.do(http.MethodPost, "/api/wizard/reset", nil)
	rec = b.do(http.MethodPost, "/api/snapshot/restore", map[string]any{"name": name})
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	restore := out["restore"].(map[string]any)
	assert.Equal(t, "intro", restore["live_stage"])
	assert.Equal(t, "lifestyle", restore["inferred_stage"])
	assert.Equal(t, false, restore["adopted"])
	assert.Equal(t, "Anna", out["wizard"].(map[string]any)["profile"].(map[string]any)["name"])

	rec = b.do(http.MethodPost, "/api/snapshot/restore", map[string]any{
		"snapshot": map[string]any{
			"user_data":            map[string]any{"name": "Bo", "diet": "Vegan"},
			"conversation_history": []any{},
			"timestamp":            "20240101_000000",
		},
		"adopt_inferred": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "longevity", decode(t, rec)["wizard"].(map[string]any)["stage"])

	rec = b.do(http.MethodPost, "/api/snapshot/restore", map[string]any{"name": "progress_19990101_000000.json"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = b.do(http.MethodPost, "/api/snapshot/restore", map[string]any{"name": "../etc/passwd"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSnapshotsStayWithTheirSession(t *testing.T) {
	app, _ := newTestServer(t, &fakeGateway{})
	h := app.RegisterRoutes()
	anna := &browser{t: t, h: h}
	bo := &browser{t: t, h: h}
	eve := &browser{t: t, h: h}

	save := func(b *browser, name string) string {
		b.do(http.MethodPut, "/api/wizard/answers", map[string]any{"answers": map[string]any{"name": name}})
		rec := b.do(http.MethodPost, "/api/snapshot", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		return decode(t, rec)["name"].(string)
	}
	restoredName := func(b *browser, snapshot string) (int, string) {
		rec := b.do(http.MethodPost, "/api/snapshot/restore", map[string]any{"name": snapshot})
		if rec.Code != http.StatusOK {
			return rec.Code, ""
		}
		profile := decode(t, rec)["wizard"].(map[string]any)["profile"].(map[string]any)
		return rec.Code, profile["name"].(string)
	}

	// Both save within the same clock second.
	annaSnap := save(anna, "Anna")
	boSnap := save(bo, "Bo")
	require.NotEqual(t, annaSnap, boSnap)

	code, name := restoredName(anna, annaSnap)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Anna", name)

	code, _ = restoredName(eve, boSnap)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = restoredName(anna, boSnap)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestEmailWithoutSMTPIsUnavailable(t *testing.T) {
	app, _ := newTestServer(t, &fakeGateway{})
	b := &browser{t: t, h: app.RegisterRoutes()}
	for i := 0; i < 4; i++ {
		b.do(http.MethodPost, "/api/wizard/continue", nil)
	}

	rec := b.do(http.MethodPost, "/api/plan/report/email", map[string]string{"email": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = b.do(http.MethodPost, "/api/plan/report/email", map[string]string{"email": "anna@example.org"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEvictedSessionReportIsRemoved(t *testing.T) {
	reg := prometheus.NewRegistry()
	outDir := t.TempDir()
	app, err := buildServer(Deps{
		Config: &config.Config{
			SessionSecret:    "test-secret",
			SessionCacheSize: 1,
			OutputDir:        outDir,
			SnapshotDir:      t.TempDir(),
		},
		Gateway:  &fakeGateway{},
		Metrics:  metrics.MustNewMetrics(reg),
		Gatherer: reg,
	})
	require.NoError(t, err)
	h := app.RegisterRoutes()

	anna := &browser{t: t, h: h}
	for i := 0; i < 4; i++ {
		anna.do(http.MethodPost, "/api/wizard/continue", nil)
	}
	rec := anna.do(http.MethodPost, "/api/plan/report", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	files, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, files, 1)

	// A second visitor pushes Anna out of the one-slot store.
	(&browser{t: t, h: h}).do(http.MethodGet, "/api/wizard", nil)
	assert.Eventually(t, func() bool {
		files, err := os.ReadDir(outDir)
		return err == nil && len(files) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEmailLimitIgnoresForwardedFor(t *testing.T) {
	app, _ := newTestServer(t, &fakeGateway{})
	b := &browser{t: t, h: app.RegisterRoutes(), header: http.Header{}}

	for i := 0; i < emailsPerHour; i++ {
		b.header.Set(echo.HeaderXForwardedFor, fmt.Sprintf("203.0.113.%d", i))
		rec := b.do(http.MethodPost, "/api/plan/report/email", map[string]string{"email": "anna@example.org"})
		assert.NotEqual(t, http.StatusTooManyRequests, rec.Code)
	}
	b.header.Set(echo.HeaderXForwardedFor, "198.51.100.99")
	rec := b.do(http.MethodPost, "/api/plan/report/email", map[string]string{"email": "anna@example.org"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestCORSOnlyForConfiguredOrigins(t *testing.T) {
	app, _ := newTestServer(t, &fakeGateway{})
	app.cfg.AllowedOrigins = []string{"https://kurs.example"}
	h := app.RegisterRoutes()

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/wizard", nil)
		req.Header.Set(echo.HeaderOrigin, origin)
		req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodGet)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, "https://kurs.example", preflight("https://kurs.example").Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Empty(t, preflight("https://evil.example").Header().Get(echo.HeaderAccessControlAllowOrigin))
}

func TestFractionalAnswerIsRejected(t *testing.T) {
	app, _ := newTestServer(t, &fakeGateway{})
	b := &browser{t: t, h: app.RegisterRoutes()}
	b.do(http.MethodPost, "/api/wizard/continue", nil)

	for _, age := range []any{40.7, nil} {
		rec := b.do(http.MethodPut, "/api/wizard/answers", map[string]any{"answers": map[string]any{"age": age}})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
	view := decode(t, b.do(http.MethodGet, "/api/wizard", nil))
	assert.Empty(t, view["profile"])
}

func TestHealthAndMetrics(t *testing.T) {
	app, _ := newTestServer(t, &fakeGateway{})
	b := &browser{t: t, h: app.RegisterRoutes()}
	b.do(http.MethodPost, "/api/wizard/continue", nil)

	rec := b.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode(t, rec)
	assert.Equal(t, "online", health["status"])
	assert.EqualValues(t, 1, health["sessions"])
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = b.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `kurs_wizard_stage_entered_total{stage="lifestyle"} 1`)
}

func TestNewServerTimeouts(t *testing.T) {
	srv, err := NewServer(Deps{
		Config:  &config.Config{Port: 9000, SessionSecret: "s", SessionCacheSize: 4, SnapshotDir: t.TempDir()},
		Gateway: &fakeGateway{},
	})
	require.NoError(t, err)
	assert.Equal(t, ":9000", srv.Addr)
	assert.Equal(t, time.Minute, srv.IdleTimeout)
	assert.Equal(t, 10*time.Second, srv.ReadTimeout)
}
