package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/Jakeminator123/kurs/internal/mailer"
	"github.com/Jakeminator123/kurs/internal/pages"
	"github.com/Jakeminator123/kurs/internal/quadrant"
	"github.com/Jakeminator123/kurs/internal/utility"
	"github.com/Jakeminator123/kurs/internal/wizard"
	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

/* ====================================================================
                   		Views
==================================================================== */

type wizardView struct {
	SessionID  string              `json:"session_id"`
	Stage      wizard.Stage        `json:"stage"`
	StageTitle string              `json:"stage_title"`
	StageIndex int                 `json:"stage_index"`
	StageCount int                 `json:"stage_count"`
	Page       pages.Page          `json:"page"`
	Profile    *wizard.UserProfile `json:"profile"`
	Outputs    map[string]string   `json:"outputs"`
	History    []wizard.Message    `json:"history"`
}

func newWizardView(ws *wizard.Session) wizardView {
	outputs := make(map[string]string)
	for _, key := range ws.ArtifactKeys() {
		a, _ := ws.Artifact(key)
		switch {
		case key == wizard.ArtifactReportPath:
			outputs[key] = "/api/plan/report"
		case a.Kind == wizard.ChartImageBuffer:
			outputs[key] = "/api/longevity/chart"
		case a.Kind == wizard.ImageReference:
			outputs[key] = a.URL
		default:
			outputs[key] = a.Text
		}
	}
	history := ws.History
	if history == nil {
		history = []wizard.Message{}
	}
	return wizardView{
		SessionID:  ws.ID,
		Stage:      ws.Stage,
		StageTitle: ws.Stage.Title(),
		StageIndex: ws.Stage.Index(),
		StageCount: len(wizard.Stages),
		Page:       pages.ForSession(ws),
		Profile:    ws.Profile,
		Outputs:    outputs,
		History:    history,
	}
}

type quadrantHeading struct {
	Heading string   `json:"heading"`
	Color   string   `json:"color"`
	Items   []string `json:"items"`
}

func quadrantView(a quadrant.Analysis) []quadrantHeading {
	out := make([]quadrantHeading, 0, len(a.Scheme.Headings))
	for i, h := range a.Scheme.Headings {
		items := a.Buckets[i]
		if items == nil {
			items = []string{}
		}
		out = append(out, quadrantHeading{
			Heading: h.Name,
			Color:   fmt.Sprintf("#%02X%02X%02X", h.Color.R, h.Color.G, h.Color.B),
			Items:   items,
		})
	}
	return out
}

/* ====================================================================
                   		Errors
==================================================================== */

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

// actionError maps a page action failure to a status code.
func actionError(c echo.Context, err error) error {
	var fieldErr *pages.FieldError
	var addrErr *mailer.AddressError
	switch {
	case errors.As(err, &fieldErr):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": fieldErr.Error(), "field": fieldErr.Key})
	case errors.Is(err, pages.ErrWrongStage):
		return errorJSON(c, http.StatusConflict, err.Error())
	case errors.Is(err, pages.ErrEmptyQuestion), errors.Is(err, wizard.ErrInvalidName), errors.As(err, &addrErr):
		return errorJSON(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, wizard.ErrSnapshotNotFound):
		return errorJSON(c, http.StatusNotFound, err.Error())
	case errors.Is(err, mailer.ErrNotConfigured):
		return errorJSON(c, http.StatusServiceUnavailable, "E-mail delivery is not configured")
	case errors.Is(err, context.DeadlineExceeded):
		return errorJSON(c, http.StatusGatewayTimeout, "The request timed out")
	default:
		utility.LoggerFromContext(c).Error().Err(err).Msg("action failed")
		return errorJSON(c, http.StatusInternalServerError, "Internal server error")
	}
}

/* ====================================================================
                   		Health
==================================================================== */

func (s *Server) healthHandler(c echo.Context) error {
	ctx := c.Request().Context()

	resp := map[string]interface{}{
		"status":   "online",
		"uptime":   time.Since(s.started).Round(time.Second).String(),
		"sessions": s.sessions.Len(),
	}

	if cred, ok := s.gateway.(interface{ HasCredential() bool }); ok {
		resp["model_api"] = map[string]bool{"credential": cred.HasCredential()}
	}

	if s.db != nil {
		dbStats := s.db.Health(ctx)
		resp["database"] = dbStats
		if dbStats["status"] != "up" {
			resp["status"] = "degraded"
		}
	}

	// Host stats are best effort; any collector may be unavailable in a container.
	hostStats := map[string]interface{}{}
	if v, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		hostStats["memory_used_percent"] = fmt.Sprintf("%.2f%%", v.UsedPercent)
	}
	if p, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(p) > 0 {
		hostStats["cpu_usage_percent"] = fmt.Sprintf("%.2f%%", p[0])
	}
	if h, err := host.InfoWithContext(ctx); err == nil {
		hostStats["hostname"] = h.Hostname
		hostStats["os"] = h.OS
	}
	resp["host"] = hostStats

	return c.JSON(http.StatusOK, resp)
}

/* ====================================================================
                   		Wizard navigation
==================================================================== */

func (s *Server) getWizardHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, newWizardView(sessionFrom(c)))
}

func (s *Server) continueHandler(c echo.Context) error {
	ws := sessionFrom(c)
	s.actions.Continue(c.Request().Context(), ws)
	s.hub.Rerender(ws.ID)
	return c.JSON(http.StatusOK, newWizardView(ws))
}

func (s *Server) resetHandler(c echo.Context) error {
	ws := sessionFrom(c)
	s.actions.Reset(c.Request().Context(), ws)
	utility.LoggerFromContext(c).Info().Msg("wizard reset")
	s.hub.Rerender(ws.ID)
	return c.JSON(http.StatusOK, newWizardView(ws))
}

type answersRequest struct {
	Answers map[string]wizard.Value `json:"answers"`
}

func (s *Server) answersHandler(c echo.Context) error {
	ws := sessionFrom(c)

	// 1. Bind the answers
	var req answersRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	if len(req.Answers) == 0 {
		return errorJSON(c, http.StatusBadRequest, "No answers given")
	}

	// 2. Validate against the current page and store
	if err := s.actions.Answer(ws, req.Answers); err != nil {
		return actionError(c, err)
	}

	return c.JSON(http.StatusOK, newWizardView(ws))
}

/* ====================================================================
                   		Generation actions
==================================================================== */

func (s *Server) visionImageHandler(c echo.Context) error {
	url, err := s.actions.VisionImage(c.Request().Context(), sessionFrom(c))
	if errors.Is(err, pages.ErrWrongStage) {
		return actionError(c, err)
	}
	if err != nil {
		// The image policy surfaces failures to the participant as a message.
		utility.LoggerFromContext(c).Error().Err(err).Msg("vision image generation failed")
		return errorJSON(c, http.StatusBadGateway, fmt.Sprintf("Could not generate the image: %v", err))
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}

func (s *Server) quadrantAnalysisHandler(c echo.Context) error {
	res, err := s.actions.QuadrantAnalysis(c.Request().Context(), sessionFrom(c))
	if err != nil {
		return actionError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"text":      res.Text,
		"quadrants": quadrantView(res.Parsed),
		"chart_url": "/api/longevity/chart",
	})
}

func (s *Server) chartHandler(c echo.Context) error {
	chart, ok := sessionFrom(c).Artifact(wizard.ArtifactQuadrantChart)
	if !ok {
		return errorJSON(c, http.StatusNotFound, "No chart has been generated yet")
	}
	return c.Blob(http.StatusOK, "image/png", chart.PNG)
}

func (s *Server) mottoHandler(c echo.Context) error {
	text, err := s.actions.LifeMotto(c.Request().Context(), sessionFrom(c))
	if err != nil {
		return actionError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"text": text})
}

func (s *Server) factorsHandler(c echo.Context) error {
	text, err := s.actions.LongevityFactors(c.Request().Context(), sessionFrom(c))
	if err != nil {
		return actionError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"text": text})
}

func (s *Server) coursePlanHandler(c echo.Context) error {
	text, err := s.actions.CoursePlan(c.Request().Context(), sessionFrom(c))
	if err != nil {
		return actionError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"text": text})
}

type questionRequest struct {
	Question string `json:"question"`
}

func (s *Server) questionHandler(c echo.Context) error {
	ws := sessionFrom(c)
	var req questionRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}

	answer, err := s.actions.Ask(c.Request().Context(), ws, req.Question)
	if err != nil {
		return actionError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"answer":  answer,
		"history": ws.History,
	})
}

/* ====================================================================
                   		Report
==================================================================== */

type reportResponse struct {
	Name        string `json:"name"`
	Size        int    `json:"size"`
	DataURI     string `json:"data_uri"`
	DownloadURL string `json:"download_url"`
}

func (s *Server) reportHandler(c echo.Context) error {
	rep, err := s.actions.Report(c.Request().Context(), sessionFrom(c))
	if err != nil {
		return actionError(c, err)
	}
	return c.JSON(http.StatusOK, reportResponse{
		Name:        rep.Name,
		Size:        rep.Size,
		DataURI:     rep.DataURI,
		DownloadURL: "/api/plan/report",
	})
}

func (s *Server) downloadReportHandler(c echo.Context) error {
	path := sessionFrom(c).ArtifactText(wizard.ArtifactReportPath)
	if path == "" {
		return errorJSON(c, http.StatusNotFound, "No report has been generated yet")
	}
	return c.Attachment(path, filepath.Base(path))
}

type emailRequest struct {
	Email string `json:"email"`
}

func (s *Server) emailReportHandler(c echo.Context) error {
	var req emailRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		return errorJSON(c, http.StatusBadRequest, "An e-mail address is required")
	}

	if err := s.limiter.Allow(c.RealIP()); err != nil {
		return errorJSON(c, http.StatusTooManyRequests, err.Error())
	}

	name, err := s.actions.EmailReport(c.Request().Context(), sessionFrom(c), strings.TrimSpace(req.Email))
	if err != nil {
		return actionError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Your health plan has been sent",
		"file":    name,
	})
}

/* ====================================================================
                   		Snapshots
==================================================================== */

func (s *Server) saveSnapshotHandler(c echo.Context) error {
	ws := sessionFrom(c)
	name, err := s.snapshots.Save(c.Request().Context(), ws.ID, ws.Snapshot(s.now()))
	if err != nil {
		return actionError(c, err)
	}
	utility.LoggerFromContext(c).Info().Str("snapshot", name).Msg("progress saved")
	return c.JSON(http.StatusOK, map[string]string{"name": name})
}

type restoreRequest struct {
	Name          string          `json:"name"`
	Snapshot      json.RawMessage `json:"snapshot"`
	AdoptInferred bool            `json:"adopt_inferred"`
}

// restoreSnapshotHandler restores either a snapshot this session saved, by
// name, or an uploaded snapshot document.
func (s *Server) restoreSnapshotHandler(c echo.Context) error {
	ws := sessionFrom(c)
	var req restoreRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}

	var snap wizard.Snapshot
	var err error
	switch {
	case len(req.Snapshot) > 0:
		snap, err = wizard.DecodeSnapshot(req.Snapshot)
		if err != nil {
			return errorJSON(c, http.StatusBadRequest, err.Error())
		}
	case req.Name != "":
		snap, err = s.snapshots.Load(c.Request().Context(), ws.ID, req.Name)
		if err != nil {
			return actionError(c, err)
		}
	default:
		return errorJSON(c, http.StatusBadRequest, "Either name or snapshot is required")
	}

	result := ws.Restore(snap, req.AdoptInferred)
	if result.Adopted {
		s.hub.Rerender(ws.ID)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"restore": result,
		"wizard":  newWizardView(ws),
	})
}

/* ====================================================================
                   		Re-render socket
==================================================================== */

func (s *Server) websocketHandler(c echo.Context) error {
	id, err := utility.GetSessionIDFromContext(c)
	if err != nil {
		return errorJSON(c, http.StatusUnauthorized, err.Error())
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already replied to the client.
		utility.LoggerFromContext(c).Error().Err(err).Msg("websocket upgrade failed")
		return nil
	}
	s.hub.Register(id, conn)
	defer func() {
		s.hub.Unregister(id, conn)
		_ = conn.Close()
	}()

	// The browser never sends anything meaningful; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}
