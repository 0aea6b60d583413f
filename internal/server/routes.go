package server

import (
	"net/http"

	"github.com/Jakeminator123/kurs/internal/utility"
	"github.com/Jakeminator123/kurs/internal/wizard"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const sessionKey = "wizard_session"

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.IPExtractor = s.clientIP
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Without configured origins no cross-origin browser call is allowed.
	if len(s.cfg.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     s.cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     []string{"Accept", "Content-Type", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	e.Use(LoggerMiddleware)

	e.GET("/health", s.healthHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	// The socket holds its connection open, so it must not hold the session lock.
	e.GET("/ws", s.websocketHandler, s.SessionMiddleware)

	api := e.Group("/api", s.SessionMiddleware, lockSession)

	// Wizard navigation
	api.GET("/wizard", s.getWizardHandler)
	api.POST("/wizard/continue", s.continueHandler)
	api.POST("/wizard/reset", s.resetHandler)
	api.PUT("/wizard/answers", s.answersHandler)

	// Diet page
	api.POST("/diet/vision-image", s.visionImageHandler)

	// Longevity page
	api.POST("/longevity/analysis", s.quadrantAnalysisHandler)
	api.GET("/longevity/chart", s.chartHandler)
	api.POST("/longevity/motto", s.mottoHandler)
	api.POST("/longevity/factors", s.factorsHandler)

	// Plan page
	api.POST("/plan/course-plan", s.coursePlanHandler)
	api.POST("/plan/question", s.questionHandler)
	api.POST("/plan/report", s.reportHandler)
	api.GET("/plan/report", s.downloadReportHandler)
	api.POST("/plan/report/email", s.emailReportHandler)

	// Progress snapshots
	api.POST("/snapshot", s.saveSnapshotHandler)
	api.POST("/snapshot/restore", s.restoreSnapshotHandler)

	return e
}

func LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Response().Header().Set("X-Request-ID", requestID)

		logger := log.With().Str("request_id", requestID).Logger()
		setLogger(c, logger)

		return next(c)
	}
}

// setLogger exposes logger to handlers through the echo context and to the
// libraries through the request context.
func setLogger(c echo.Context, logger zerolog.Logger) {
	c.Set("logger", &logger)
	c.SetRequest(c.Request().WithContext(logger.WithContext(c.Request().Context())))
}

// SessionMiddleware resolves the caller's wizard session from the signed
// cookie, starting a new one when the cookie is missing or the session was evicted.
func (s *Server) SessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		// A cookie that fails to decode yields a fresh session value.
		cookie, _ := s.cookies.Get(c.Request(), cookieName)
		id, _ := cookie.Values["id"].(string)

		ws, created := s.sessions.Resolve(id)
		if created {
			cookie.Values["id"] = ws.ID
			if err := cookie.Save(c.Request(), c.Response()); err != nil {
				utility.LoggerFromContext(c).Error().Err(err).Msg("failed to save session cookie")
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to start session"})
			}
		}

		c.Set("session_id", ws.ID)
		c.Set(sessionKey, ws)
		setLogger(c, utility.LoggerFromContext(c).With().Str("session_id", ws.ID).Logger())

		return next(c)
	}
}

// lockSession serialises requests belonging to one session.
func lockSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ws := sessionFrom(c)
		ws.Lock()
		defer ws.Unlock()
		return next(c)
	}
}

func sessionFrom(c echo.Context) *wizard.Session {
	ws, _ := c.Get(sessionKey).(*wizard.Session)
	return ws
}
