/*
Package server implements the application's network transport layer.
It initializes the HTTP server, configures timeouts, and wires the wizard
pages to the echo router.
*/
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Jakeminator123/kurs/internal/config"
	"github.com/Jakeminator123/kurs/internal/database"
	"github.com/Jakeminator123/kurs/internal/mailer"
	"github.com/Jakeminator123/kurs/internal/metrics"
	"github.com/Jakeminator123/kurs/internal/openaiservice"
	"github.com/Jakeminator123/kurs/internal/pages"
	"github.com/Jakeminator123/kurs/internal/report"
	"github.com/Jakeminator123/kurs/internal/utility"
	"github.com/Jakeminator123/kurs/internal/wizard"
	"github.com/gorilla/sessions"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	cookieName = "kurs_session"

	emailWindow   = time.Hour
	emailsPerHour = 5
)

// Deps are the collaborators the server is built from. DB, Mailer and
// Snapshots are optional.
type Deps struct {
	Config    *config.Config
	DB        database.Service
	Gateway   openaiservice.Gateway
	Mailer    *mailer.Mailer
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Snapshots wizard.SnapshotStore
	Now       func() time.Time
}

// Server defines the configuration and dependencies for the HTTP service.
type Server struct {
	// port specifies the TCP port the server will listen on.
	port int

	// db is nil when no DATABASE_URL is configured.
	db database.Service

	cfg       *config.Config
	gateway   openaiservice.Gateway
	sessions  *wizard.Store
	cookies   *sessions.CookieStore
	snapshots wizard.SnapshotStore
	actions   *pages.Actions
	hub       *utility.Hub
	upgrader  *websocket.Upgrader
	limiter   *utility.RateLimiter
	clientIP  echo.IPExtractor
	gatherer  prometheus.Gatherer
	now       func() time.Time
	started   time.Time
}

func buildServer(d Deps) (*Server, error) {
	cfg := d.Config

	snapshots := d.Snapshots
	if snapshots == nil && d.DB != nil {
		snapshots = d.DB.Snapshots()
	}
	if snapshots == nil {
		fs, err := wizard.NewFileStore(cfg.SnapshotDir)
		if err != nil {
			return nil, err
		}
		snapshots = fs
	}

	now := d.Now
	if now == nil {
		now = time.Now
	}
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	actions := &pages.Actions{
		Gateway: d.Gateway,
		Prompts: openaiservice.NewBuilder(cfg.CoachName),
		Assembler: &report.Assembler{
			OutputDir:    cfg.OutputDir,
			Coach:        cfg.CoachName,
			ContactURL:   cfg.ContactURL,
			ContactPhone: cfg.ContactPhone,
			CourseStart:  cfg.CourseStart,
			Fetcher:      d.Gateway,
			Metrics:      d.Metrics,
		},
		Mailer:       d.Mailer,
		Metrics:      d.Metrics,
		HistoryTurns: pages.DefaultHistoryTurns,
		Now:          now,
	}
	store, err := wizard.NewStore(cfg.SessionCacheSize, func(sess *wizard.Session) {
		actions.Discard(context.Background(), sess)
	})
	if err != nil {
		return nil, err
	}

	clientIP, err := utility.IPExtractor(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	cookies := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	cookies.MaxAge(86400 * 7)
	cookies.Options.Path = "/"
	cookies.Options.HttpOnly = true
	cookies.Options.Secure = cfg.IsProduction()
	cookies.Options.SameSite = http.SameSiteLaxMode

	return &Server{
		port:      cfg.Port,
		db:        d.DB,
		cfg:       cfg,
		gateway:   d.Gateway,
		sessions:  store,
		cookies:   cookies,
		snapshots: snapshots,
		actions:   actions,
		hub:       utility.NewHub(),
		upgrader:  utility.NewUpgrader(cfg.AllowedOrigins),
		limiter:   utility.NewRateLimiter(emailWindow, emailsPerHour),
		clientIP:  clientIP,
		gatherer:  gatherer,
		now:       now,
		started:   now(),
	}, nil
}

// NewServer initializes a new Server instance and returns a configured *http.Server.
func NewServer(d Deps) (*http.Server, error) {
	newApp, err := buildServer(d)
	if err != nil {
		return nil, err
	}

	// Configure the standard library http.Server with the application's router and timeouts.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", newApp.port),
		Handler:      newApp.RegisterRoutes(), // Injected from routes.go
		IdleTimeout:  time.Minute,             // Time to wait for the next request on keep-alive connections.
		ReadTimeout:  10 * time.Second,        // Maximum duration for reading the entire request.
		WriteTimeout: 90 * time.Second,        // Generation calls can take up to the model timeout.
	}

	return server, nil
}
