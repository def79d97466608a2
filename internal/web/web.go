package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/robfig/cron/v3"

	"calsplit/internal/config"
	"calsplit/internal/ics"
	appLog "calsplit/internal/log"
	"calsplit/internal/model"
	"calsplit/internal/split"
)

// Server publishes one subscribable calendar per class of a source
// calendar:
//
//	GET /health
//	GET /api/classes
//	GET /calendars/{class}.ics
//
// The source is re-read by Refresh (on a cron schedule in StartServer, or
// lazily on the first request).
type Server struct {
	cfg    *config.Config
	src    string
	loader *ics.Loader
	mux    *http.ServeMux
	now    func() time.Time

	// refreshMu serializes Refresh so concurrent triggers do not fetch the
	// source twice.
	refreshMu sync.Mutex

	snapMu sync.RWMutex
	snap   *snapshot
}

// snapshot is one complete split of the source.
type snapshot struct {
	calendars map[string]string
	classes   []classDTO
	updatedAt time.Time
}

// classDTO is the JSON view of a class for /api/classes.
type classDTO struct {
	Class       string     `json:"class"`
	URL         string     `json:"url"`
	Components  int        `json:"components"`
	Events      int        `json:"events"`
	Occurrences int        `json:"occurrences"`
	First       *time.Time `json:"first,omitempty"`
	Last        *time.Time `json:"last,omitempty"`
	Truncated   bool       `json:"truncated,omitempty"`
}

// classesResponse is the JSON response shape for /api/classes.
type classesResponse struct {
	Source    string     `json:"source"`
	UpdatedAt time.Time  `json:"updated_at"`
	Classes   []classDTO `json:"classes"`
}

// NewServer constructs a new Server for src.
func NewServer(cfg *config.Config, src string, loader *ics.Loader) *Server {
	if loader == nil {
		loader = ics.NewLoader(ics.NewFetcher(time.Duration(cfg.FetchTimeoutSeconds) * time.Second))
	}
	s := &Server{
		cfg:    cfg,
		src:    src,
		loader: loader,
		mux:    http.NewServeMux(),
		now:    time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="calsplit", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves src on cfg.Listen until ctx is canceled. The source is
// split once up front and then again on every cfg.RefreshCron tick; a
// failed refresh keeps serving the previous snapshot.
func StartServer(ctx context.Context, cfg *config.Config, src string) error {
	s := NewServer(cfg, src, nil)

	if err := s.Refresh(ctx); err != nil {
		return err
	}

	sched := cron.New()
	if _, err := sched.AddFunc(cfg.RefreshCron, func() {
		if err := s.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh failed; keeping previous snapshot", err)
		}
	}); err != nil {
		return fmt.Errorf("web: invalid refresh schedule %q: %w", cfg.RefreshCron, err)
	}
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen, "refresh", cfg.RefreshCron)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

// Refresh re-reads the source and atomically replaces the served snapshot.
func (s *Server) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	return s.refreshLocked(ctx)
}

// refreshLocked does the work of Refresh; refreshMu must be held.
func (s *Server) refreshLocked(ctx context.Context) error {
	cal, err := s.loader.Load(ctx, s.src)
	if err != nil {
		return err
	}

	classes := split.Build(cal, s.cfg.HeaderOptions())

	groups, err := classes.Groups()
	if err != nil {
		return err
	}

	now := s.now()
	expandCfg := ics.ExpandConfig{
		DisplayLocation:        now.Location(),
		RangeEnd:               now.AddDate(0, 0, s.cfg.HorizonDays),
		MaxOccurrencesPerEvent: s.cfg.MaxOccurrencesPerEvent,
	}
	summaries := make(map[string]model.ClassSummary, len(groups))
	for _, g := range groups {
		sum, err := ics.SummarizeClass(g.Class, g.Components, expandCfg)
		if err != nil {
			return err
		}
		summaries[g.Class] = sum
	}

	snap := &snapshot{
		calendars: make(map[string]string, len(groups)),
		updatedAt: now,
	}
	err = classes.Finalize(func(code string, c *ical.Calendar) error {
		snap.calendars[code] = c.Serialize()
		snap.classes = append(snap.classes, toClassDTO(summaries[code]))
		return nil
	})
	if err != nil {
		return err
	}

	s.snapMu.Lock()
	s.snap = snap
	s.snapMu.Unlock()

	appLog.Info("calendar refreshed", "classes", len(snap.calendars), "components", len(cal.Components))
	return nil
}

func toClassDTO(sum model.ClassSummary) classDTO {
	dto := classDTO{
		Class:       sum.Class,
		URL:         "/calendars/" + url.PathEscape(sum.Class) + ".ics",
		Components:  sum.Components,
		Events:      sum.Events,
		Occurrences: sum.Occurrences,
		Truncated:   sum.Truncated,
	}
	if !sum.First.IsZero() {
		first, last := sum.First, sum.Last
		dto.First, dto.Last = &first, &last
	}
	return dto
}

// current returns the latest snapshot, loading one on first use. Concurrent
// first requests share a single load.
func (s *Server) current(ctx context.Context) (*snapshot, error) {
	if snap := s.loaded(); snap != nil {
		return snap, nil
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	if snap := s.loaded(); snap != nil {
		return snap, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return nil, err
	}
	return s.loaded(), nil
}

func (s *Server) loaded() *snapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/classes", s.handleClasses)
	s.mux.HandleFunc("GET /calendars/{file}", s.handleCalendar)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleClasses(w http.ResponseWriter, r *http.Request) {
	snap, err := s.current(r.Context())
	if err != nil {
		appLog.Error("api classes: refresh failed", err)
		writeError(w, http.StatusBadGateway, "failed to load source calendar")
		return
	}

	classes := snap.classes
	if classes == nil {
		classes = []classDTO{}
	}
	writeJSON(w, http.StatusOK, classesResponse{
		Source:    displaySource(s.src),
		UpdatedAt: snap.updatedAt,
		Classes:   classes,
	})
}

// handleCalendar serves /calendars/{class}.ics. The ".ics" suffix is
// optional.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSuffix(r.PathValue("file"), ".ics")

	snap, err := s.current(r.Context())
	if err != nil {
		appLog.Error("calendar request: refresh failed", err, "class", code)
		writeError(w, http.StatusBadGateway, "failed to load source calendar")
		return
	}

	body, ok := snap.calendars[code]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown class")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Last-Modified", snap.updatedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// displaySource hides feed tokens in remote sources.
func displaySource(src string) string {
	if !ics.IsRemote(src) {
		return src
	}
	u, err := url.Parse(src)
	if err != nil {
		return "(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
