// Package web is the HTTP surface of the dashboard: token login with signed
// session cookies, and the bucketed triage queue as JSON. The queue endpoint
// always serves the last completed scan instantly and refreshes in the
// background.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jdonszelmann/review-queue/internal/ledger"
	"github.com/jdonszelmann/review-queue/pkg/cache"
	"github.com/jdonszelmann/review-queue/pkg/github"
	"github.com/jdonszelmann/review-queue/pkg/model"
	"github.com/jdonszelmann/review-queue/pkg/triage"
)

// gitHub is what the server needs from a GitHub client: everything a scan
// needs, plus token verification at login.
type gitHub interface {
	triage.GitHub
	CurrentUser(ctx context.Context) (model.User, error)
}

// scanResult is one completed scan: the resolved PRs plus which of them the
// user had never seen before (empty without a ledger).
type scanResult struct {
	Prs       []model.Pr
	FirstSeen map[ledger.Key]bool
}

// Server handles the dashboard HTTP API.
type Server struct {
	scanner *triage.Scanner
	results *cache.Results[scanResult]
	ledger  *ledger.Store // nil when no database is configured
	codec   sessionCodec

	// newClient builds a GitHub client for a token; tests swap in fakes.
	newClient func(token string) gitHub
}

// New creates a Server. store may be nil to run without the seen-PR ledger.
func New(scanner *triage.Scanner, store *ledger.Store, sessionSecret string) *Server {
	return &Server{
		scanner:   scanner,
		results:   cache.NewResults[scanResult](),
		ledger:    store,
		codec:     sessionCodec{secret: []byte(sessionSecret)},
		newClient: func(token string) gitHub { return github.New(token) },
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Post("/login", s.handleLogin)
	r.Get("/logout", s.handleLogout)
	r.Get("/queue", s.handleQueue)
	r.Get("/healthz", s.handleHealthz)
	return r
}

// requestLogger logs one line per request in the structured style used
// everywhere else.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("Request handled",
			"component", "web",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"requestID", middleware.GetReqID(r.Context()))
	})
}

const loginPage = `<!doctype html>
<title>review queue</title>
<h1>review queue</h1>
<form method="post" action="/login">
  <label>GitHub token: <input type="password" name="token" autofocus></label>
  <button type="submit">Log in</button>
</form>
`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.session(r) != nil {
		http.Redirect(w, r, "/queue", http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, loginPage)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	token := r.PostFormValue("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing token")
		return
	}

	gh := s.newClient(token)
	user, err := gh.CurrentUser(r.Context())
	if err != nil {
		slog.Warn("Login token rejected", "component", "web", "error", err)
		writeError(w, http.StatusUnauthorized, "token rejected by GitHub")
		return
	}

	session, err := s.codec.issue(user.Login, token)
	if err != nil {
		slog.Error("Failed to issue session", "component", "web", "user", user.Login, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	setSessionCookie(w, session, sessionTTL)

	slog.Info("User logged in", "component", "web", "user", user.Login)
	http.Redirect(w, r, "/queue", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	claims := s.session(r)
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not logged in")
		return
	}

	// ?user= views someone else's queue with the viewer's own token. That
	// queue never includes subscriptions: they are the viewer's, not the
	// target's.
	target := claims.Username
	own := true
	if u := r.URL.Query().Get("user"); u != "" && u != claims.Username {
		target = u
		own = false
	}

	gh := s.newClient(claims.Token)
	compute := func(ctx context.Context) (scanResult, error) {
		prs, err := s.scanner.ScanAll(ctx, gh, target, own)
		if err != nil {
			return scanResult{}, err
		}
		res := scanResult{Prs: prs}
		if s.ledger != nil && own {
			firstSeen, err := s.ledger.RecordScan(ctx, target, prs)
			if err != nil {
				slog.Warn("Failed to record scan in ledger", "user", target, "error", err)
			} else {
				res.FirstSeen = firstSeen
			}
		}
		return res, nil
	}

	key := scanKey(claims.Username, target)
	res, err := s.results.Get(r.Context(), key, compute)
	if err != nil {
		slog.Error("Queue scan failed", "component", "web", "user", target, "error", err)
		writeError(w, http.StatusBadGateway, "scan failed")
		return
	}
	_, fetchedAt, _ := s.results.Latest(key)

	writeJSON(w, http.StatusOK, buildQueueResponse(target, !own, res, fetchedAt, s.results.Status(key)))
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// scanKey separates cached results per viewer and target, so an
// impersonated view never shadows the target's own (subscription-bearing)
// queue.
func scanKey(viewer, target string) string {
	if viewer == target {
		return target
	}
	return viewer + "->" + target
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
