package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jdonszelmann/review-queue/pkg/feeds"
	"github.com/jdonszelmann/review-queue/pkg/github"
	"github.com/jdonszelmann/review-queue/pkg/model"
	"github.com/jdonszelmann/review-queue/pkg/triage"
)

var testRepo = model.Repo{Owner: "rust-lang", Name: "rust"}

// fakeGitHub serves one assigned PR per user and accepts any token except
// "bad".
type fakeGitHub struct {
	token string
}

func (f *fakeGitHub) CurrentUser(_ context.Context) (model.User, error) {
	if f.token == "bad" {
		return model.User{}, errors.New("401 bad credentials")
	}
	return model.User{Login: "alice", ID: 1}, nil
}

func (f *fakeGitHub) ListOpenIssues(_ context.Context, _ model.Repo, filter github.IssueFilter) ([]model.Issue, error) {
	if filter.Assignee == "" {
		return nil, nil
	}
	return []model.Issue{{
		Number:        5,
		Title:         "Fix a thing",
		CreatedAt:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		User:          model.User{Login: "someone"},
		Assignees:     []model.User{{Login: filter.Assignee}},
		Labels:        []string{"S-waiting-on-review"},
		IsPullRequest: true,
	}}, nil
}

func (f *fakeGitHub) SubscribedIssues(_ context.Context) (map[model.Repo][]model.Issue, error) {
	return nil, nil
}

func (f *fakeGitHub) PullDetail(_ context.Context, _ model.Repo, number int) (model.PullDetail, error) {
	mergeable := true
	return model.PullDetail{Number: number, Mergeable: &mergeable, MergeState: model.MergeStateClean}, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	// Feed endpoints that always come back empty.
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "rfcbot") {
			fmt.Fprint(w, `[]`)
			return
		}
		fmt.Fprint(w, `<html><body></body></html>`)
	})
	feedSrv := httptest.NewServer(mux)
	t.Cleanup(feedSrv.Close)

	repos := []model.RepoInfo{{Repo: testRepo}}
	scanner := &triage.Scanner{
		Sources: triage.NewSources(
			feeds.NewBorsClient(feedSrv.Client()),
			feeds.NewCraterClient(feedSrv.Client(), feedSrv.URL+"/crater"),
			feeds.NewRfcbotClient(feedSrv.Client(), feedSrv.URL+"/rfcbot"),
			repos,
			triage.SourcePeriods{},
		),
		Repos:  repos,
		Labels: triage.DefaultLabels(),
	}

	s := New(scanner, nil, "0123456789abcdef0123456789abcdef")
	s.newClient = func(token string) gitHub { return &fakeGitHub{token: token} }
	return s
}

func TestLoginSetsSessionAndRedirects(t *testing.T) {
	s := newTestServer(t)

	form := url.Values{"token": {"ghp_good"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			session = c
		}
	}
	if session == nil {
		t.Fatal("no session cookie set")
	}

	claims, err := s.codec.verify(session.Value)
	if err != nil {
		t.Fatalf("verify issued cookie: %v", err)
	}
	if claims.Username != "alice" || claims.Token != "ghp_good" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestLoginRejectsBadToken(t *testing.T) {
	s := newTestServer(t)

	form := url.Values{"token": {"bad"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestQueueRequiresSession(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/queue", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func queueRequest(t *testing.T, s *Server, path string) queueResponse {
	t.Helper()

	session, err := s.codec.issue("alice", "ghp_good")
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: session})
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp queueResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestQueueReturnsBuckets(t *testing.T) {
	s := newTestServer(t)
	resp := queueRequest(t, s, "/queue")

	if resp.Username != "alice" || resp.Impersonated {
		t.Errorf("response = %+v", resp)
	}
	if resp.Backend.State != "idle" {
		t.Errorf("backend = %+v, want idle after a completed scan", resp.Backend)
	}

	var review *bucketJSON
	for i := range resp.Buckets {
		if resp.Buckets[i].Category == "review" {
			review = &resp.Buckets[i]
		}
	}
	if review == nil {
		t.Fatalf("no review bucket in %+v", resp.Buckets)
	}
	if len(review.Prs) != 1 || review.Prs[0].Number != 5 || review.Prs[0].CI != "good" {
		t.Errorf("review bucket = %+v", review.Prs)
	}
}

func TestQueueImpersonation(t *testing.T) {
	s := newTestServer(t)
	resp := queueRequest(t, s, "/queue?user=bob")

	if resp.Username != "bob" || !resp.Impersonated {
		t.Errorf("response = %+v, want impersonated bob", resp)
	}
	for _, b := range resp.Buckets {
		if b.Category == "subscribed" {
			t.Error("impersonated queue contains a subscribed bucket")
		}
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/logout", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie && c.MaxAge >= 0 {
			t.Errorf("session cookie not cleared: %+v", c)
		}
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
