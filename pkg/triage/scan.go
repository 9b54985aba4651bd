package triage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/jdonszelmann/review-queue/pkg/feeds"
	"github.com/jdonszelmann/review-queue/pkg/github"
	"github.com/jdonszelmann/review-queue/pkg/model"
)

// DefaultConcurrency bounds the number of PR detail fetches in flight at
// once during a scan.
const DefaultConcurrency = 100

// GitHub is the slice of the GitHub client a scan needs. Satisfied by
// *github.Client; tests substitute fakes.
type GitHub interface {
	feeds.BodyFetcher
	ListOpenIssues(ctx context.Context, repo model.Repo, filter github.IssueFilter) ([]model.Issue, error)
	SubscribedIssues(ctx context.Context) (map[model.Repo][]model.Issue, error)
}

// Scanner runs full scans: enumerate every PR relevant to a user across the
// configured repositories, fetch per-PR detail, and classify each one
// against the current feed snapshots.
type Scanner struct {
	Sources *Sources
	Repos   []model.RepoInfo
	Labels  Labels

	// Concurrency caps simultaneous detail fetches; zero means
	// DefaultConcurrency.
	Concurrency int64
}

// discovery is one PR found during enumeration. Subscribed marks PRs known
// only through the subscription feed; a PR also found directly (assigned or
// authored) is never marked subscribed.
type discovery struct {
	issue      model.Issue
	repo       model.Repo
	subscribed bool
}

type discoveryKey struct {
	repo   model.Repo
	number int
}

// ErrScanFailed means no enumeration request succeeded, so the scan could
// not see any of the user's PRs. Usually a bad token or no connectivity.
var ErrScanFailed = errors.New("all enumeration requests failed")

// ScanAll runs a complete scan and collects the results. The result order is
// arbitrary; callers sort. It fails only when every enumeration request
// failed, which means the token or connectivity is broken; any partial
// enumeration success produces a (possibly partial) result set.
//
// ownQueue distinguishes a user viewing their own dashboard from viewing
// someone else's: subscriptions are private, so they are only enumerated and
// shown on the user's own queue.
func (s *Scanner) ScanAll(ctx context.Context, gh GitHub, viewer string, ownQueue bool) ([]model.Pr, error) {
	s.Sources.SetBodyFetcher(gh)

	found, ok := s.enumerate(ctx, gh, viewer, ownQueue)
	if !ok {
		return nil, ErrScanFailed
	}

	out := make(chan model.Pr)
	go func() {
		defer close(out)
		s.process(ctx, gh, viewer, found, out)
	}()

	prs := make([]model.Pr, 0, len(found))
	for pr := range out {
		prs = append(prs, pr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return prs, nil
}

// enumerate runs the per-repo assigned and created listings, plus the global
// subscription listing on the user's own queue, and deduplicates the
// results. Reports !ok when every listing failed outright.
func (s *Scanner) enumerate(ctx context.Context, gh GitHub, viewer string, ownQueue bool) ([]discovery, bool) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		found    = make(map[discoveryKey]discovery)
		failures int
		requests int
	)

	record := func(repo model.Repo, issues []model.Issue, subscribed bool) {
		mu.Lock()
		defer mu.Unlock()
		for _, issue := range issues {
			key := discoveryKey{repo: repo, number: issue.Number}
			if prev, ok := found[key]; ok && (!prev.subscribed || subscribed) {
				// Direct discovery wins over subscription.
				continue
			}
			found[key] = discovery{issue: issue, repo: repo, subscribed: subscribed}
		}
	}
	fail := func(err error, what string) {
		if errors.Is(err, github.ErrEmptyEnumeration) {
			// The listing kept coming back empty. Treat it as an empty
			// result rather than a failure; logged so a persistently
			// flaky endpoint is visible.
			slog.Warn("Enumeration abandoned after empty pages", "listing", what, "error", err)
			return
		}
		slog.Error("Enumeration failed", "listing", what, "error", err)
		mu.Lock()
		failures++
		mu.Unlock()
	}

	for _, info := range s.Repos {
		filters := []github.IssueFilter{
			{Assignee: viewer},
			{Creator: viewer},
		}
		for _, filter := range filters {
			requests++
			wg.Add(1)
			go func(repo model.Repo, filter github.IssueFilter) {
				defer wg.Done()
				issues, err := gh.ListOpenIssues(ctx, repo, filter)
				if err != nil {
					fail(err, fmt.Sprintf("%s %s", repo, filter))
					return
				}
				record(repo, issues, false)
			}(info.Repo, filter)
		}
	}

	if ownQueue {
		requests++
		wg.Add(1)
		go func() {
			defer wg.Done()
			byRepo, err := gh.SubscribedIssues(ctx)
			if err != nil {
				fail(err, "subscribed")
				return
			}
			for repo, issues := range byRepo {
				if _, configured := s.queueURL(repo); !configured {
					continue
				}
				record(repo, issues, true)
			}
		}()
	}

	wg.Wait()

	if failures == requests && requests > 0 {
		slog.Error("Every enumeration request failed, aborting scan", "requests", requests)
		return nil, false
	}

	res := make([]discovery, 0, len(found))
	for _, d := range found {
		res = append(res, d)
	}
	return res, true
}

// queueURL reports whether repo is configured, and its bors queue URL.
func (s *Scanner) queueURL(repo model.Repo) (string, bool) {
	for _, info := range s.Repos {
		if info.Repo == repo {
			return info.BorsQueueURL, true
		}
	}
	return "", false
}

// process fetches detail for every discovered pull request and resolves it.
// Plain issues are dropped here; a single failing PR degrades that PR only.
func (s *Scanner) process(ctx context.Context, gh GitHub, viewer string, found []discovery, out chan<- model.Pr) {
	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	sem := semaphore.NewWeighted(concurrency)

	var wg sync.WaitGroup
	for _, d := range found {
		if !d.issue.IsPullRequest {
			continue
		}
		wg.Add(1)
		go func(d discovery) {
			defer wg.Done()
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)
			out <- s.resolveOne(ctx, gh, viewer, d)
		}(d)
	}
	wg.Wait()
}

func (s *Scanner) resolveOne(ctx context.Context, gh GitHub, viewer string, d discovery) model.Pr {
	in := Input{
		Repo:       d.repo,
		Issue:      d.issue,
		Viewer:     viewer,
		Subscribed: d.subscribed,
		Labels:     s.Labels,
		Crater:     s.Sources.Crater(ctx),
		Fcp:        s.Sources.Fcp(ctx),
	}
	if url, _ := s.queueURL(d.repo); url != "" {
		in.Bors = s.Sources.Bors(ctx, d.repo)
		in.Rollups = s.Sources.Rollups(ctx, d.repo)
	}

	detailFailed := false
	if !d.subscribed {
		// Subscribed PRs never surface CI or draft state, so the extra
		// request per PR is skipped for them.
		detail, err := gh.PullDetail(ctx, d.repo, d.issue.Number)
		if err != nil {
			slog.Warn("Failed to fetch PR detail, resolving without it", "repo", d.repo, "pr", d.issue.Number, "error", err)
			detailFailed = true
		} else {
			in.Pull = detail
		}
	}

	pr := Resolve(&in)
	if detailFailed {
		pr.CI = model.CiUnknown
	}
	return pr
}
