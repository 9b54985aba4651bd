package triage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jdonszelmann/review-queue/pkg/cache"
	"github.com/jdonszelmann/review-queue/pkg/feeds"
	"github.com/jdonszelmann/review-queue/pkg/model"
)

// Default refresh periods per source. The merge queue and FCP feed move
// fast; crater experiments take hours, so its queue barely changes.
const (
	DefaultBorsPeriod   = 30 * time.Second
	DefaultRollupPeriod = 60 * time.Second
	DefaultCraterPeriod = 10 * time.Minute
	DefaultRfcbotPeriod = 30 * time.Second
)

// SourcePeriods configures how often each auxiliary source may be refetched.
// Zero fields fall back to the defaults.
type SourcePeriods struct {
	Bors    time.Duration
	Rollups time.Duration
	Crater  time.Duration
	Rfcbot  time.Duration
}

func (p SourcePeriods) withDefaults() SourcePeriods {
	if p.Bors == 0 {
		p.Bors = DefaultBorsPeriod
	}
	if p.Rollups == 0 {
		p.Rollups = DefaultRollupPeriod
	}
	if p.Crater == 0 {
		p.Crater = DefaultCraterPeriod
	}
	if p.Rfcbot == 0 {
		p.Rfcbot = DefaultRfcbotPeriod
	}
	return p
}

// Sources bundles the cached auxiliary feeds. All snapshots a single scan
// sees for one repository come from the same cache entries, so every PR in
// that scan is classified against the same view of the world.
type Sources struct {
	bors    *cache.Cache[model.Repo, model.BorsQueue]
	rollups *cache.Cache[model.Repo, model.RollupQueue]
	crater  *cache.Single[model.CraterSnapshot]
	fcp     *cache.Single[model.FcpSnapshot]

	queueURLs map[model.Repo]string

	// The rollup producer reads PR descriptions through the GitHub API, so
	// it needs an authenticated client. There is no client until someone
	// logs in; SetBodyFetcher installs the most recent one.
	mu      sync.Mutex
	fetcher feeds.BodyFetcher
}

// NewSources wires the feed clients into caches for the configured
// repositories. Repositories without a bors queue URL get permanently empty
// merge-queue and rollup snapshots.
func NewSources(bors *feeds.BorsClient, crater *feeds.CraterClient, rfcbot *feeds.RfcbotClient, repos []model.RepoInfo, periods SourcePeriods) *Sources {
	periods = periods.withDefaults()

	s := &Sources{queueURLs: make(map[model.Repo]string, len(repos))}
	for _, r := range repos {
		s.queueURLs[r.Repo] = r.BorsQueueURL
	}

	s.bors = cache.New("bors", periods.Bors, func(ctx context.Context, repo model.Repo) (model.BorsQueue, error) {
		url := s.queueURLs[repo]
		if url == "" {
			return model.BorsQueue{}, nil
		}
		return bors.FetchQueue(ctx, url)
	})

	s.rollups = cache.New("rollups", periods.Rollups, func(ctx context.Context, repo model.Repo) (model.RollupQueue, error) {
		queue := s.bors.Get(ctx, repo)
		if len(queue.Items) == 0 {
			return model.RollupQueue{}, nil
		}
		fetcher := s.bodyFetcher()
		if fetcher == nil {
			slog.Warn("No GitHub client available for rollup bodies, serving empty rollup queue", "repo", repo)
			return model.RollupQueue{}, nil
		}
		return feeds.FindRollups(ctx, fetcher, repo, queue)
	})

	s.crater = cache.NewSingle("crater", periods.Crater, crater.FetchQueue)
	s.fcp = cache.NewSingle("rfcbot", periods.Rfcbot, rfcbot.FetchAll)

	return s
}

// SetBodyFetcher installs the GitHub client used to read rollup PR
// descriptions. Called whenever a scan starts with a fresh client.
func (s *Sources) SetBodyFetcher(f feeds.BodyFetcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetcher = f
}

func (s *Sources) bodyFetcher() feeds.BodyFetcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetcher
}

// Bors returns the current merge-queue snapshot for repo. Never fails; a
// broken or unconfigured queue reads as empty.
func (s *Sources) Bors(ctx context.Context, repo model.Repo) model.BorsQueue {
	return s.bors.Get(ctx, repo)
}

// Rollups returns the current rollup snapshot for repo.
func (s *Sources) Rollups(ctx context.Context, repo model.Repo) model.RollupQueue {
	return s.rollups.Get(ctx, repo)
}

// Crater returns the current crater queue snapshot.
func (s *Sources) Crater(ctx context.Context) model.CraterSnapshot {
	return s.crater.Get(ctx)
}

// Fcp returns the current rfcbot snapshot.
func (s *Sources) Fcp(ctx context.Context) model.FcpSnapshot {
	return s.fcp.Get(ctx)
}
