// Package config loads and validates the server configuration from flags
// and environment variables. Flags win over the environment; the
// environment wins over defaults.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jdonszelmann/review-queue/pkg/model"
	"github.com/jdonszelmann/review-queue/pkg/triage"
)

// Config is the full server configuration.
type Config struct {
	// Listen is the address the HTTP server binds to.
	Listen string `validate:"required"`

	// SessionSecret signs session cookies. Must be long enough to make
	// brute-forcing the HMAC pointless.
	SessionSecret string `validate:"required,min=32"`

	// DatabaseURL enables the seen-PR ledger when set.
	DatabaseURL string `validate:"omitempty,url"`

	// CraterURL and RfcbotURL override the public feed endpoints, mainly
	// for testing against fixtures.
	CraterURL string `validate:"omitempty,url"`
	RfcbotURL string `validate:"omitempty,url"`

	// Repos are the repositories to scan. At least one is required; a repo
	// without a bors queue URL skips merge-queue correlation.
	Repos []model.RepoInfo `validate:"min=1"`

	Labels  triage.Labels
	Periods triage.SourcePeriods

	// Concurrency caps simultaneous PR detail fetches per scan.
	Concurrency int64 `validate:"gte=1,lte=1000"`
}

// Load parses args (without the program name) and the environment into a
// validated Config.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("review-queue", flag.ContinueOnError)

	var (
		listen      = fs.String("listen", envOr("LISTEN", ":8080"), "address to listen on")
		repos       = fs.String("repos", os.Getenv("REPOS"), "comma-separated repos to scan: owner/name[=bors-queue-url]")
		secret      = fs.String("session-secret", os.Getenv("SESSION_SECRET"), "secret used to sign session cookies")
		databaseURL = fs.String("database-url", os.Getenv("DATABASE_URL"), "Postgres URL for the seen-PR ledger (optional)")
		craterURL   = fs.String("crater-url", os.Getenv("CRATER_URL"), "crater dashboard URL override")
		rfcbotURL   = fs.String("rfcbot-url", os.Getenv("RFCBOT_URL"), "rfcbot feed URL override")
		concurrency = fs.Int64("concurrency", 100, "max simultaneous PR detail fetches per scan")

		borsPeriod   = fs.Duration("bors-period", 30*time.Second, "bors queue refresh period")
		rollupPeriod = fs.Duration("rollup-period", 60*time.Second, "rollup snapshot refresh period")
		craterPeriod = fs.Duration("crater-period", 10*time.Minute, "crater queue refresh period")
		rfcbotPeriod = fs.Duration("rfcbot-period", 30*time.Second, "rfcbot feed refresh period")
	)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	repoList, err := ParseRepos(*repos)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Listen:        *listen,
		SessionSecret: *secret,
		DatabaseURL:   *databaseURL,
		CraterURL:     *craterURL,
		RfcbotURL:     *rfcbotURL,
		Repos:         repoList,
		Labels:        labelsFromEnv(),
		Concurrency:   *concurrency,
		Periods: triage.SourcePeriods{
			Bors:    *borsPeriod,
			Rollups: *rollupPeriod,
			Crater:  *craterPeriod,
			Rfcbot:  *rfcbotPeriod,
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ParseRepos parses the comma-separated repo list. Each entry is
// "owner/name" or "owner/name=https://bors.example.com/queue/name".
func ParseRepos(raw string) ([]model.RepoInfo, error) {
	var res []model.RepoInfo
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		name, queueURL, _ := strings.Cut(entry, "=")
		owner, repo, ok := strings.Cut(name, "/")
		if !ok || owner == "" || repo == "" {
			return nil, fmt.Errorf("invalid repo %q: want owner/name[=bors-queue-url]", entry)
		}
		res = append(res, model.RepoInfo{
			Repo:         model.Repo{Owner: owner, Name: repo},
			BorsQueueURL: queueURL,
		})
	}
	return res, nil
}

// labelsFromEnv starts from the default label names and lets each be
// overridden individually.
func labelsFromEnv() triage.Labels {
	l := triage.DefaultLabels()
	l.WaitingOnReview = envOr("LABEL_WAITING_ON_REVIEW", l.WaitingOnReview)
	l.WaitingOnAuthor = envOr("LABEL_WAITING_ON_AUTHOR", l.WaitingOnAuthor)
	l.WaitingOnBors = envOr("LABEL_WAITING_ON_BORS", l.WaitingOnBors)
	l.WaitingOnCrater = envOr("LABEL_WAITING_ON_CRATER", l.WaitingOnCrater)
	l.FinalCommentPeriod = envOr("LABEL_FINAL_COMMENT_PERIOD", l.FinalCommentPeriod)
	l.WaitingOnConcerns = envOr("LABEL_WAITING_ON_CONCERNS", l.WaitingOnConcerns)
	l.Blocked = envOr("LABEL_BLOCKED", l.Blocked)
	return l
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
