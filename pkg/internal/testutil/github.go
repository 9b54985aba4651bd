// Package testutil provides a programmable fake GitHub client for scan and
// resolution tests.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/jdonszelmann/review-queue/pkg/github"
	"github.com/jdonszelmann/review-queue/pkg/model"
)

// IssueKey addresses one issue listing in the fake.
type IssueKey struct {
	Repo   model.Repo
	Filter github.IssueFilter
}

// PrKey addresses one PR detail in the fake.
type PrKey struct {
	Repo   model.Repo
	Number int
}

// FakeGitHub is a programmable in-memory GitHub client. Configure the maps,
// then hand it to a scanner; unconfigured detail lookups fail with a
// descriptive error, so tests notice unexpected calls.
type FakeGitHub struct {
	User    model.User
	UserErr error

	Issues   map[IssueKey][]model.Issue
	IssueErr map[IssueKey]error

	Subscribed    map[model.Repo][]model.Issue
	SubscribedErr error

	Details   map[PrKey]model.PullDetail
	DetailErr map[PrKey]error

	mu          sync.Mutex
	detailCalls int
}

func (f *FakeGitHub) CurrentUser(_ context.Context) (model.User, error) {
	if f.UserErr != nil {
		return model.User{}, f.UserErr
	}
	return f.User, nil
}

func (f *FakeGitHub) ListOpenIssues(_ context.Context, repo model.Repo, filter github.IssueFilter) ([]model.Issue, error) {
	key := IssueKey{Repo: repo, Filter: filter}
	if err := f.IssueErr[key]; err != nil {
		return nil, err
	}
	return f.Issues[key], nil
}

func (f *FakeGitHub) SubscribedIssues(_ context.Context) (map[model.Repo][]model.Issue, error) {
	if f.SubscribedErr != nil {
		return nil, f.SubscribedErr
	}
	return f.Subscribed, nil
}

func (f *FakeGitHub) PullDetail(_ context.Context, repo model.Repo, number int) (model.PullDetail, error) {
	f.mu.Lock()
	f.detailCalls++
	f.mu.Unlock()

	key := PrKey{Repo: repo, Number: number}
	if err := f.DetailErr[key]; err != nil {
		return model.PullDetail{}, err
	}
	detail, ok := f.Details[key]
	if !ok {
		return model.PullDetail{}, fmt.Errorf("no detail configured for %s#%d", repo, number)
	}
	return detail, nil
}

// DetailCalls reports how many PullDetail calls the fake has served.
func (f *FakeGitHub) DetailCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detailCalls
}
