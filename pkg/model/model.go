// Package model contains the data types shared across the review-queue system:
// repository identifiers, issue/PR snapshots, the auxiliary feed snapshots, and
// the fully resolved Pr value the correlation engine produces.
package model

import "time"

// Repo identifies a repository by owner and name. It is a comparable value
// type and is used as a cache key; anything else about a repository (such as
// its bors queue URL) lives in RepoInfo.
type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// RepoInfo is a configured repository. An empty BorsQueueURL disables
// merge-queue correlation for that repository.
type RepoInfo struct {
	Repo         Repo
	BorsQueueURL string
}

// User is a GitHub identity. Compared by ID where identity matters.
type User struct {
	Login      string
	ID         int64
	AvatarURL  string
	ProfileURL string
}

// MergeState mirrors GitHub's mergeable_state field.
type MergeState string

// Known mergeable_state values.
const (
	MergeStateClean    MergeState = "clean"
	MergeStateBehind   MergeState = "behind"
	MergeStateDirty    MergeState = "dirty"
	MergeStateBlocked  MergeState = "blocked"
	MergeStateDraft    MergeState = "draft"
	MergeStateUnknown  MergeState = "unknown"
	MergeStateUnstable MergeState = "unstable"
	MergeStateHasHooks MergeState = "has_hooks"
)

// Issue is a snapshot of a GitHub issue as returned by the issue listing
// endpoints. Pull requests also appear as issues; IsPullRequest distinguishes
// them.
type Issue struct {
	Number        int
	Title         string
	Body          string
	HTMLURL       string
	CreatedAt     time.Time
	User          User
	Assignees     []User
	Labels        []string
	IsPullRequest bool
}

// HasLabel reports whether the issue carries the given label.
func (i *Issue) HasLabel(name string) bool {
	for _, l := range i.Labels {
		if l == name {
			return true
		}
	}
	return false
}

// HasAssignee reports whether the given login is among the issue's assignees.
func (i *Issue) HasAssignee(login string) bool {
	for _, a := range i.Assignees {
		if a.Login == login {
			return true
		}
	}
	return false
}

// PullDetail is the PR-only detail fetched per issue: draft flag and
// GitHub's mergeability signal. Mergeable is a tri-state: GitHub reports
// null while it is still computing mergeability, represented here as nil.
type PullDetail struct {
	Number     int
	Title      string
	Body       string
	Draft      bool
	Mergeable  *bool
	MergeState MergeState
}

// Pr is the fully resolved output of the correlation engine.
type Pr struct {
	Repo        Repo
	Number      int
	Title       string
	Description string
	Link        string
	Author      User
	Reviewers   []User
	CreatedAt   time.Time
	Status      PrStatus
	CI          CiStatus
}
