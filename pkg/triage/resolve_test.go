package triage

import (
	"reflect"
	"testing"
	"time"

	"github.com/jdonszelmann/review-queue/pkg/model"
)

var (
	alice = model.User{Login: "alice", ID: 1}
	bob   = model.User{Login: "bob", ID: 2}
)

// baseInput returns a PR authored by bob, assigned to nobody, with no
// labels, viewed by alice.
func baseInput() Input {
	return Input{
		Repo: model.Repo{Owner: "rust-lang", Name: "rust"},
		Issue: model.Issue{
			Number:        10,
			Title:         "Fix a thing",
			HTMLURL:       "https://github.com/rust-lang/rust/pull/10",
			CreatedAt:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			User:          bob,
			IsPullRequest: true,
		},
		Pull:   model.PullDetail{Number: 10, Mergeable: boolPtr(true), MergeState: model.MergeStateClean},
		Viewer: "alice",
		Labels: DefaultLabels(),
	}
}

func boolPtr(b bool) *bool { return &b }

func TestResolveDeterminism(t *testing.T) {
	in := baseInput()
	in.Issue.Labels = []string{"S-waiting-on-review"}
	in.Issue.Assignees = []model.User{alice, bob}

	a := Resolve(&in)
	b := Resolve(&in)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Resolve not deterministic:\n%+v\n%+v", a, b)
	}
}

func TestResolveSubscribedOverridesEverything(t *testing.T) {
	in := baseInput()
	in.Subscribed = true
	in.Pull.Draft = true
	in.Issue.Labels = []string{"S-waiting-on-review"}
	in.Issue.Assignees = []model.User{alice}

	if got := Resolve(&in); got.Status.Kind != model.StatusSubscribed {
		t.Errorf("status = %v, want subscribed", got.Status.Kind)
	}
}

func TestResolveSubscribedCIUnknown(t *testing.T) {
	// Subscribed PRs skip the detail fetch, so the zero PullDetail must not
	// be read as mergeability still computing.
	in := baseInput()
	in.Subscribed = true
	in.Pull = model.PullDetail{}

	if got := Resolve(&in); got.CI != model.CiUnknown {
		t.Errorf("subscribed PR CI = %v, want unknown", got.CI)
	}
}

func TestResolveDraftBeatsReview(t *testing.T) {
	in := baseInput()
	in.Pull.Draft = true
	in.Issue.Labels = []string{"S-waiting-on-review"}
	in.Issue.Assignees = []model.User{alice}

	if got := Resolve(&in); got.Status.Kind != model.StatusDraft {
		t.Errorf("status = %v, want draft", got.Status.Kind)
	}
}

func TestResolveReview(t *testing.T) {
	in := baseInput()
	in.Issue.Labels = []string{"S-waiting-on-review"}
	in.Issue.Assignees = []model.User{alice, bob}

	got := Resolve(&in)
	if got.Status.Kind != model.StatusReview {
		t.Fatalf("status = %v, want review", got.Status.Kind)
	}
	if len(got.Status.OtherReviewers) != 1 || got.Status.OtherReviewers[0].Login != "bob" {
		t.Errorf("other reviewers = %+v, want [bob]", got.Status.OtherReviewers)
	}
}

func TestResolveReviewSoleAssignee(t *testing.T) {
	in := baseInput()
	in.Issue.Labels = []string{"S-waiting-on-review"}
	in.Issue.Assignees = []model.User{alice}

	got := Resolve(&in)
	if got.Status.Kind != model.StatusReview {
		t.Fatalf("status = %v, want review", got.Status.Kind)
	}
	if len(got.Status.OtherReviewers) != 0 {
		t.Errorf("other reviewers = %+v, want none", got.Status.OtherReviewers)
	}
}

func TestResolveReviewBeatsQueued(t *testing.T) {
	in := baseInput()
	in.Issue.Labels = []string{"S-waiting-on-review"}
	in.Issue.Assignees = []model.User{alice}
	in.Bors = model.BorsQueue{Items: []model.BorsPR{{Number: 10, Status: model.BorsApproved, Position: 2}}}

	if got := Resolve(&in); got.Status.Kind != model.StatusReview {
		t.Errorf("status = %v, want review; assigned review outranks the queue", got.Status.Kind)
	}
}

func TestResolveReady(t *testing.T) {
	in := baseInput()
	in.Viewer = "bob" // bob is the author
	in.Issue.Labels = []string{"S-waiting-on-author"}

	if got := Resolve(&in); got.Status.Kind != model.StatusReady {
		t.Errorf("status = %v, want ready", got.Status.Kind)
	}
}

func TestResolveReadyRequiresAuthorship(t *testing.T) {
	// alice views bob's PR that waits on its author: that is Waiting for
	// alice, not Ready.
	in := baseInput()
	in.Issue.Labels = []string{"S-waiting-on-author"}

	got := Resolve(&in)
	if got.Status.Kind != model.StatusWaiting || got.Status.Wait.Kind != model.WaitAuthor {
		t.Errorf("status = %+v, want waiting on author", got.Status)
	}
}

func TestResolveQueuedByLabelWithoutRow(t *testing.T) {
	in := baseInput()
	in.Issue.Labels = []string{"S-waiting-on-bors"}
	in.Issue.Assignees = []model.User{bob}

	got := Resolve(&in)
	if got.Status.Kind != model.StatusQueued {
		t.Fatalf("status = %v, want queued", got.Status.Kind)
	}
	q := got.Status.Queued
	if q.Queue.Kind != model.QueueUnknown {
		t.Errorf("queue = %+v, want unknown position", q.Queue)
	}
	if len(q.Approvers) != 1 || q.Approvers[0].Login != "bob" {
		t.Errorf("approvers = %+v, want [bob]", q.Approvers)
	}
}

func TestResolveQueuedByRowWithoutLabel(t *testing.T) {
	in := baseInput()
	in.Bors = model.BorsQueue{Items: []model.BorsPR{
		{Number: 10, Status: model.BorsPending, Position: 4, RollupSetting: model.RollupIffy},
	}}

	got := Resolve(&in)
	if got.Status.Kind != model.StatusQueued {
		t.Fatalf("status = %v, want queued", got.Status.Kind)
	}
	q := got.Status.Queued
	if q.Queue.Kind != model.QueueInQueue || q.Queue.Position != 4 {
		t.Errorf("queue = %+v, want in queue at 4", q.Queue)
	}
	if q.RollupSetting != model.RollupIffy {
		t.Errorf("rollup setting = %v, want iffy", q.RollupSetting)
	}
}

func TestResolveQueuedRunning(t *testing.T) {
	in := baseInput()
	in.Bors = model.BorsQueue{Items: []model.BorsPR{
		{Number: 10, Status: model.BorsPending, Position: 1, Running: true},
	}}

	got := Resolve(&in)
	if got.Status.Queued.Queue.Kind != model.QueueRunning {
		t.Errorf("queue = %+v, want running", got.Status.Queued.Queue)
	}
}

func TestResolveQueuedRollupMembership(t *testing.T) {
	rollups := model.RollupQueue{Rollups: []model.Rollup{
		// Index 0 failed: ineligible, but still counts for indexing.
		{Number: 900, Status: model.BorsFailure, Position: 2, Members: []int{10}},
		{Number: 901, Status: model.BorsPending, Position: 3, Members: []int{11, 12}},
		{Number: 902, Status: model.BorsApproved, Position: 5, Members: []int{10, 13}},
	}}

	tests := []struct {
		name    string
		number  int
		rollups model.RollupQueue
		want    model.QueueStatus
	}{
		{
			name:    "member of a later rollup counts all rollups",
			number:  10,
			rollups: rollups,
			want:    model.QueueStatus{Kind: model.QueueInRollup, NthRollup: 2, RollupNumber: 902, RollupSize: 2, RollupLink: ""},
		},
		{
			name:   "member of the next rollup",
			number: 11,
			rollups: model.RollupQueue{Rollups: []model.Rollup{
				{Number: 901, Status: model.BorsPending, Position: 3, Members: []int{11, 12}},
			}},
			want: model.QueueStatus{Kind: model.QueueInNextRollup, Position: 3, RollupNumber: 901, RollupSize: 2},
		},
		{
			name:   "member of the running rollup",
			number: 11,
			rollups: model.RollupQueue{Rollups: []model.Rollup{
				{Number: 901, Status: model.BorsPending, Position: 1, Running: true, Members: []int{11}},
			}},
			want: model.QueueStatus{Kind: model.QueueInRunningRollup, RollupNumber: 901, RollupSize: 1},
		},
		{
			name:    "not a member of any rollup",
			number:  14,
			rollups: rollups,
			want:    model.QueueStatus{Kind: model.QueueInQueue, Position: 9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInput()
			in.Issue.Number = tt.number
			in.Pull.Number = tt.number
			in.Bors = model.BorsQueue{Items: []model.BorsPR{
				{Number: tt.number, Status: model.BorsApproved, Position: 9},
			}}
			in.Rollups = tt.rollups

			got := Resolve(&in)
			if got.Status.Kind != model.StatusQueued {
				t.Fatalf("status = %v, want queued", got.Status.Kind)
			}
			if !reflect.DeepEqual(got.Status.Queued.Queue, tt.want) {
				t.Errorf("queue = %+v, want %+v", got.Status.Queued.Queue, tt.want)
			}
		})
	}
}

func TestResolveWaiting(t *testing.T) {
	fcpStart := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		labels []string
		fcp    model.FcpSnapshot
		crater model.CraterSnapshot
		want   model.WaitReason
	}{
		{
			name:   "author",
			labels: []string{"S-waiting-on-author"},
			want:   model.WaitReason{Kind: model.WaitAuthor},
		},
		{
			name:   "author label wins over blocked",
			labels: []string{"S-blocked", "S-waiting-on-author"},
			want:   model.WaitReason{Kind: model.WaitAuthor},
		},
		{
			name:   "blocked",
			labels: []string{"S-blocked"},
			want:   model.WaitReason{Kind: model.WaitBlocked},
		},
		{
			name:   "review by someone else",
			labels: []string{"S-waiting-on-review"},
			want:   model.WaitReason{Kind: model.WaitReview},
		},
		{
			name:   "fcp with feed entry",
			labels: []string{"S-final-comment-period"},
			fcp:    model.FcpSnapshot{10: {Start: &fcpStart}},
			want:   model.WaitReason{Kind: model.WaitFcp, Fcp: &model.FcpStatus{Start: fcpStart}},
		},
		{
			name:   "concerns label also resolves through the feed",
			labels: []string{"S-waiting-on-concerns"},
			fcp:    model.FcpSnapshot{10: {Start: &fcpStart}},
			want:   model.WaitReason{Kind: model.WaitFcp, Fcp: &model.FcpStatus{Start: fcpStart}},
		},
		{
			name:   "fcp entry missing from feed",
			labels: []string{"S-final-comment-period"},
			want:   model.WaitReason{Kind: model.WaitFcp, FcpMissing: true},
		},
		{
			name:   "fcp entry without start counts as missing",
			labels: []string{"S-final-comment-period"},
			fcp:    model.FcpSnapshot{10: {Disposition: "merge"}},
			want:   model.WaitReason{Kind: model.WaitFcp, FcpMissing: true},
		},
		{
			name:   "crater tracked",
			labels: []string{"S-waiting-on-crater"},
			crater: model.CraterSnapshot{10: {State: model.CraterQueued, NumBefore: 3}},
			want:   model.WaitReason{Kind: model.WaitCrater, Crater: model.CraterStatus{State: model.CraterQueued, NumBefore: 3}},
		},
		{
			name:   "crater untracked",
			labels: []string{"S-waiting-on-crater"},
			want:   model.WaitReason{Kind: model.WaitCrater, Crater: model.CraterStatus{State: model.CraterUnknown}},
		},
		{
			name: "no explaining label",
			want: model.WaitReason{Kind: model.WaitUnknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInput()
			in.Issue.Labels = tt.labels
			in.Fcp = tt.fcp
			in.Crater = tt.crater

			got := Resolve(&in)
			if got.Status.Kind != model.StatusWaiting {
				t.Fatalf("status = %v, want waiting", got.Status.Kind)
			}
			if !reflect.DeepEqual(*got.Status.Wait, tt.want) {
				t.Errorf("wait = %+v, want %+v", *got.Status.Wait, tt.want)
			}
		})
	}
}

func TestResolveCI(t *testing.T) {
	tests := []struct {
		name string
		pull model.PullDetail
		row  *model.BorsPR
		want model.CiStatus
	}{
		{"draft", model.PullDetail{Draft: true}, nil, model.CiDraft},
		{"behind", model.PullDetail{Mergeable: boolPtr(true), MergeState: model.MergeStateBehind}, nil, model.CiConflicted},
		{"dirty", model.PullDetail{Mergeable: boolPtr(false), MergeState: model.MergeStateDirty}, nil, model.CiConflicted},
		{
			"conflict outranks bors",
			model.PullDetail{Mergeable: boolPtr(false), MergeState: model.MergeStateDirty},
			&model.BorsPR{Status: model.BorsApproved}, model.CiConflicted,
		},
		{"bors approved", model.PullDetail{Mergeable: boolPtr(true), MergeState: model.MergeStateClean}, &model.BorsPR{Status: model.BorsApproved}, model.CiGood},
		{"bors success", model.PullDetail{}, &model.BorsPR{Status: model.BorsSuccess}, model.CiGood},
		{"bors error", model.PullDetail{Mergeable: boolPtr(true), MergeState: model.MergeStateClean}, &model.BorsPR{Status: model.BorsError}, model.CiBad},
		{"bors failure", model.PullDetail{}, &model.BorsPR{Status: model.BorsFailure}, model.CiBad},
		{"bors pending", model.PullDetail{Mergeable: boolPtr(true), MergeState: model.MergeStateClean}, &model.BorsPR{Status: model.BorsPending}, model.CiRunning},
		{"bors empty status", model.PullDetail{Mergeable: boolPtr(true), MergeState: model.MergeStateClean}, &model.BorsPR{Status: model.BorsNone}, model.CiUnknown},
		{
			"unrecognized bors status falls back to github",
			model.PullDetail{Mergeable: boolPtr(true), MergeState: model.MergeStateClean},
			&model.BorsPR{Status: model.BorsStatus("retrying")}, model.CiGood,
		},
		{"mergeability still computing", model.PullDetail{Mergeable: nil}, nil, model.CiRunning},
		{"mergeable without state", model.PullDetail{Mergeable: boolPtr(true), MergeState: ""}, nil, model.CiGood},
		{"not mergeable without state", model.PullDetail{Mergeable: boolPtr(false), MergeState: ""}, nil, model.CiUnknown},
		{"clean", model.PullDetail{Mergeable: boolPtr(true), MergeState: model.MergeStateClean}, nil, model.CiGood},
		{"unstable", model.PullDetail{Mergeable: boolPtr(true), MergeState: model.MergeStateUnstable}, nil, model.CiGood},
		{"has hooks", model.PullDetail{Mergeable: boolPtr(true), MergeState: model.MergeStateHasHooks}, nil, model.CiGood},
		{"blocked", model.PullDetail{Mergeable: boolPtr(true), MergeState: model.MergeStateBlocked}, nil, model.CiUnknown},
		{"explicit unknown state", model.PullDetail{Mergeable: boolPtr(true), MergeState: model.MergeStateUnknown}, nil, model.CiUnknown},
		{"draft state", model.PullDetail{Mergeable: boolPtr(true), MergeState: model.MergeStateDraft}, nil, model.CiDraft},
		{"unexpected state", model.PullDetail{Mergeable: boolPtr(true), MergeState: model.MergeState("weird")}, nil, model.CiUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveCI(&tt.pull, tt.row); got != tt.want {
				t.Errorf("resolveCI() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveCarriesIssueFields(t *testing.T) {
	in := baseInput()
	in.Issue.Labels = []string{"S-waiting-on-author"}

	got := Resolve(&in)
	if got.Repo != in.Repo || got.Number != 10 || got.Title != "Fix a thing" {
		t.Errorf("pr = %+v", got)
	}
	if got.Author.Login != "bob" || got.Link != in.Issue.HTMLURL {
		t.Errorf("pr = %+v", got)
	}
}
