package triage

import (
	"log/slog"

	"github.com/jdonszelmann/review-queue/pkg/model"
)

// Input is everything the resolver needs to classify one pull request. It is
// plain data: the issue and PR snapshots from GitHub plus the feed snapshots
// current at scan time. Resolution is deterministic in this value.
type Input struct {
	Repo       model.Repo
	Issue      model.Issue
	Pull       model.PullDetail
	Bors       model.BorsQueue
	Rollups    model.RollupQueue
	Crater     model.CraterSnapshot
	Fcp        model.FcpSnapshot
	Viewer     string
	Subscribed bool
	Labels     Labels
}

// Resolve classifies one pull request into a triage status and an
// independent CI signal, and assembles the dashboard Pr value. It never
// fails: inconsistent inputs resolve to explicit unknown variants and are
// logged.
func Resolve(in *Input) model.Pr {
	row := in.Bors.ForPR(in.Issue.Number)

	// Subscribed PRs carry no PullDetail (the scan never fetches one), so
	// there is no CI signal to derive.
	ci := model.CiUnknown
	if !in.Subscribed {
		ci = resolveCI(&in.Pull, row)
	}

	pr := model.Pr{
		Repo:        in.Repo,
		Number:      in.Issue.Number,
		Title:       in.Issue.Title,
		Description: in.Issue.Body,
		Link:        in.Issue.HTMLURL,
		Author:      in.Issue.User,
		Reviewers:   in.Issue.Assignees,
		CreatedAt:   in.Issue.CreatedAt,
		Status:      resolveStatus(in, row),
		CI:          ci,
	}
	return pr
}

// resolveStatus applies the classification rules in precedence order. The
// first matching rule wins.
func resolveStatus(in *Input, row *model.BorsPR) model.PrStatus {
	if in.Subscribed {
		return model.PrStatus{Kind: model.StatusSubscribed}
	}
	if in.Pull.Draft {
		return model.PrStatus{Kind: model.StatusDraft}
	}
	if in.Issue.HasAssignee(in.Viewer) && in.Issue.HasLabel(in.Labels.WaitingOnReview) {
		var others []model.User
		for _, a := range in.Issue.Assignees {
			if a.Login != in.Viewer {
				others = append(others, a)
			}
		}
		return model.PrStatus{Kind: model.StatusReview, OtherReviewers: others}
	}
	if in.Issue.User.Login == in.Viewer && in.Issue.HasLabel(in.Labels.WaitingOnAuthor) {
		return model.PrStatus{Kind: model.StatusReady}
	}
	queuedByRow := row != nil && (row.Status == model.BorsApproved || row.Status == model.BorsPending)
	if in.Issue.HasLabel(in.Labels.WaitingOnBors) || queuedByRow {
		return model.PrStatus{Kind: model.StatusQueued, Queued: resolveQueued(in, row)}
	}
	return model.PrStatus{Kind: model.StatusWaiting, Wait: resolveWaiting(in)}
}

// resolveQueued locates a queued PR within the merge queue: running, inside
// a rollup (running, next, or nth), or plainly in line.
func resolveQueued(in *Input, row *model.BorsPR) *model.QueuedInfo {
	info := &model.QueuedInfo{
		Approvers:     in.Issue.Assignees,
		RollupSetting: model.RollupUnset,
	}

	if row == nil {
		// Labeled as queued but bors does not know about it. That happens
		// briefly after approval or when the queue page is stale.
		slog.Warn("PR labeled as queued but absent from bors queue", "repo", in.Repo, "pr", in.Issue.Number)
		info.Queue = model.QueueStatus{Kind: model.QueueUnknown}
		return info
	}
	info.RollupSetting = row.RollupSetting

	if row.Running {
		info.Queue = model.QueueStatus{Kind: model.QueueRunning}
		return info
	}

	// Scan rollups in queue order. The index counts every rollup, including
	// skipped ones, so "2nd rollup" means second on the queue page.
	for idx := range in.Rollups.Rollups {
		rollup := &in.Rollups.Rollups[idx]
		switch rollup.Status {
		case model.BorsPending, model.BorsSuccess, model.BorsApproved:
		default:
			continue
		}
		if !rollup.Contains(in.Issue.Number) {
			continue
		}

		info.Queue = model.QueueStatus{
			RollupNumber: rollup.Number,
			RollupSize:   len(rollup.Members),
			RollupLink:   rollup.Link,
		}
		switch {
		case rollup.Running:
			info.Queue.Kind = model.QueueInRunningRollup
		case idx == 0:
			info.Queue.Kind = model.QueueInNextRollup
			info.Queue.Position = rollup.Position
		default:
			info.Queue.Kind = model.QueueInRollup
			info.Queue.NthRollup = idx
		}
		return info
	}

	info.Queue = model.QueueStatus{Kind: model.QueueInQueue, Position: row.Position}
	return info
}

// resolveWaiting explains why a PR that matched no earlier rule is waiting.
// Labels are checked in a fixed order; a PR carrying several state labels
// reports the first.
func resolveWaiting(in *Input) *model.WaitReason {
	issue := &in.Issue
	switch {
	case issue.HasLabel(in.Labels.WaitingOnAuthor):
		return &model.WaitReason{Kind: model.WaitAuthor}
	case issue.HasLabel(in.Labels.Blocked):
		return &model.WaitReason{Kind: model.WaitBlocked}
	case issue.HasLabel(in.Labels.WaitingOnReview):
		return &model.WaitReason{Kind: model.WaitReview}
	case issue.HasLabel(in.Labels.FinalCommentPeriod) || issue.HasLabel(in.Labels.WaitingOnConcerns):
		reason := &model.WaitReason{Kind: model.WaitFcp}
		info, ok := in.Fcp[issue.Number]
		if !ok || info.Start == nil {
			// The label promises an FCP but the feed has no started period.
			// Surface the inconsistency instead of inventing a start date.
			slog.Error("PR labeled as in FCP but rfcbot has no started period", "repo", in.Repo, "pr", issue.Number)
			reason.FcpMissing = true
			return reason
		}
		reason.Fcp = &model.FcpStatus{Start: *info.Start}
		return reason
	case issue.HasLabel(in.Labels.WaitingOnCrater):
		status, ok := in.Crater[issue.Number]
		if !ok {
			status = model.CraterStatus{State: model.CraterUnknown}
		}
		return &model.WaitReason{Kind: model.WaitCrater, Crater: status}
	default:
		slog.Error("No rule explains why this PR is waiting", "repo", in.Repo, "pr", issue.Number, "labels", issue.Labels)
		return &model.WaitReason{Kind: model.WaitUnknown}
	}
}

// resolveCI derives the CI/merge-health signal. The bors row, when present
// and in a recognized state, overrides GitHub's own mergeability signal.
func resolveCI(pull *model.PullDetail, row *model.BorsPR) model.CiStatus {
	if pull.Draft {
		return model.CiDraft
	}
	if pull.Mergeable != nil && (pull.MergeState == model.MergeStateBehind || pull.MergeState == model.MergeStateDirty) {
		return model.CiConflicted
	}

	if row != nil {
		switch row.Status {
		case model.BorsApproved, model.BorsSuccess:
			return model.CiGood
		case model.BorsError, model.BorsFailure:
			return model.CiBad
		case model.BorsPending:
			return model.CiRunning
		case model.BorsNone:
			return model.CiUnknown
		default:
			// Unrecognized bors state: fall through to GitHub's signal.
		}
	}

	if pull.Mergeable == nil {
		// GitHub is still computing mergeability.
		return model.CiRunning
	}
	if pull.MergeState == "" {
		// GitHub reported mergeability but no merge state. Only a positive
		// answer means anything here.
		if *pull.Mergeable {
			return model.CiGood
		}
		return model.CiUnknown
	}
	switch pull.MergeState {
	case model.MergeStateClean, model.MergeStateHasHooks, model.MergeStateUnstable:
		return model.CiGood
	case model.MergeStateBehind, model.MergeStateDirty:
		return model.CiConflicted
	case model.MergeStateDraft:
		return model.CiDraft
	case model.MergeStateBlocked, model.MergeStateUnknown:
		return model.CiUnknown
	default:
		return model.CiUnknown
	}
}
