package model

import "time"

// StatusKind discriminates the PrStatus union.
type StatusKind string

// The triage statuses, in resolution order.
const (
	StatusSubscribed StatusKind = "subscribed"
	StatusDraft      StatusKind = "draft"
	StatusReview     StatusKind = "review"
	StatusReady      StatusKind = "ready"
	StatusQueued     StatusKind = "queued"
	StatusWaiting    StatusKind = "waiting"
)

// PrStatus is the resolved triage status of a PR. Exactly one payload field
// is meaningful, selected by Kind: OtherReviewers for StatusReview, Queued
// for StatusQueued, Wait for StatusWaiting.
type PrStatus struct {
	Kind           StatusKind
	OtherReviewers []User
	Queued         *QueuedInfo
	Wait           *WaitReason
}

// WaitKind discriminates the WaitReason union.
type WaitKind string

// Reasons a PR can be waiting, in the order they are checked.
const (
	WaitAuthor  WaitKind = "author"
	WaitBlocked WaitKind = "blocked"
	WaitReview  WaitKind = "review"
	WaitFcp     WaitKind = "fcp"
	WaitCrater  WaitKind = "crater"
	WaitUnknown WaitKind = "unknown"
)

// WaitReason says why a PR in StatusWaiting is waiting. For WaitFcp, Fcp is
// nil and FcpMissing is true when the issue carries an FCP label but the
// rfcbot feed has no entry for it (a data inconsistency, never fabricated
// around). For WaitCrater, Crater holds the crater queue status.
type WaitReason struct {
	Kind       WaitKind
	Fcp        *FcpStatus
	FcpMissing bool
	Crater     CraterStatus
}

// QueuedInfo is the payload of StatusQueued.
type QueuedInfo struct {
	Approvers     []User
	RollupSetting RollupSetting
	Queue         QueueStatus
}

// QueueKind discriminates the QueueStatus union.
type QueueKind string

// Positions a queued PR can be in.
const (
	QueueUnknown         QueueKind = "unknown"
	QueueRunning         QueueKind = "running"
	QueueInQueue         QueueKind = "in_queue"
	QueueInRollup        QueueKind = "in_rollup"
	QueueInNextRollup    QueueKind = "in_next_rollup"
	QueueInRunningRollup QueueKind = "in_running_rollup"
)

// QueueStatus locates a queued PR within the bors queue. Position is the
// row's own queue position for QueueInQueue and the rollup's queue position
// for QueueInNextRollup. NthRollup counts rollups ahead of this PR's rollup
// for QueueInRollup. RollupNumber/RollupSize/RollupLink describe the batch
// the PR is a member of, where applicable.
type QueueStatus struct {
	Kind         QueueKind
	Position     int
	NthRollup    int
	RollupNumber int
	RollupSize   int
	RollupLink   string
}

// CiStatus is the resolved CI/merge-health signal, independent of PrStatus.
type CiStatus string

// CI states.
const (
	CiConflicted CiStatus = "conflicted"
	CiGood       CiStatus = "good"
	CiRunning    CiStatus = "running"
	CiBad        CiStatus = "bad"
	CiUnknown    CiStatus = "unknown"
	CiDraft      CiStatus = "draft"
)

// FcpStatus is a final comment period that has started.
type FcpStatus struct {
	Start time.Time
}

// FCP length: ten days, counted as 24-hour days.
const fcpDuration = 240 * time.Hour

// EndsOn returns the hard end of the comment period.
func (f FcpStatus) EndsOn() time.Time {
	return f.Start.Add(fcpDuration)
}
