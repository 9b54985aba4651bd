package model

import "time"

// BorsStatus is the status column of a bors queue row. Values other than the
// named constants are kept verbatim so unexpected queue states are visible in
// logs rather than erased.
type BorsStatus string

// Known bors row statuses.
const (
	BorsNone     BorsStatus = ""
	BorsApproved BorsStatus = "approved"
	BorsPending  BorsStatus = "pending"
	BorsFailure  BorsStatus = "failure"
	BorsError    BorsStatus = "error"
	BorsSuccess  BorsStatus = "success"
)

// RollupSetting is the rollup policy recorded on a bors queue row.
type RollupSetting string

// Rollup policies.
const (
	RollupUnset  RollupSetting = ""
	RollupNever  RollupSetting = "never"
	RollupAlways RollupSetting = "always"
	RollupIffy   RollupSetting = "iffy"
)

// BorsPR is one row of the bors queue page. Position is 1-based enumeration
// order of the page at fetch time; it is only meaningful relative to other
// rows from the same fetch. Running means position 1.
type BorsPR struct {
	Number        int
	Approver      string
	Status        BorsStatus
	Mergeable     bool
	RollupSetting RollupSetting
	Priority      int
	Title         string
	Position      int
	Running       bool
}

// BorsQueue is a snapshot of the bors queue for one repository.
type BorsQueue struct {
	Items []BorsPR
}

// ForPR returns the queue row for the given PR number, if any.
func (q *BorsQueue) ForPR(number int) *BorsPR {
	for i := range q.Items {
		if q.Items[i].Number == number {
			return &q.Items[i]
		}
	}
	return nil
}

// Rollup is a batch PR in the bors queue together with the member PR numbers
// extracted from its description.
type Rollup struct {
	Number   int
	Link     string
	Status   BorsStatus
	Running  bool
	Position int
	Members  []int
}

// Contains reports whether the given PR number is a member of this rollup.
func (r *Rollup) Contains(number int) bool {
	for _, n := range r.Members {
		if n == number {
			return true
		}
	}
	return false
}

// RollupQueue holds the rollups of one bors queue snapshot, ordered by their
// position in the queue. Index 0 is the next rollup to run.
type RollupQueue struct {
	Rollups []Rollup
}

// CraterState discriminates CraterStatus.
type CraterState string

// States a PR can be in on the crater queue.
const (
	CraterQueued           CraterState = "queued"
	CraterRunning          CraterState = "running"
	CraterGeneratingReport CraterState = "generating_report"
	CraterUnknown          CraterState = "unknown"
)

// CraterStatus is a PR's position on the crater queue. NumBefore is set for
// CraterQueued, ExpectedEnd for CraterRunning.
type CraterStatus struct {
	State       CraterState
	NumBefore   int
	ExpectedEnd time.Time
}

// CraterSnapshot maps PR number to crater status. Absence of a number means
// the source does not currently track that PR.
type CraterSnapshot map[int]CraterStatus

// FcpConcern is a registered objection blocking an FCP.
type FcpConcern struct {
	Name string
	By   User
}

// FcpInfo is the rfcbot state for one tracked issue.
type FcpInfo struct {
	Disposition string
	Start       *time.Time
	Closed      bool
	Concerns    []FcpConcern
}

// FcpSnapshot maps issue number to FCP info.
type FcpSnapshot map[int]FcpInfo
