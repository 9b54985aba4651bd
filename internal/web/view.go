package web

import (
	"time"

	"github.com/jdonszelmann/review-queue/internal/ledger"
	"github.com/jdonszelmann/review-queue/pkg/cache"
	"github.com/jdonszelmann/review-queue/pkg/model"
)

// The JSON view of the triage dashboard. These types flatten the resolved
// model for clients; only fields relevant to a PR's state are emitted.

type queueResponse struct {
	Username     string       `json:"username"`
	Impersonated bool         `json:"impersonated,omitempty"`
	FetchedAt    time.Time    `json:"fetched_at"`
	Backend      backendJSON  `json:"backend"`
	Buckets      []bucketJSON `json:"buckets"`
}

type backendJSON struct {
	State       string     `json:"state"`
	LastRefresh *time.Time `json:"last_refresh,omitempty"`
}

type bucketJSON struct {
	Category string      `json:"category"`
	Title    string      `json:"title"`
	Prs      []prJSON    `json:"prs,omitempty"`
	Groups   []groupJSON `json:"groups,omitempty"`
}

type groupJSON struct {
	RollupNumber int      `json:"rollup_number,omitempty"`
	RollupLink   string   `json:"rollup_link,omitempty"`
	Prs          []prJSON `json:"prs"`
}

type prJSON struct {
	Repo      string     `json:"repo"`
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Link      string     `json:"link"`
	Author    string     `json:"author"`
	CreatedAt time.Time  `json:"created_at"`
	Status    statusJSON `json:"status"`
	CI        string     `json:"ci"`
	New       bool       `json:"new,omitempty"`
}

type statusJSON struct {
	Kind            string     `json:"kind"`
	OtherReviewers  []string   `json:"other_reviewers,omitempty"`
	WaitReason      string     `json:"wait_reason,omitempty"`
	FcpEndsOn       *time.Time `json:"fcp_ends_on,omitempty"`
	FcpMissing      bool       `json:"fcp_missing,omitempty"`
	CraterState     string     `json:"crater_state,omitempty"`
	CraterNumBefore int        `json:"crater_num_before,omitempty"`
	Queue           *queueJSON `json:"queue,omitempty"`
}

type queueJSON struct {
	Kind          string   `json:"kind"`
	Position      int      `json:"position,omitempty"`
	NthRollup     int      `json:"nth_rollup,omitempty"`
	RollupNumber  int      `json:"rollup_number,omitempty"`
	RollupSize    int      `json:"rollup_size,omitempty"`
	RollupLink    string   `json:"rollup_link,omitempty"`
	RollupSetting string   `json:"rollup_setting,omitempty"`
	Approvers     []string `json:"approvers,omitempty"`
}

func buildQueueResponse(username string, impersonated bool, res scanResult, fetchedAt time.Time, status cache.BackendStatus) queueResponse {
	resp := queueResponse{
		Username:     username,
		Impersonated: impersonated,
		FetchedAt:    fetchedAt,
		Backend:      backendJSON{State: string(status.State)},
	}
	if !status.LastRefresh.IsZero() {
		t := status.LastRefresh
		resp.Backend.LastRefresh = &t
	}

	for _, bucket := range model.Buckets(res.Prs) {
		bj := bucketJSON{Category: string(bucket.Category), Title: bucket.Title}
		for _, pr := range bucket.Prs {
			bj.Prs = append(bj.Prs, buildPr(pr, res.FirstSeen))
		}
		for _, group := range bucket.Groups {
			gj := groupJSON{RollupNumber: group.RollupNumber, RollupLink: group.RollupLink}
			for _, pr := range group.Prs {
				gj.Prs = append(gj.Prs, buildPr(pr, res.FirstSeen))
			}
			bj.Groups = append(bj.Groups, gj)
		}
		if bj.Prs == nil && bj.Groups == nil {
			continue
		}
		resp.Buckets = append(resp.Buckets, bj)
	}
	return resp
}

func buildPr(pr model.Pr, firstSeen map[ledger.Key]bool) prJSON {
	return prJSON{
		Repo:      pr.Repo.String(),
		Number:    pr.Number,
		Title:     pr.Title,
		Link:      pr.Link,
		Author:    pr.Author.Login,
		CreatedAt: pr.CreatedAt,
		Status:    buildStatus(pr.Status),
		CI:        string(pr.CI),
		New:       firstSeen[ledger.Key{Repo: pr.Repo, Number: pr.Number}],
	}
}

func buildStatus(status model.PrStatus) statusJSON {
	res := statusJSON{Kind: string(status.Kind)}

	for _, u := range status.OtherReviewers {
		res.OtherReviewers = append(res.OtherReviewers, u.Login)
	}

	if w := status.Wait; w != nil {
		res.WaitReason = string(w.Kind)
		switch w.Kind {
		case model.WaitFcp:
			if w.Fcp != nil {
				ends := w.Fcp.EndsOn()
				res.FcpEndsOn = &ends
			}
			res.FcpMissing = w.FcpMissing
		case model.WaitCrater:
			res.CraterState = string(w.Crater.State)
			res.CraterNumBefore = w.Crater.NumBefore
		}
	}

	if q := status.Queued; q != nil {
		qj := &queueJSON{
			Kind:          string(q.Queue.Kind),
			Position:      q.Queue.Position,
			NthRollup:     q.Queue.NthRollup,
			RollupNumber:  q.Queue.RollupNumber,
			RollupSize:    q.Queue.RollupSize,
			RollupLink:    q.Queue.RollupLink,
			RollupSetting: string(q.RollupSetting),
		}
		for _, u := range q.Approvers {
			qj.Approvers = append(qj.Approvers, u.Login)
		}
		res.Queue = qj
	}
	return res
}
