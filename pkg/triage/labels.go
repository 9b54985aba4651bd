// Package triage turns raw issue listings and auxiliary feed snapshots into
// fully resolved PRs: it correlates each pull request with the merge queue,
// rollup membership, crater queue, and FCP feed, and classifies it into a
// triage status. The classification itself is pure; the scanner around it
// does the fetching.
package triage

// Labels names the workflow labels the resolver keys on. The defaults match
// the rust-lang tracking labels, but every name is configurable since other
// projects spell them differently.
type Labels struct {
	WaitingOnReview    string
	WaitingOnAuthor    string
	WaitingOnBors      string
	WaitingOnCrater    string
	FinalCommentPeriod string
	WaitingOnConcerns  string
	Blocked            string
}

// DefaultLabels returns the rust-lang label names.
func DefaultLabels() Labels {
	return Labels{
		WaitingOnReview:    "S-waiting-on-review",
		WaitingOnAuthor:    "S-waiting-on-author",
		WaitingOnBors:      "S-waiting-on-bors",
		WaitingOnCrater:    "S-waiting-on-crater",
		FinalCommentPeriod: "S-final-comment-period",
		WaitingOnConcerns:  "S-waiting-on-concerns",
		Blocked:            "S-blocked",
	}
}
