package model

import "sort"

// SortCategory is the triage bucket a resolved PR is displayed in.
type SortCategory string

// The display buckets, in page order.
const (
	CategoryReady      SortCategory = "ready"
	CategoryReview     SortCategory = "review"
	CategoryWaiting    SortCategory = "waiting"
	CategoryQueued     SortCategory = "queued"
	CategoryDraft      SortCategory = "draft"
	CategorySubscribed SortCategory = "subscribed"
	CategoryOther      SortCategory = "other"
)

// Title returns the human heading for a bucket.
func (c SortCategory) Title() string {
	switch c {
	case CategoryReady:
		return "Ready to work on"
	case CategoryReview:
		return "Waiting for me to review"
	case CategoryWaiting:
		return "Waiting"
	case CategoryQueued:
		return "Queued"
	case CategoryDraft:
		return "Drafts"
	case CategorySubscribed:
		return "Subscribed"
	default:
		return "Other"
	}
}

// SortCategory returns the bucket this PR belongs to. It is a pure function
// of the resolved status.
func (p *Pr) SortCategory() SortCategory {
	switch p.Status.Kind {
	case StatusReady:
		return CategoryReady
	case StatusReview:
		return CategoryReview
	case StatusWaiting:
		return CategoryWaiting
	case StatusQueued:
		return CategoryQueued
	case StatusDraft:
		return CategoryDraft
	case StatusSubscribed:
		return CategorySubscribed
	default:
		return CategoryOther
	}
}

// QueueGroup is one display unit inside the queued bucket: either a single
// queue entry (RollupNumber 0, one PR) or a rollup with its member PRs.
type QueueGroup struct {
	RollupNumber int
	RollupLink   string
	Prs          []Pr
}

// Bucket is one rendered triage box. Prs is set for every category except
// CategoryQueued, which uses Groups so rollups stay together.
type Bucket struct {
	Category SortCategory
	Title    string
	Prs      []Pr
	Groups   []QueueGroup
}

// Buckets splits resolved PRs into the display buckets with deterministic
// ordering: creation time ascending (ties broken by repo and number) for
// most buckets; queue order for the queued bucket, where next-rollup groups
// come first, then later rollups, then plain queue entries by position, then
// entries whose queue position is unknown. Members within a rollup sort by
// creation time.
func Buckets(prs []Pr) []Bucket {
	order := []SortCategory{
		CategoryReady, CategoryReview, CategoryWaiting,
		CategoryQueued, CategoryDraft, CategorySubscribed, CategoryOther,
	}

	byCategory := make(map[SortCategory][]Pr)
	for _, pr := range prs {
		c := pr.SortCategory()
		byCategory[c] = append(byCategory[c], pr)
	}

	res := make([]Bucket, 0, len(order))
	for _, c := range order {
		b := Bucket{Category: c, Title: c.Title()}
		if c == CategoryQueued {
			b.Groups = queueGroups(byCategory[c])
		} else {
			b.Prs = sortByCreated(byCategory[c])
		}
		res = append(res, b)
	}
	return res
}

func sortByCreated(prs []Pr) []Pr {
	sort.Slice(prs, func(i, j int) bool {
		if !prs[i].CreatedAt.Equal(prs[j].CreatedAt) {
			return prs[i].CreatedAt.Before(prs[j].CreatedAt)
		}
		if prs[i].Repo != prs[j].Repo {
			return prs[i].Repo.String() < prs[j].Repo.String()
		}
		return prs[i].Number < prs[j].Number
	})
	return prs
}

// Sort ranks for queue entries. Rollups always sort ahead of plain entries,
// the next/running rollup ahead of later ones, and entries with no usable
// position go last.
const (
	rankNextRollup = iota
	rankNthRollup
	rankNormal
	rankUnknown
)

type queueKey struct {
	rank   int
	pos    int
	when   int64
	repo   string
	number int
}

func (k queueKey) less(o queueKey) bool {
	if k.rank != o.rank {
		return k.rank < o.rank
	}
	if k.pos != o.pos {
		return k.pos < o.pos
	}
	if k.when != o.when {
		return k.when < o.when
	}
	if k.repo != o.repo {
		return k.repo < o.repo
	}
	return k.number < o.number
}

func queueGroups(prs []Pr) []QueueGroup {
	type entry struct {
		key   queueKey
		group QueueGroup
	}

	var singles []entry
	rollups := make(map[int]*entry)

	for _, pr := range prs {
		tie := queueKey{when: pr.CreatedAt.UnixNano(), repo: pr.Repo.String(), number: pr.Number}
		q := QueueStatus{Kind: QueueUnknown}
		if pr.Status.Queued != nil {
			q = pr.Status.Queued.Queue
		}

		switch q.Kind {
		case QueueInNextRollup, QueueInRunningRollup, QueueInRollup:
			e, ok := rollups[q.RollupNumber]
			if !ok {
				key := tie
				switch q.Kind {
				case QueueInRunningRollup:
					key.rank, key.pos = rankNextRollup, 0
				case QueueInNextRollup:
					key.rank, key.pos = rankNextRollup, q.Position
				default:
					key.rank, key.pos = rankNthRollup, q.NthRollup
				}
				e = &entry{
					key:   key,
					group: QueueGroup{RollupNumber: q.RollupNumber, RollupLink: q.RollupLink},
				}
				rollups[q.RollupNumber] = e
			}
			e.group.Prs = append(e.group.Prs, pr)
		case QueueRunning:
			k := tie
			k.rank, k.pos = rankNormal, 0
			singles = append(singles, entry{key: k, group: QueueGroup{Prs: []Pr{pr}}})
		case QueueInQueue:
			k := tie
			k.rank, k.pos = rankNormal, q.Position
			singles = append(singles, entry{key: k, group: QueueGroup{Prs: []Pr{pr}}})
		default:
			k := tie
			k.rank = rankUnknown
			singles = append(singles, entry{key: k, group: QueueGroup{Prs: []Pr{pr}}})
		}
	}

	entries := singles
	for _, e := range rollups {
		e.group.Prs = sortByCreated(e.group.Prs)
		entries = append(entries, *e)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].key.less(entries[j].key) })

	res := make([]QueueGroup, 0, len(entries))
	for _, e := range entries {
		res = append(res, e.group)
	}
	return res
}
