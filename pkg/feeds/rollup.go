package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jdonszelmann/review-queue/pkg/model"
)

// rollupTitlePrefix marks a bors queue entry as a batch PR.
const rollupTitlePrefix = "Rollup of"

// BodyFetcher fetches pull request detail; FindRollups uses it to read the
// description of each batch PR.
type BodyFetcher interface {
	PullDetail(ctx context.Context, repo model.Repo, number int) (model.PullDetail, error)
}

// IsRollupTitle reports whether a queue row's title marks it as a batch PR.
func IsRollupTitle(title string) bool {
	return strings.HasPrefix(title, rollupTitlePrefix)
}

// FindRollups derives the rollup snapshot from a bors queue snapshot: every
// queue row titled as a batch gets its PR description fetched and its member
// numbers extracted. A batch whose body cannot be fetched is skipped and
// logged; the remaining rollups keep queue order.
func FindRollups(ctx context.Context, gh BodyFetcher, repo model.Repo, queue model.BorsQueue) (model.RollupQueue, error) {
	var res model.RollupQueue

	for _, row := range queue.Items {
		if !IsRollupTitle(row.Title) {
			continue
		}

		detail, err := gh.PullDetail(ctx, repo, row.Number)
		if err != nil {
			slog.Warn("Failed to fetch rollup PR body, skipping rollup", "repo", repo, "pr", row.Number, "error", err)
			continue
		}
		if detail.Body == "" {
			slog.Warn("Rollup PR has no body, skipping rollup", "repo", repo, "pr", row.Number)
			continue
		}

		res.Rollups = append(res.Rollups, model.Rollup{
			Number:   row.Number,
			Link:     fmt.Sprintf("https://github.com/%s/%s/pull/%d", repo.Owner, repo.Name, row.Number),
			Status:   row.Status,
			Running:  row.Running,
			Position: row.Position,
			Members:  ParseRollupMembers(detail.Body),
		})
	}

	return res, nil
}

// ParseRollupMembers extracts member PR numbers from a rollup description.
// One member per line matching "- <repo>#<number> <description>"; this is a
// best-effort parse of human-written text, so non-matching lines are
// silently skipped.
func ParseRollupMembers(body string) []int {
	var members []int
	for _, line := range strings.Split(body, "\n") {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), "- ")
		if !ok {
			continue
		}
		_, rest, ok = strings.Cut(rest, "#")
		if !ok {
			continue
		}
		numberPart, _, ok := strings.Cut(rest, " ")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(numberPart)
		if err != nil {
			continue
		}
		members = append(members, n)
	}
	return members
}
