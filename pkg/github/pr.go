package github

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jdonszelmann/review-queue/pkg/model"
)

// PullDetail fetches the PR-only fields for one pull request: draft flag,
// body, and GitHub's mergeability signal. Mergeable is nil while GitHub is
// still computing it.
func (c *Client) PullDetail(ctx context.Context, repo model.Repo, number int) (model.PullDetail, error) {
	slog.Info("Fetching PR detail", "component", "api", "repo", repo, "pr", number)

	apiURL := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, repo.Owner, repo.Name, number)
	resp, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return model.PullDetail{}, err
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return model.PullDetail{}, fmt.Errorf("failed to get PR %s#%d (status %d)", repo, number, resp.StatusCode)
	}

	var data struct {
		Title          string `json:"title"`
		Body           string `json:"body"`
		MergeableState string `json:"mergeable_state"`
		Number         int    `json:"number"`
		Mergeable      *bool  `json:"mergeable"`
		Draft          bool   `json:"draft"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return model.PullDetail{}, fmt.Errorf("failed to decode PR %s#%d: %w", repo, number, err)
	}

	// mergeable_state is left empty when GitHub omits it; the resolver
	// treats that differently from an explicit "unknown".
	return model.PullDetail{
		Number:     data.Number,
		Title:      data.Title,
		Body:       data.Body,
		Draft:      data.Draft,
		Mergeable:  data.Mergeable,
		MergeState: model.MergeState(data.MergeableState),
	}, nil
}
