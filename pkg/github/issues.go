package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"github.com/jdonszelmann/review-queue/pkg/model"
)

// Pagination constants.
const (
	perPageLimit = 100 // GitHub API per_page limit

	// GitHub sometimes serves an empty first page while a filtered listing
	// is still being computed server-side. Retry briefly before declaring
	// the enumeration empty.
	emptyPageAttempts = 20
	emptyPageDelay    = 50 * time.Millisecond
)

// ErrEmptyEnumeration is returned when a listing never produced data within
// the bounded retry budget. Callers treat it as "abandon this enumeration",
// not as a fatal scan error.
var ErrEmptyEnumeration = errors.New("enumeration produced no data")

// IssueFilter narrows an issue listing. Exactly one field should be set.
type IssueFilter struct {
	Assignee string
	Creator  string
}

func (f IssueFilter) String() string {
	if f.Assignee != "" {
		return "assignee=" + f.Assignee
	}
	return "creator=" + f.Creator
}

// issueJSON is the wire shape of an issue in listing responses.
type issueJSON struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	HTMLURL   string     `json:"html_url"`
	CreatedAt string     `json:"created_at"`
	User      userJSON   `json:"user"`
	Assignees []userJSON `json:"assignees"`
	Labels    []struct {
		Name string `json:"name"`
	} `json:"labels"`
	PullRequest *struct{} `json:"pull_request"`
	Repository  *struct {
		Name  string `json:"name"`
		Owner struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`
}

func (i issueJSON) toModel() model.Issue {
	createdAt, err := time.Parse(time.RFC3339, i.CreatedAt)
	if err != nil {
		slog.Warn("Failed to parse created_at time", "issue", i.Number, "error", err)
		createdAt = time.Now()
	}

	assignees := make([]model.User, 0, len(i.Assignees))
	for _, a := range i.Assignees {
		assignees = append(assignees, a.toModel())
	}
	labels := make([]string, 0, len(i.Labels))
	for _, l := range i.Labels {
		labels = append(labels, l.Name)
	}

	return model.Issue{
		Number:        i.Number,
		Title:         i.Title,
		Body:          i.Body,
		HTMLURL:       i.HTMLURL,
		CreatedAt:     createdAt,
		User:          i.User.toModel(),
		Assignees:     assignees,
		Labels:        labels,
		IsPullRequest: i.PullRequest != nil,
	}
}

// ListOpenIssues enumerates all open issues in a repository matching the
// filter, following pagination to the end.
func (c *Client) ListOpenIssues(ctx context.Context, repo model.Repo, filter IssueFilter) ([]model.Issue, error) {
	slog.Info("Listing open issues", "component", "api", "repo", repo, "filter", filter)

	query := url.Values{}
	query.Set("state", "open")
	query.Set("per_page", fmt.Sprint(perPageLimit))
	if filter.Assignee != "" {
		query.Set("assignee", filter.Assignee)
	}
	if filter.Creator != "" {
		query.Set("creator", filter.Creator)
	}

	base := fmt.Sprintf("%s/repos/%s/%s/issues", c.baseURL, repo.Owner, repo.Name)
	raw, err := c.listAllPages(ctx, base, query)
	if err != nil {
		return nil, err
	}

	issues := make([]model.Issue, 0, len(raw))
	for _, r := range raw {
		issues = append(issues, r.toModel())
	}
	return issues, nil
}

// SubscribedIssues enumerates open issues the authenticated user subscribes
// to, across all repositories, grouped by repository.
func (c *Client) SubscribedIssues(ctx context.Context) (map[model.Repo][]model.Issue, error) {
	slog.Info("Listing subscribed issues", "component", "api")

	query := url.Values{}
	query.Set("filter", "subscribed")
	query.Set("state", "open")
	query.Set("per_page", fmt.Sprint(perPageLimit))

	raw, err := c.listAllPages(ctx, c.baseURL+"/issues", query)
	if err != nil {
		return nil, err
	}

	res := make(map[model.Repo][]model.Issue)
	for _, r := range raw {
		if r.Repository == nil {
			slog.Warn("Subscribed issue without repository field, skipping", "issue", r.Number)
			continue
		}
		repo := model.Repo{Owner: r.Repository.Owner.Login, Name: r.Repository.Name}
		res[repo] = append(res[repo], r.toModel())
	}
	return res, nil
}

// listAllPages fetches every page of an issue listing. The first page gets
// the bounded empty-page retry; later pages are followed until a short page.
func (c *Client) listAllPages(ctx context.Context, base string, query url.Values) ([]issueJSON, error) {
	var all []issueJSON
	page := 1

	for {
		query.Set("page", fmt.Sprint(page))
		pageURL := base + "?" + query.Encode()

		var items []issueJSON
		fetch := func() error {
			got, err := c.fetchIssuePage(ctx, pageURL)
			if err != nil {
				return err
			}
			if page == 1 && len(got) == 0 {
				return ErrEmptyEnumeration
			}
			items = got
			return nil
		}

		err := retry.Do(
			fetch,
			retry.Context(ctx),
			retry.Attempts(uint(emptyPageAttempts)),
			retry.Delay(emptyPageDelay),
			retry.DelayType(retry.FixedDelay),
			retry.LastErrorOnly(true),
			retry.RetryIf(func(err error) bool { return errors.Is(err, ErrEmptyEnumeration) }),
		)
		if err != nil {
			if errors.Is(err, ErrEmptyEnumeration) {
				return nil, fmt.Errorf("%s: %w", pageURL, ErrEmptyEnumeration)
			}
			return nil, err
		}

		all = append(all, items...)
		if len(items) < perPageLimit {
			return all, nil
		}
		page++
	}
}

func (c *Client) fetchIssuePage(ctx context.Context, pageURL string) ([]issueJSON, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to list issues (status %d)", resp.StatusCode)
	}

	var items []issueJSON
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode issue page: %w", err)
	}
	return items, nil
}
