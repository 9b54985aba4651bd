package feeds

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jdonszelmann/review-queue/pkg/model"
)

// DefaultRfcbotURL is rfcbot's public "all FCPs" feed.
const DefaultRfcbotURL = "https://rfcbot.rs/api/all"

// RfcbotClient fetches the FCP tracker feed.
type RfcbotClient struct {
	httpClient *http.Client
	url        string
}

// NewRfcbotClient creates an rfcbot feed client. Empty url uses the public
// feed; nil httpClient uses a default with a timeout.
func NewRfcbotClient(httpClient *http.Client, url string) *RfcbotClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: feedTimeout}
	}
	if url == "" {
		url = DefaultRfcbotURL
	}
	return &RfcbotClient{httpClient: httpClient, url: url}
}

// rfcbot timestamps are naive datetimes without a zone.
const rfcbotTimeLayout = "2006-01-02T15:04:05"

type rfcbotUserJSON struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
}

type rfcbotEntryJSON struct {
	Fcp struct {
		Disposition string  `json:"disposition"`
		FcpStart    *string `json:"fcp_start"`
		FcpClosed   bool    `json:"fcp_closed"`
	} `json:"fcp"`
	// Each concern is a (name, registering comment, user) tuple.
	Concerns [][]json.RawMessage `json:"concerns"`
	Issue    struct {
		Number     int    `json:"number"`
		Repository string `json:"repository"`
	} `json:"issue"`
}

// FetchAll downloads the FCP feed and returns it keyed by issue number.
// Entries that fail to parse degrade field by field rather than dropping
// the whole feed.
func (c *RfcbotClient) FetchAll(ctx context.Context) (model.FcpSnapshot, error) {
	slog.Info("Fetching rfcbot feed", "component", "feeds", "url", c.url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rfcbot feed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rfcbot fetch returned status %d", resp.StatusCode)
	}

	var entries []rfcbotEntryJSON
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode rfcbot feed: %w", err)
	}

	res := make(model.FcpSnapshot, len(entries))
	for _, e := range entries {
		info := model.FcpInfo{
			Disposition: e.Fcp.Disposition,
			Closed:      e.Fcp.FcpClosed,
			Concerns:    parseConcerns(e.Concerns, e.Issue.Number),
		}
		if e.Fcp.FcpStart != nil {
			if t, err := time.Parse(rfcbotTimeLayout, *e.Fcp.FcpStart); err == nil {
				info.Start = &t
			} else if t, err := time.Parse(time.RFC3339, *e.Fcp.FcpStart); err == nil {
				info.Start = &t
			} else {
				slog.Warn("Failed to parse FCP start time", "issue", e.Issue.Number, "raw", *e.Fcp.FcpStart)
			}
		}
		res[e.Issue.Number] = info
	}
	return res, nil
}

func parseConcerns(raw [][]json.RawMessage, issue int) []model.FcpConcern {
	var res []model.FcpConcern
	for _, tuple := range raw {
		if len(tuple) < 3 {
			slog.Warn("Malformed rfcbot concern tuple, skipping", "issue", issue)
			continue
		}
		var name string
		if err := json.Unmarshal(tuple[0], &name); err != nil {
			slog.Warn("Failed to parse rfcbot concern name, skipping", "issue", issue, "error", err)
			continue
		}
		var by rfcbotUserJSON
		if err := json.Unmarshal(tuple[2], &by); err != nil {
			slog.Warn("Failed to parse rfcbot concern user, skipping", "issue", issue, "error", err)
			continue
		}
		res = append(res, model.FcpConcern{
			Name: name,
			By:   model.User{Login: by.Login, ID: by.ID},
		})
	}
	return res
}
