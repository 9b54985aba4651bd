package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/jdonszelmann/review-queue/pkg/model"
)

// DefaultCraterURL is the public crater dashboard.
const DefaultCraterURL = "https://crater.rust-lang.org/"

// Column indices of the crater experiment table.
const (
	craterColName   = 0
	craterColStatus = 5

	craterMinColumns = 6
)

// CraterClient fetches and parses the crater queue page.
type CraterClient struct {
	httpClient *http.Client
	url        string
}

// NewCraterClient creates a crater queue client. Empty url uses the public
// dashboard; nil httpClient uses a default with a timeout.
func NewCraterClient(httpClient *http.Client, url string) *CraterClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: feedTimeout}
	}
	if url == "" {
		url = DefaultCraterURL
	}
	return &CraterClient{httpClient: httpClient, url: url}
}

// FetchQueue downloads and parses the crater queue. The snapshot maps PR
// number to status; PRs the page does not mention are simply absent.
func (c *CraterClient) FetchQueue(ctx context.Context) (model.CraterSnapshot, error) {
	slog.Info("Fetching crater queue", "component", "feeds", "url", c.url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch crater queue: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("crater fetch returned status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse crater page: %w", err)
	}

	return parseCraterQueue(doc), nil
}

func parseCraterQueue(doc *html.Node) model.CraterSnapshot {
	table := findElement(doc, "table", func(n *html.Node) bool { return hasClass(n, "list") })
	if table == nil {
		slog.Warn("Crater page has no table.list")
		return model.CraterSnapshot{}
	}

	results := make(model.CraterSnapshot)
	queued := 0
	for _, row := range tableRows(table) {
		cells := rowCells(row)
		if len(cells) < craterMinColumns {
			continue
		}

		name := strings.TrimSpace(cells[craterColName])
		if name == "Name" { // header row
			continue
		}

		number, err := strconv.Atoi(strings.TrimPrefix(name, "pr-"))
		if err != nil {
			slog.Error("Failed to parse crater experiment name, skipping row", "raw", name)
			continue
		}

		status := strings.TrimSpace(cells[craterColStatus])
		switch {
		case strings.HasPrefix(status, "Running"):
			results[number] = model.CraterStatus{State: model.CraterRunning, ExpectedEnd: time.Now()}
		case status == "Generating report":
			results[number] = model.CraterStatus{State: model.CraterGeneratingReport}
		case status == "Queued":
			queued++
			results[number] = model.CraterStatus{State: model.CraterQueued, NumBefore: queued}
		default:
			slog.Error("Unrecognized crater status, skipping row", "raw", status, "pr", number)
		}
	}
	return results
}
