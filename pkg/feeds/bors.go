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

// Column indices of the bors queue table.
const (
	borsColNumber    = 2
	borsColStatus    = 3
	borsColMergeable = 4
	borsColTitle     = 5
	borsColApprover  = 8
	borsColPriority  = 9
	borsColRollup    = 10

	borsMinColumns = 11
)

const feedTimeout = 30 * time.Second

// BorsClient fetches and parses a bors queue page.
type BorsClient struct {
	httpClient *http.Client
}

// NewBorsClient creates a bors queue client. A nil httpClient uses a default
// with a sane timeout.
func NewBorsClient(httpClient *http.Client) *BorsClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: feedTimeout}
	}
	return &BorsClient{httpClient: httpClient}
}

// FetchQueue downloads the queue page at queueURL and parses it into a
// snapshot. Rows that fail to parse are skipped and logged; they still
// consume a queue position, since position is enumeration order of the page.
func (b *BorsClient) FetchQueue(ctx context.Context, queueURL string) (model.BorsQueue, error) {
	slog.Info("Fetching bors queue", "component", "feeds", "url", queueURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queueURL, nil)
	if err != nil {
		return model.BorsQueue{}, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return model.BorsQueue{}, fmt.Errorf("failed to fetch bors queue: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return model.BorsQueue{}, fmt.Errorf("bors queue fetch returned status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return model.BorsQueue{}, fmt.Errorf("failed to parse bors queue page: %w", err)
	}

	return parseBorsQueue(doc), nil
}

func parseBorsQueue(doc *html.Node) model.BorsQueue {
	table := findElement(doc, "table", func(n *html.Node) bool { return attrValue(n, "id") == "queue" })
	if table == nil {
		slog.Warn("Bors queue page has no #queue table")
		return model.BorsQueue{}
	}

	var queue model.BorsQueue
	position := 0
	for _, row := range tableRows(table) {
		position++

		cells := rowCells(row)
		if len(cells) < borsMinColumns {
			slog.Warn("Bors queue row has too few columns, skipping", "columns", len(cells), "position", position)
			continue
		}

		number, err := strconv.Atoi(strings.TrimSpace(cells[borsColNumber]))
		if err != nil {
			slog.Error("Failed to parse bors PR number, skipping row", "raw", strings.TrimSpace(cells[borsColNumber]), "position", position)
			continue
		}

		mergeable, ok := parseBorsMergeable(cells[borsColMergeable])
		if !ok {
			continue
		}

		rollup, ok := parseRollupSetting(cells[borsColRollup])
		if !ok {
			continue
		}

		priority, err := strconv.Atoi(strings.TrimSpace(cells[borsColPriority]))
		if err != nil {
			slog.Error("Failed to parse bors priority, skipping row", "raw", strings.TrimSpace(cells[borsColPriority]), "pr", number)
			continue
		}

		queue.Items = append(queue.Items, model.BorsPR{
			Number:        number,
			Approver:      strings.TrimSpace(cells[borsColApprover]),
			Status:        model.BorsStatus(strings.TrimSpace(cells[borsColStatus])),
			Mergeable:     mergeable,
			RollupSetting: rollup,
			Priority:      priority,
			Title:         strings.TrimSpace(cells[borsColTitle]),
			Position:      position,
			Running:       position == 1,
		})
	}
	return queue
}

func parseBorsMergeable(raw string) (mergeable, ok bool) {
	switch strings.TrimSpace(raw) {
	case "":
		// Bors occasionally renders an empty mergeable cell; assume yes.
		slog.Warn("Bors mergeable cell empty, assuming mergeable")
		return true, true
	case "yes":
		return true, true
	case "no":
		return false, true
	default:
		slog.Error("Unrecognized bors mergeable value, skipping row", "raw", strings.TrimSpace(raw))
		return false, false
	}
}

func parseRollupSetting(raw string) (model.RollupSetting, bool) {
	switch strings.TrimSpace(raw) {
	case "":
		return model.RollupUnset, true
	case "never":
		return model.RollupNever, true
	case "always":
		return model.RollupAlways, true
	case "iffy":
		return model.RollupIffy, true
	default:
		slog.Error("Unrecognized bors rollup setting, skipping row", "raw", strings.TrimSpace(raw))
		return model.RollupUnset, false
	}
}
