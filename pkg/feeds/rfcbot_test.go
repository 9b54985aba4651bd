package feeds

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const rfcbotFixture = `[
  {
    "fcp": {"disposition": "merge", "fcp_start": "2024-06-01T10:30:00", "fcp_closed": false},
    "concerns": [
      ["perf-regression", 123456, {"login": "alice", "id": 1}],
      ["broken tuple"]
    ],
    "issue": {"number": 100, "repository": "rust-lang/rust"}
  },
  {
    "fcp": {"disposition": "close", "fcp_start": null, "fcp_closed": false},
    "concerns": [],
    "issue": {"number": 200, "repository": "rust-lang/rust"}
  },
  {
    "fcp": {"disposition": "merge", "fcp_start": "not a time", "fcp_closed": true},
    "concerns": [],
    "issue": {"number": 300, "repository": "rust-lang/rfcs"}
  }
]`

func TestRfcbotFetchAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, rfcbotFixture)
	}))
	defer srv.Close()

	snapshot, err := NewRfcbotClient(srv.Client(), srv.URL).FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll: %v", err)
	}
	if len(snapshot) != 3 {
		t.Fatalf("got %d entries, want 3", len(snapshot))
	}

	started := snapshot[100]
	if started.Disposition != "merge" || started.Closed {
		t.Errorf("entry 100 = %+v", started)
	}
	if started.Start == nil {
		t.Fatal("entry 100 has no start time")
	}
	want := time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
	if !started.Start.Equal(want) {
		t.Errorf("start = %v, want %v", started.Start, want)
	}
	// The malformed concern tuple is dropped; the good one survives.
	if len(started.Concerns) != 1 || started.Concerns[0].Name != "perf-regression" || started.Concerns[0].By.Login != "alice" {
		t.Errorf("concerns = %+v", started.Concerns)
	}

	if notStarted := snapshot[200]; notStarted.Start != nil {
		t.Errorf("entry 200 start = %v, want nil", notStarted.Start)
	}

	// An unparseable start time degrades to nil rather than dropping the
	// entry.
	if bad := snapshot[300]; bad.Start != nil || !bad.Closed {
		t.Errorf("entry 300 = %+v", bad)
	}
}

func TestRfcbotFetchAllServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := NewRfcbotClient(srv.Client(), srv.URL).FetchAll(context.Background()); err == nil {
		t.Error("FetchAll on a 500 returned nil error")
	}
}
