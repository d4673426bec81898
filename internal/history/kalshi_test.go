package history

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/datavents/datavents/internal/kalshi/api"
	"github.com/datavents/datavents/internal/kalshi/elections"
	"github.com/datavents/datavents/internal/resolve"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newKalshiEngine(serverURL string) *KalshiEngine {
	return NewKalshiEngine(elections.New(serverURL), api.New(serverURL), testLogger())
}

func TestKalshiReconstruct_ForecastHistory(t *testing.T) {
	const base int64 = 1_700_000_000 // multiple of 100

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/series/SER/markets/MID/forecast_history") {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("candlestick_function"); got != "mean_price" {
			t.Errorf("candlestick_function = %q, want mean_price", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"forecast_history": []map[string]any{
				{"end_period_ts": base + 600, "numerical_forecast": 40.0},
				{"end_period_ts": base + 300, "numerical_forecast": 55.0},
				{"ts": base + 900, "raw_numerical_forecast": 62.5},
				{"numerical_forecast": 10.0}, // no timestamp, skipped
			},
		})
	}))
	defer server.Close()

	engine := newKalshiEngine(server.URL)
	bundle := &resolve.KalshiBundle{Ticker: "SER-25-X", SeriesTicker: "SER", MarketID: "MID"}
	win := Window{Start: base, End: base + 3600, Interval: 300}

	points, err := engine.Reconstruct(t.Context(), bundle, win)
	if err != nil {
		t.Fatalf("Reconstruct() error = %v", err)
	}

	want := []Point{
		{T: (base + 300) * 1000, P: 0.55},
		{T: (base + 600) * 1000, P: 0.40},
		{T: (base + 900) * 1000, P: 0.625},
	}
	if len(points) != len(want) {
		t.Fatalf("got %d points, want %d: %+v", len(points), len(want), points)
	}
	for i := range want {
		if points[i] != want[i] {
			t.Errorf("points[%d] = %+v, want %+v", i, points[i], want[i])
		}
	}
}

func TestKalshiReconstruct_TradesFallback(t *testing.T) {
	const base int64 = 1_700_000_100 // multiple of 300

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/trades" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("ticker"); got != "SER-25-X" {
			t.Errorf("ticker = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"trades": []map[string]any{
				// Both land in the bucket ending at base+300; the later
				// trade wins.
				{"created_time": "2023-11-14T22:15:10Z", "price": 40}, // base+10
				{"created_time": "2023-11-14T22:15:20Z", "price": 55}, // base+20
				// Next bucket.
				{"created_time": "2023-11-14T22:20:20Z", "price": 61}, // base+320
				// Outside the window, dropped.
				{"created_time": "2023-11-14T20:00:00Z", "price": 99},
			},
			"cursor": "",
		})
	}))
	defer server.Close()

	engine := newKalshiEngine(server.URL)
	// Incomplete bundle: forecast history is skipped entirely.
	bundle := &resolve.KalshiBundle{Ticker: "SER-25-X", SeriesTicker: "SER"}
	win := Window{Start: base, End: base + 3600, Interval: 300}

	points, err := engine.Reconstruct(t.Context(), bundle, win)
	if err != nil {
		t.Fatalf("Reconstruct() error = %v", err)
	}

	want := []Point{
		{T: (base + 300) * 1000, P: 55},
		{T: (base + 600) * 1000, P: 61},
	}
	if len(points) != len(want) {
		t.Fatalf("got %d points, want %d: %+v", len(points), len(want), points)
	}
	for i := range want {
		if points[i] != want[i] {
			t.Errorf("points[%d] = %+v, want %+v", i, points[i], want[i])
		}
	}
}

func TestKalshiReconstruct_TradesPaging(t *testing.T) {
	const base int64 = 1_700_000_100
	var requests int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		cursor := r.URL.Query().Get("cursor")
		switch cursor {
		case "":
			json.NewEncoder(w).Encode(map[string]any{
				"trades": []map[string]any{
					{"created_time": "2023-11-14T22:15:10Z", "price": 40},
				},
				"cursor": "next",
			})
		case "next":
			json.NewEncoder(w).Encode(map[string]any{
				"trades": []map[string]any{
					{"created_time": "2023-11-14T22:20:20Z", "price": 61},
				},
				"cursor": "",
			})
		default:
			t.Errorf("unexpected cursor %q", cursor)
		}
	}))
	defer server.Close()

	engine := newKalshiEngine(server.URL)
	bundle := &resolve.KalshiBundle{Ticker: "SER-25-X"}
	win := Window{Start: base, End: base + 3600, Interval: 300}

	points, err := engine.Reconstruct(t.Context(), bundle, win)
	if err != nil {
		t.Fatalf("Reconstruct() error = %v", err)
	}
	if requests != 2 {
		t.Errorf("requests = %d, want 2", requests)
	}
	if len(points) != 2 {
		t.Errorf("got %d points, want 2", len(points))
	}
}

func TestKalshiReconstruct_NoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "forecast_history") {
			http.Error(w, "upstream boom", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"trades": []any{}, "cursor": ""})
	}))
	defer server.Close()

	engine := newKalshiEngine(server.URL)
	bundle := &resolve.KalshiBundle{Ticker: "SER-25-X", SeriesTicker: "SER", MarketID: "MID"}
	win := Window{Start: 1_700_000_000, End: 1_700_003_600, Interval: 300}

	_, err := engine.Reconstruct(t.Context(), bundle, win)
	if err == nil {
		t.Fatal("Reconstruct() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "kalshi history error") {
		t.Errorf("error = %q, want kalshi history error prefix", err)
	}
}
