package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/datavents/datavents/internal/history"
	"github.com/datavents/datavents/internal/kalshi/elections"
	"github.com/datavents/datavents/internal/polymarket/clob"
	"github.com/datavents/datavents/internal/polymarket/gamma"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func doRequest(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reqBody)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var decoded map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("couldn't decode response %q: %v", w.Body.String(), err)
	}
	return w, decoded
}

func TestHealth(t *testing.T) {
	s := New(":0", Deps{}, testLogger())
	w, body := doRequest(t, s, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if body["ok"] != true {
		t.Errorf("body = %v", body)
	}
}

func TestSearchOptions(t *testing.T) {
	s := New(":0", Deps{}, testLogger())
	w, body := doRequest(t, s, http.MethodGet, "/api/search/options", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	for _, key := range []string{"providers", "order", "status"} {
		if _, ok := body[key].([]any); !ok {
			t.Errorf("missing catalog %q in %v", key, body)
		}
	}
}

func TestValidationErrors(t *testing.T) {
	s := New(":0", Deps{}, testLogger())

	tests := []struct {
		name    string
		method  string
		target  string
		body    string
		wantErr string
	}{
		{
			name: "event without provider", method: http.MethodGet,
			target:  "/api/event",
			wantErr: "provider must be 'kalshi' or 'polymarket'",
		},
		{
			name: "event wildcard provider rejected", method: http.MethodGet,
			target:  "/api/event?provider=all",
			wantErr: "provider must be 'kalshi' or 'polymarket'",
		},
		{
			name: "kalshi event without ticker", method: http.MethodGet,
			target:  "/api/event?provider=kalshi",
			wantErr: "event_ticker required for provider=kalshi",
		},
		{
			name: "polymarket event without id or slug", method: http.MethodGet,
			target:  "/api/event?provider=polymarket",
			wantErr: "id or slug required for provider=polymarket",
		},
		{
			name: "kalshi market without ticker", method: http.MethodGet,
			target:  "/api/market?provider=kalshi",
			wantErr: "ticker required for provider=kalshi",
		},
		{
			name: "kalshi history without ticker", method: http.MethodGet,
			target:  "/api/market/history?provider=kalshi",
			wantErr: "ticker required for provider=kalshi",
		},
		{
			name: "post history kalshi without ticker", method: http.MethodPost,
			target:  "/api/history",
			body:    `{"provider": "kalshi", "market": {}}`,
			wantErr: "kalshi ticker is required in market.ticker",
		},
		{
			name: "post event bad provider", method: http.MethodPost,
			target:  "/api/event",
			body:    `{"provider": "nope"}`,
			wantErr: "provider must be 'kalshi' or 'polymarket'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := doRequest(t, s, tt.method, tt.target, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body %v", w.Code, body)
			}
			if got, _ := body["error"].(string); got != tt.wantErr {
				t.Errorf("error = %q, want %q", got, tt.wantErr)
			}
		})
	}
}

func TestPolymarketHistoryUpstreamFailure(t *testing.T) {
	gammaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": "42", "clobTokenIds": "[\"tok-1\"]"}`))
	}))
	defer gammaSrv.Close()

	clobSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
	defer clobSrv.Close()

	gammaClient := gamma.New(gammaSrv.URL)
	s := New(":0", Deps{
		Gamma:            gammaClient,
		PolymarketEngine: history.NewPolymarketEngine(clob.New(clobSrv.URL), gammaClient, testLogger()),
	}, testLogger())

	w, body := doRequest(t, s, http.MethodGet, "/api/market/history?provider=polymarket&id=42", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, body %v", w.Code, body)
	}

	msg, _ := body["error"].(string)
	if !strings.HasPrefix(msg, "polymarket history error:") {
		t.Errorf("error = %q, want the polymarket prefix", msg)
	}
	if strings.Count(msg, "polymarket history error:") != 1 {
		t.Errorf("error prefix repeated: %q", msg)
	}
}

func TestSearchMergesVendors(t *testing.T) {
	electionsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/events" {
			t.Errorf("kalshi path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("status"); got != "open" {
			t.Errorf("status param = %q", got)
		}
		w.Write([]byte(`{"current_page": [
			{"title": "open one", "status": "open"},
			{"title": "stale", "status": "closed"}
		]}`))
	}))
	defer electionsSrv.Close()

	gammaSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/public-search" {
			t.Errorf("gamma path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"events": [{"title": "poly hit"}]}`))
	}))
	defer gammaSrv.Close()

	s := New(":0", Deps{
		Elections: elections.New(electionsSrv.URL),
		Gamma:     gamma.New(gammaSrv.URL),
	}, testLogger())

	w, body := doRequest(t, s, http.MethodGet, "/api/search?q=rain&status=open", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %v", w.Code, body)
	}

	results, _ := body["results"].([]any)
	if len(results) != 2 {
		t.Fatalf("results = %v", results)
	}

	kalshi, _ := results[0].(map[string]any)
	if kalshi["provider"] != "kalshi" {
		t.Errorf("first provider = %v", kalshi["provider"])
	}
	hits, _ := kalshi["data"].([]any)
	if len(hits) != 1 {
		t.Errorf("closed hit should be filtered out, got %v", hits)
	}

	meta, _ := body["meta"].(map[string]any)
	if meta["provider"] != "all" || meta["status"] != "OPEN_MARKETS" {
		t.Errorf("meta = %v", meta)
	}
}
