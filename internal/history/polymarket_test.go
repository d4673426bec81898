package history

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/datavents/datavents/internal/polymarket/clob"
	"github.com/datavents/datavents/internal/polymarket/gamma"
)

func newPolymarketEngine(clobURL, gammaURL string) *PolymarketEngine {
	return NewPolymarketEngine(clob.New(clobURL), gamma.New(gammaURL), testLogger())
}

func TestPolymarketReconstruct_Chunking(t *testing.T) {
	const start int64 = 1_690_000_000
	const chunk int64 = 15 * 24 * 3600
	end := start + 40*24*3600 // 40 days, expect 3 chunks

	var chunks [][2]int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/prices-history" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if got := q.Get("market"); got != "token-1" {
			t.Errorf("market = %q, want token-1", got)
		}
		from, _ := strconv.ParseInt(q.Get("startTs"), 10, 64)
		to, _ := strconv.ParseInt(q.Get("endTs"), 10, 64)
		chunks = append(chunks, [2]int64{from, to})

		// Every chunk reports its own start plus the shared boundary
		// timestamp, with a chunk-specific price. The first occurrence of
		// the boundary must win.
		json.NewEncoder(w).Encode(map[string]any{
			"history": []map[string]any{
				{"t": from, "p": 0.10 + float64(len(chunks))/100},
				{"t": start + chunk, "p": float64(len(chunks))},
			},
		})
	}))
	defer server.Close()

	engine := newPolymarketEngine(server.URL, server.URL)
	market := map[string]any{"clobTokenIds": `["token-1","token-2"]`}

	result, err := engine.Reconstruct(t.Context(), PolymarketRequest{Market: market}, Window{Start: start, End: end, Interval: 300})
	if err != nil {
		t.Fatalf("Reconstruct() error = %v", err)
	}

	wantChunks := [][2]int64{
		{start, start + chunk},
		{start + chunk, start + 2*chunk},
		{start + 2*chunk, end},
	}
	if len(chunks) != len(wantChunks) {
		t.Fatalf("got %d chunk requests, want %d: %v", len(chunks), len(wantChunks), chunks)
	}
	for i := range wantChunks {
		if chunks[i] != wantChunks[i] {
			t.Errorf("chunk[%d] = %v, want %v", i, chunks[i], wantChunks[i])
		}
	}

	if result.Synthetic {
		t.Error("Synthetic = true, want false")
	}
	if result.TokenID != "token-1" {
		t.Errorf("TokenID = %q, want token-1", result.TokenID)
	}

	// Three unique timestamps: the boundary repeats across chunks and is
	// kept once.
	if len(result.Points) != 3 {
		t.Fatalf("got %d points, want 4: %+v", len(result.Points), result.Points)
	}
	for i := 1; i < len(result.Points); i++ {
		if result.Points[i-1].T >= result.Points[i].T {
			t.Errorf("points not strictly ascending at %d: %+v", i, result.Points)
		}
	}
	boundary := (start + chunk) * 1000
	for _, pt := range result.Points {
		if pt.T == boundary && pt.P != 1.0 {
			t.Errorf("boundary point p = %v, want first chunk's 1.0", pt.P)
		}
	}
}

func TestPolymarketReconstruct_SnapshotResolvesToken(t *testing.T) {
	const start int64 = 1_700_000_000

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/markets/42":
			json.NewEncoder(w).Encode(map[string]any{
				"id":           "42",
				"clobTokenIds": `["tok-a"]`,
			})
		case "/prices-history":
			json.NewEncoder(w).Encode(map[string]any{
				"history": []map[string]any{{"t": start + 60, "p": 0.5}},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	engine := newPolymarketEngine(server.URL, server.URL)
	id := int64(42)

	result, err := engine.Reconstruct(t.Context(), PolymarketRequest{ID: &id}, Window{Start: start, End: start + 3600, Interval: 300})
	if err != nil {
		t.Fatalf("Reconstruct() error = %v", err)
	}
	if result.TokenID != "tok-a" {
		t.Errorf("TokenID = %q, want tok-a", result.TokenID)
	}
	if len(result.Points) != 1 || result.Points[0] != (Point{T: (start + 60) * 1000, P: 0.5}) {
		t.Errorf("points = %+v", result.Points)
	}
}

func TestPolymarketReconstruct_SyntheticFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	engine := newPolymarketEngine(server.URL, server.URL)
	fixed := time.Unix(1_700_000_000, 0)
	engine.now = func() time.Time { return fixed }

	market := map[string]any{"lastTradePrice": 0.42}
	result, err := engine.Reconstruct(t.Context(), PolymarketRequest{Market: market}, Window{Start: 1_699_900_000, End: 1_700_000_000, Interval: 300})
	if err != nil {
		t.Fatalf("Reconstruct() error = %v", err)
	}

	if !result.Synthetic {
		t.Fatal("Synthetic = false, want true")
	}
	if result.TokenID != "" {
		t.Errorf("TokenID = %q, want empty", result.TokenID)
	}

	nowMs := fixed.Unix() * 1000
	want := []Point{
		{T: nowMs - 3600*1000, P: 0.42},
		{T: nowMs, P: 0.42},
	}
	if len(result.Points) != 2 || result.Points[0] != want[0] || result.Points[1] != want[1] {
		t.Errorf("points = %+v, want %+v", result.Points, want)
	}
}

func TestPolymarketReconstruct_NoTokenNoPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	engine := newPolymarketEngine(server.URL, server.URL)
	_, err := engine.Reconstruct(t.Context(), PolymarketRequest{Slug: "missing"}, Window{Start: 1_699_900_000, End: 1_700_000_000, Interval: 300})
	if !errors.Is(err, ErrNoTokenID) {
		t.Errorf("error = %v, want ErrNoTokenID", err)
	}
}
