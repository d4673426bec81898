package httpclient

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestGetResource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/thing" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q", got)
		}
		w.Write([]byte(`{"name": "widget", "count": 3}`))
	}))
	defer server.Close()

	type thing struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	got, err := GetResource[thing](t.Context(), server.Client(), server.URL, "/thing", []int{200})
	if err != nil {
		t.Fatalf("GetResource: %v", err)
	}
	if got.Name != "widget" || got.Count != 3 {
		t.Errorf("got %+v", got)
	}
}

func TestGetResource_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := GetResource[map[string]any](t.Context(), server.Client(), server.URL, "/", []int{200})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("want *StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d", statusErr.StatusCode)
	}
	if !strings.Contains(string(statusErr.Body), "nope") {
		t.Errorf("Body = %q", statusErr.Body)
	}
}

func TestGetResource_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := GetResource[map[string]any](t.Context(), server.Client(), server.URL, "/", []int{200})
	if err == nil || !strings.Contains(err.Error(), "couldn't decode") {
		t.Errorf("want decode error, got %v", err)
	}
}

func TestGetResourceQuery(t *testing.T) {
	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	query := url.Values{}
	query.Set("ticker", "TICK-1")
	query.Set("limit", "5")

	_, err := GetResourceQuery[[]any](t.Context(), server.Client(), server.URL, "/trades", query, []int{200})
	if err != nil {
		t.Fatalf("GetResourceQuery: %v", err)
	}
	if gotQuery.Get("ticker") != "TICK-1" || gotQuery.Get("limit") != "5" {
		t.Errorf("query = %v", gotQuery)
	}
}
