package search

import (
	"reflect"
	"testing"
)

func TestParseOrder(t *testing.T) {
	tests := []struct {
		raw  string
		want Order
	}{
		{"", OrderTrending},
		{"trending", OrderTrending},
		{"ORDER_BY_TRENDING", OrderTrending},
		{"order_by_newest", OrderNewest},
		{"CLOSING_SOON", OrderClosingSoon},
		{"Volume", OrderVolume},
		{"liquidity", OrderLiquidity},
		{"nonsense", OrderTrending},
	}
	for _, tt := range tests {
		if got := ParseOrder(tt.raw); got != tt.want {
			t.Errorf("ParseOrder(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestOrderParam(t *testing.T) {
	if got := OrderClosingSoon.Param(); got != "closing_soon" {
		t.Errorf("Param() = %q, want closing_soon", got)
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{"", StatusOpen},
		{"open", StatusOpen},
		{"OPEN_MARKETS", StatusOpen},
		{"closed", StatusClosed},
		{"Closed_Markets", StatusClosed},
		{"all", StatusAll},
		{"ALL_MARKETS", StatusAll},
		{"bogus", StatusOpen},
	}
	for _, tt := range tests {
		if got := ParseStatus(tt.raw); got != tt.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestStatusParam(t *testing.T) {
	if got := StatusOpen.Param(); got != "open" {
		t.Errorf("open Param() = %q", got)
	}
	if got := StatusClosed.Param(); got != "closed" {
		t.Errorf("closed Param() = %q", got)
	}
	if got := StatusAll.Param(); got != "" {
		t.Errorf("all Param() = %q, want empty", got)
	}
}

func TestStatusMatches(t *testing.T) {
	tests := []struct {
		status Status
		item   string
		want   bool
	}{
		{StatusOpen, "open", true},
		{StatusOpen, "Open", true},
		{StatusOpen, "closed", false},
		{StatusClosed, "closed", true},
		{StatusClosed, "settled", true},
		{StatusClosed, "open", false},
		{StatusAll, "anything", true},
		{StatusAll, "", true},
		{StatusOpen, "", false},
	}
	for _, tt := range tests {
		if got := tt.status.Matches(tt.item); got != tt.want {
			t.Errorf("%s.Matches(%q) = %v, want %v", tt.status, tt.item, got, tt.want)
		}
	}
}

func TestEffectiveScope(t *testing.T) {
	tests := []struct {
		scope  Scope
		status Status
		want   Scope
	}{
		{ScopeSeries, StatusAll, ScopeSeries},
		{ScopeSeries, StatusOpen, ScopeEvents},
		{ScopeSeries, StatusClosed, ScopeEvents},
		{ScopeEvents, StatusAll, ScopeEvents},
		{ScopeEvents, StatusOpen, ScopeEvents},
	}
	for _, tt := range tests {
		if got := EffectiveScope(tt.scope, tt.status); got != tt.want {
			t.Errorf("EffectiveScope(%s, %s) = %s, want %s", tt.scope, tt.status, got, tt.want)
		}
	}
}

func TestFilterByStatus(t *testing.T) {
	items := []map[string]any{
		{"id": "a", "status": "open"},
		{"id": "b", "status": "closed"},
		{"id": "c", "status": "settled"},
		{"id": "d"},
	}

	closed := FilterByStatus(items, StatusClosed)
	if len(closed) != 2 || closed[0]["id"] != "b" || closed[1]["id"] != "c" {
		t.Errorf("closed filter kept %v", closed)
	}

	open := FilterByStatus(items, StatusOpen)
	if len(open) != 1 || open[0]["id"] != "a" {
		t.Errorf("open filter kept %v", open)
	}

	if all := FilterByStatus(items, StatusAll); !reflect.DeepEqual(all, items) {
		t.Errorf("all filter changed items: %v", all)
	}
}

func TestLabelize(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"ORDER_BY_CLOSING_SOON", "Closing Soon"},
		{"ORDER_BY_TRENDING", "Trending"},
		{"OPEN_MARKETS", "Open"},
		{"ALL_MARKETS", "All"},
	}
	for _, tt := range tests {
		if got := Labelize(tt.name); got != tt.want {
			t.Errorf("Labelize(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestOptionCatalogs(t *testing.T) {
	providers := ProviderOptions()
	if len(providers) == 0 || providers[len(providers)-1].Value != "all" {
		t.Errorf("provider catalog missing wildcard entry: %v", providers)
	}
	if len(OrderOptions()) != 5 {
		t.Errorf("order catalog has %d entries", len(OrderOptions()))
	}
	for _, opt := range StatusOptions() {
		if opt.Label == "" || opt.Name == "" {
			t.Errorf("empty option %+v", opt)
		}
	}
}
