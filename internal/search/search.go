// Package search holds the cross-vendor search parameter model: sort order
// and status enums with their query-string aliases, the Kalshi search scope
// rules, and the server-side status filter applied to merged results.
package search

import (
	"strings"

	"github.com/datavents/datavents/internal/vendor"
)

// Order is a cross-vendor sort order. The canonical names follow the
// upstream ORDER_BY_* convention; query parameters accept the bare suffix
// as an alias ("trending", "closing_soon", ...).
type Order string

const (
	OrderTrending    Order = "ORDER_BY_TRENDING"
	OrderNewest      Order = "ORDER_BY_NEWEST"
	OrderClosingSoon Order = "ORDER_BY_CLOSING_SOON"
	OrderVolume      Order = "ORDER_BY_VOLUME"
	OrderLiquidity   Order = "ORDER_BY_LIQUIDITY"
)

var orders = []Order{OrderTrending, OrderNewest, OrderClosingSoon, OrderVolume, OrderLiquidity}

// Param returns the lowercase suffix used in vendor query strings.
func (o Order) Param() string {
	return strings.ToLower(strings.TrimPrefix(string(o), "ORDER_BY_"))
}

// ParseOrder maps a query parameter onto an Order. Both the canonical name
// and the bare suffix are accepted, case-insensitively. Unknown or empty
// input falls back to trending.
func ParseOrder(raw string) Order {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return OrderTrending
	}
	for _, o := range orders {
		if key == strings.ToLower(string(o)) || key == o.Param() {
			return o
		}
	}
	return OrderTrending
}

// Status selects which market lifecycle states a search returns.
type Status string

const (
	StatusOpen   Status = "OPEN_MARKETS"
	StatusClosed Status = "CLOSED_MARKETS"
	StatusAll    Status = "ALL_MARKETS"
)

var statuses = []Status{StatusOpen, StatusClosed, StatusAll}

var statusAliases = map[string]Status{
	"open":   StatusOpen,
	"closed": StatusClosed,
	"all":    StatusAll,
}

// ParseStatus maps a query parameter onto a Status, accepting the short
// aliases open/closed/all as well as the canonical names. Defaults to open.
func ParseStatus(raw string) Status {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return StatusOpen
	}
	if st, ok := statusAliases[key]; ok {
		return st
	}
	for _, st := range statuses {
		if key == strings.ToLower(string(st)) {
			return st
		}
	}
	return StatusOpen
}

// Param returns the value sent upstream in status query parameters. An
// all-markets filter sends nothing.
func (s Status) Param() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	default:
		return ""
	}
}

// Matches reports whether a normalized item status passes this filter.
// Closed-only requests treat "settled" as closed; Kalshi reports resolved
// markets either way depending on the endpoint, and callers asking for
// closed results expect both.
func (s Status) Matches(itemStatus string) bool {
	v := strings.ToLower(strings.TrimSpace(itemStatus))
	switch s {
	case StatusOpen:
		return v == "open"
	case StatusClosed:
		return v == "closed" || v == "settled"
	default:
		return true
	}
}

// Scope selects which Kalshi search surface to hit.
type Scope string

const (
	ScopeSeries Scope = "series"
	ScopeEvents Scope = "events"
)

func ParseScope(raw string) Scope {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "events":
		return ScopeEvents
	default:
		return ScopeSeries
	}
}

// EffectiveScope widens a series-scope request to events when a specific
// status is asked for. The Kalshi series search has no status parameter,
// so honoring the filter requires the events surface.
func EffectiveScope(requested Scope, status Status) Scope {
	if requested == ScopeSeries && status != StatusAll {
		return ScopeEvents
	}
	return requested
}

// FilterByStatus applies the status filter to merged result items. Each
// item's "status" field is read as a lowercase string; items without one
// never pass a non-all filter.
func FilterByStatus(items []map[string]any, status Status) []map[string]any {
	if status == StatusAll {
		return items
	}
	kept := make([]map[string]any, 0, len(items))
	for _, item := range items {
		s, _ := item["status"].(string)
		if status.Matches(s) {
			kept = append(kept, item)
		}
	}
	return kept
}

// Labelize turns a canonical enum name into a display label:
// ORDER_BY_CLOSING_SOON -> "Closing Soon", OPEN_MARKETS -> "Open".
func Labelize(name string) string {
	s := strings.ReplaceAll(name, "ORDER_BY_", "")
	s = strings.ReplaceAll(s, "_MARKETS", "")
	words := strings.Split(strings.ToLower(strings.ReplaceAll(s, "_", " ")), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Option is one entry in the enum catalogs served to clients.
type Option struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
	Label string `json:"label"`
}

func ProviderOptions() []Option {
	vendors := vendor.All()
	opts := make([]Option, 0, len(vendors)+1)
	for _, v := range vendors {
		name := strings.ToUpper(string(v))
		opts = append(opts, Option{Name: name, Value: string(v), Label: Labelize(name)})
	}
	opts = append(opts, Option{Name: "ALL", Value: "all", Label: "All"})
	return opts
}

func OrderOptions() []Option {
	opts := make([]Option, 0, len(orders))
	for _, o := range orders {
		opts = append(opts, Option{Name: string(o), Label: Labelize(string(o))})
	}
	return opts
}

func StatusOptions() []Option {
	opts := make([]Option, 0, len(statuses))
	for _, st := range statuses {
		opts = append(opts, Option{Name: string(st), Label: Labelize(string(st))})
	}
	return opts
}
