// Package normalize owns the canonical response shapes handed to
// downstream clients. Inputs are guaranteed well-formed by the core:
// points sorted ascending, deduplicated, timestamps in milliseconds.
// Prices are in [0,1] on the forecast and Polymarket paths; the Kalshi
// trade-tick fallback carries the upstream cent values through unscaled.
package normalize

import (
	"encoding/json"
	"fmt"

	"github.com/datavents/datavents/internal/history"
	"github.com/datavents/datavents/internal/stream"
	"github.com/datavents/datavents/internal/vendor"
)

// HistoryResponse is the canonical shape of a reconstructed price series.
type HistoryResponse struct {
	Provider     string          `json:"provider"`
	Identifiers  map[string]any  `json:"identifiers"`
	Start        int64           `json:"start"`
	End          int64           `json:"end"`
	Interval     int64           `json:"interval"`
	Points       []history.Point `json:"points"`
	PolyInterval string          `json:"poly_interval,omitempty"`
}

// MarketHistory assembles the canonical history response.
func MarketHistory(v vendor.Vendor, identifiers map[string]any, win history.Window, points []history.Point, polyInterval string) *HistoryResponse {
	if points == nil {
		points = []history.Point{}
	}
	return &HistoryResponse{
		Provider:     string(v),
		Identifiers:  identifiers,
		Start:        win.Start,
		End:          win.End,
		Interval:     win.Interval,
		Points:       points,
		PolyInterval: polyInterval,
	}
}

// LiveEvent is the envelope a relayed upstream event is delivered in. The
// vendor-native payload is carried verbatim under data.
type LiveEvent struct {
	Vendor    string          `json:"vendor"`
	EventType string          `json:"event_type"`
	TS        int64           `json:"ts"`
	Data      json.RawMessage `json:"data"`
}

// EventPayload serializes one live event for the downstream connection.
func EventPayload(ev stream.Event) ([]byte, error) {
	out, err := json.Marshal(LiveEvent{
		Vendor:    string(ev.Vendor),
		EventType: ev.EventType,
		TS:        ev.ReceivedAt.UnixMilli(),
		Data:      ev.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't serialize event: %w", err)
	}
	return out, nil
}
