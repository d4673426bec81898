package resolve

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/datavents/datavents/internal/payload"
	"github.com/datavents/datavents/internal/polymarket/clob"
	"github.com/datavents/datavents/internal/polymarket/gamma"
	"github.com/datavents/datavents/pkg/hashset"
)

// Key spellings under which Polymarket token ids hide. Matched lowercased.
var (
	singularTokenKeys = hashset.SetFromSlice([]string{
		"clob_token_id", "clobtokenid", "token_id", "tokenid", "asset_id", "assetid",
	})
	pluralTokenKeys = hashset.SetFromSlice([]string{
		"clob_token_ids", "clobtokenids", "token_ids", "tokenids", "asset_ids", "assetsids", "assetids",
	})
)

// FindTokenIDs recursively collects clob/token/asset ids from an arbitrary
// decoded JSON value. It accepts native lists, JSON-encoded string lists,
// and both camelCase and snake_case key spellings, deduplicating while
// preserving first-seen order.
func FindTokenIDs(obj any) []string {
	var out []string
	collectTokenIDs(obj, &out)
	return payload.DedupePreserve(out)
}

func collectTokenIDs(obj any, out *[]string) {
	switch v := obj.(type) {
	case map[string]any:
		for key, value := range v {
			lower := strings.ToLower(key)
			if singularTokenKeys.Has(lower) {
				switch id := value.(type) {
				case string:
					*out = append(*out, id)
				case float64:
					*out = append(*out, strconv.FormatInt(int64(id), 10))
				case json.Number:
					*out = append(*out, id.String())
				}
			}
			if pluralTokenKeys.Has(lower) {
				*out = append(*out, stringsFromMaybeJSONList(value)...)
			}
			collectTokenIDs(value, out)
		}
	case []any:
		for _, item := range v {
			collectTokenIDs(item, out)
		}
	}
}

// stringsFromMaybeJSONList accepts a native list or a JSON-string list.
// The string form is the gamma API's double encoding, so its TokenIDs
// unmarshaller does the decoding.
func stringsFromMaybeJSONList(value any) []string {
	switch v := value.(type) {
	case []any:
		return payload.CoerceStringList(v)
	case string:
		s := strings.TrimSpace(v)
		if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
			var ids gamma.TokenIDs
			if err := json.Unmarshal([]byte(s), &ids); err == nil {
				return ids
			}
		}
	}
	return nil
}

// PolymarketResolver resolves clob token ids for subscribe requests that
// name a market but carry no asset ids.
type PolymarketResolver struct {
	gamma *gamma.Client
	clob  *clob.Client
	log   *slog.Logger
}

func NewPolymarketResolver(g *gamma.Client, c *clob.Client, log *slog.Logger) *PolymarketResolver {
	return &PolymarketResolver{
		gamma: g,
		clob:  c,
		log:   log.With("component", "polymarket_resolver"),
	}
}

// ResolveAssetIDs discovers token ids for the given subscribe payload and
// market object. It first scans both objects, then falls back to fetching
// the gamma snapshot by id or slug, then to the clob market by condition
// id. Best-effort: failures yield nil.
func (r *PolymarketResolver) ResolveAssetIDs(ctx context.Context, body, market map[string]any) []string {
	if ids := FindTokenIDs(market); len(ids) > 0 {
		return ids
	}
	if ids := FindTokenIDs(body); len(ids) > 0 {
		return ids
	}

	if snapshot := r.fetchSnapshot(ctx, body, market); snapshot != nil {
		if ids := FindTokenIDs(snapshot); len(ids) > 0 {
			return ids
		}
	}

	return r.fromConditionID(ctx, body, market)
}

// fromConditionID asks the clob API for the market's outcome tokens when
// the payload names a condition id.
func (r *PolymarketResolver) fromConditionID(ctx context.Context, body, market map[string]any) []string {
	conditionID := payload.FirstString([]string{"condition_id", "conditionId"}, market, body)
	if conditionID == "" {
		return nil
	}

	snapshot, err := r.clob.GetMarketByConditionID(ctx, conditionID)
	if err != nil {
		r.log.Debug("market lookup by condition id failed", "condition_id", conditionID, "error", err)
		return nil
	}

	ids := make([]string, 0, len(snapshot.Tokens))
	for _, token := range snapshot.Tokens {
		if token.TokenID != "" {
			ids = append(ids, token.TokenID)
		}
	}
	return payload.DedupePreserve(ids)
}

func (r *PolymarketResolver) fetchSnapshot(ctx context.Context, body, market map[string]any) map[string]any {
	if id, ok := payload.FirstInt([]string{"id", "market_id", "marketId"}, market, body); ok {
		snapshot, err := r.gamma.GetMarketByID(ctx, id)
		if err == nil {
			return snapshot
		}
		r.log.Debug("market lookup by id failed", "id", id, "error", err)
	}

	if slug := payload.FirstString([]string{"slug", "market_slug", "marketSlug"}, market, body); slug != "" {
		snapshot, err := r.gamma.GetMarketBySlug(ctx, slug)
		if err == nil {
			return snapshot
		}
		r.log.Debug("market lookup by slug failed", "slug", slug, "error", err)
	}

	return nil
}
