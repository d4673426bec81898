package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/datavents/datavents/internal/history"
	"github.com/datavents/datavents/internal/kalshi/elections"
	"github.com/datavents/datavents/internal/normalize"
	"github.com/datavents/datavents/internal/payload"
	"github.com/datavents/datavents/internal/search"
	"github.com/datavents/datavents/internal/vendor"
)

func (s *Server) handleHealth(c *gin.Context) {
	s.log.Debug("health check")
	c.JSON(http.StatusOK, gin.H{"ok": true, "ts": time.Now().Unix()})
}

func (s *Server) handleSearch(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	limit := clamp(intQuery(c, "limit", 10), 1, 50)
	page := max(1, intQuery(c, "page", 1))
	order := search.ParseOrder(c.Query("order"))
	status := search.ParseStatus(c.Query("status"))
	excludeSports := payload.TruthyFlag(c.Query("exclude_sports"))

	var excludedCategories []string
	if excludeSports {
		excludedCategories = []string{"Sports"}
	}

	scopeReq := search.ParseScope(c.Query("kalshi_scope"))
	scopeEff := search.EffectiveScope(scopeReq, status)

	vendors := vendor.FromTokens([]string{c.DefaultQuery("provider", "all")})
	if len(vendors) == 0 {
		vendors = vendor.All()
	}

	s.log.Info("search params",
		"vendors", vendor.Strings(vendors), "order", order, "status", status, "q", q,
		"excluded_categories", strings.Join(excludedCategories, ","),
		"kalshi_scope_req", scopeReq, "kalshi_scope_eff", scopeEff,
		"limit", limit, "page", page,
	)

	results := make([]gin.H, 0, len(vendors))
	for _, v := range vendors {
		switch v {
		case vendor.Kalshi:
			hits, err := s.elections.Search(c.Request.Context(), elections.SearchOptions{
				Query:              q,
				Limit:              limit,
				Page:               page,
				OrderBy:            order.Param(),
				Status:             status.Param(),
				Scope:              string(scopeEff),
				ExcludedCategories: excludedCategories,
			})
			if err != nil {
				s.log.Warn("kalshi search failed", "error", err)
				continue
			}
			results = append(results, gin.H{"provider": string(v), "data": search.FilterByStatus(hits, status)})
		case vendor.Polymarket:
			data, err := s.gamma.Search(c.Request.Context(), q, limit, page)
			if err != nil {
				s.log.Warn("polymarket search failed", "error", err)
				continue
			}
			results = append(results, gin.H{"provider": string(v), "data": data})
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"meta": gin.H{
			"provider":            providerToken(vendors),
			"order":               string(order),
			"status":              string(status),
			"page":                page,
			"limit":               limit,
			"exclude_sports":      excludeSports,
			"excluded_categories": excludedCategories,
			"kalshi_scope":        string(scopeReq),
		},
	})
}

func (s *Server) handleSearchOptions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"providers": search.ProviderOptions(),
		"order":     search.OrderOptions(),
		"status":    search.StatusOptions(),
	})
}

func (s *Server) handleGetEvent(c *gin.Context) {
	v, ok := singleVendor(c.Query("provider"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider must be 'kalshi' or 'polymarket'"})
		return
	}

	if v == vendor.Kalshi {
		eventTicker := strings.TrimSpace(c.Query("event_ticker"))
		if eventTicker == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "event_ticker required for provider=kalshi"})
			return
		}
		withNested := payload.TruthyFlag(c.DefaultQuery("with_nested_markets", "1"))
		data, err := s.trade.GetEventRaw(c.Request.Context(), eventTicker, withNested)
		if err != nil {
			s.log.Warn("couldn't fetch kalshi event", "event_ticker", eventTicker, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"provider": "kalshi", "data": data})
		return
	}

	id, hasID := int64Query(c, "id")
	slug := strings.TrimSpace(c.Query("slug"))
	if !hasID && slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id or slug required for provider=polymarket"})
		return
	}
	data, err := s.fetchPolymarketEvent(c, id, hasID, slug)
	if err != nil {
		s.log.Warn("couldn't fetch polymarket event", "id", id, "slug", slug, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider": "polymarket", "data": data})
}

func (s *Server) handlePostEvent(c *gin.Context) {
	body := jsonBody(c)

	v, ok := singleVendor(payload.FirstString([]string{"provider"}, body))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider must be 'kalshi' or 'polymarket'"})
		return
	}

	if v == vendor.Kalshi {
		eventTicker := payload.FirstString([]string{"event_ticker", "eventId", "event_id"}, body)
		if eventTicker == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "event_ticker required for provider=kalshi"})
			return
		}
		withNested := payload.TruthyFlag(body["with_nested_markets"])
		data, err := s.trade.GetEventRaw(c.Request.Context(), eventTicker, withNested)
		if err != nil {
			s.log.Warn("couldn't fetch kalshi event", "event_ticker", eventTicker, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"provider": "kalshi", "data": data})
		return
	}

	id, hasID := payload.FirstInt([]string{"id", "eventId", "event_id"}, body)
	slug := payload.FirstString([]string{"slug", "eventSlug", "event_slug"}, body)
	if !hasID && slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id or slug required for provider=polymarket"})
		return
	}
	data, err := s.fetchPolymarketEvent(c, id, hasID, slug)
	if err != nil {
		s.log.Warn("couldn't fetch polymarket event", "id", id, "slug", slug, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider": "polymarket", "data": data})
}

func (s *Server) fetchPolymarketEvent(c *gin.Context, id int64, hasID bool, slug string) (map[string]any, error) {
	if hasID {
		return s.gamma.GetEventByID(c.Request.Context(), id)
	}
	return s.gamma.GetEventBySlug(c.Request.Context(), slug)
}

func (s *Server) handleGetMarket(c *gin.Context) {
	v, ok := singleVendor(c.Query("provider"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider must be 'kalshi' or 'polymarket'"})
		return
	}

	if v == vendor.Kalshi {
		ticker := strings.TrimSpace(c.Query("ticker"))
		if ticker == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ticker required for provider=kalshi"})
			return
		}
		data, err := s.trade.GetMarketRaw(c.Request.Context(), ticker)
		if err != nil {
			s.log.Warn("couldn't fetch kalshi market", "ticker", ticker, "error", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"provider": "kalshi", "data": data})
		return
	}

	id, hasID := int64Query(c, "id")
	slug := strings.TrimSpace(c.Query("slug"))
	if !hasID && slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id or slug required for provider=polymarket"})
		return
	}

	var (
		data map[string]any
		err  error
	)
	if hasID {
		data, err = s.gamma.GetMarketByID(c.Request.Context(), id)
	} else {
		data, err = s.gamma.GetMarketBySlug(c.Request.Context(), slug)
	}
	if err != nil {
		s.log.Warn("couldn't fetch polymarket market", "id", id, "slug", slug, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider": "polymarket", "data": data})
}

func (s *Server) handleMarketHistory(c *gin.Context) {
	v, ok := singleVendor(c.Query("provider"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider must be 'kalshi' or 'polymarket'"})
		return
	}

	win := history.ParseWindow(c.Query("start"), c.Query("end"), c.Query("interval"), time.Now())

	if v == vendor.Kalshi {
		ticker := strings.TrimSpace(c.Query("ticker"))
		if ticker == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ticker required for provider=kalshi"})
			return
		}
		s.kalshiHistory(c, ticker, strings.TrimSpace(c.Query("series_ticker")), strings.TrimSpace(c.Query("market_id")), win)
		return
	}

	id, hasID := int64Query(c, "id")
	slug := strings.TrimSpace(c.Query("slug"))
	if !hasID && slug == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id or slug required for provider=polymarket"})
		return
	}
	req := history.PolymarketRequest{Slug: slug}
	if hasID {
		req.ID = &id
	}
	s.polymarketHistory(c, req, win)
}

func (s *Server) handlePostHistory(c *gin.Context) {
	body := jsonBody(c)
	market := payload.AsObject(body["market"])

	v, ok := singleVendor(payload.FirstString([]string{"provider"}, body, market))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provider must be 'kalshi' or 'polymarket'"})
		return
	}

	win := history.ParseWindow(body["start"], body["end"], body["interval"], time.Now())

	if v == vendor.Kalshi {
		ticker := payload.FirstString([]string{"ticker", "market_ticker"}, market)
		if ticker == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "kalshi ticker is required in market.ticker"})
			return
		}
		seriesTicker := payload.FirstString([]string{"series_ticker", "series_id"}, market)
		marketID := payload.FirstString([]string{"vendor_market_id", "market_id"}, market)
		s.kalshiHistory(c, ticker, seriesTicker, marketID, win)
		return
	}

	req := history.PolymarketRequest{
		Market: market,
		Slug:   payload.FirstString([]string{"slug"}, market),
	}
	if id, hasID := payload.FirstInt([]string{"market_id"}, market); hasID {
		req.ID = &id
	}
	s.polymarketHistory(c, req, win)
}

func (s *Server) kalshiHistory(c *gin.Context, ticker, seriesTicker, marketID string, win history.Window) {
	bundle := s.kalshiResolver.Resolve(c.Request.Context(), ticker, seriesTicker, marketID)
	points, err := s.kalshiEngine.Reconstruct(c.Request.Context(), bundle, win)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, normalize.MarketHistory(vendor.Kalshi, bundle.Identifiers(), win, points, ""))
}

func (s *Server) polymarketHistory(c *gin.Context, req history.PolymarketRequest, win history.Window) {
	result, err := s.polymarketEngine.Reconstruct(c.Request.Context(), req, win)
	if err != nil {
		if errors.Is(err, history.ErrNoTokenID) {
			c.JSON(http.StatusNotFound, gin.H{"provider": "polymarket", "error": err.Error()})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	identifiers := map[string]any{"market_id": nil, "slug": nil, "clob_token_id": nil}
	if req.ID != nil {
		identifiers["market_id"] = *req.ID
	}
	if req.Slug != "" {
		identifiers["slug"] = req.Slug
	}
	if result.TokenID != "" {
		identifiers["clob_token_id"] = result.TokenID
	}

	polyInterval := history.ChunkStrategy
	if result.Synthetic {
		polyInterval = ""
	}
	c.JSON(http.StatusOK, normalize.MarketHistory(vendor.Polymarket, identifiers, win, result.Points, polyInterval))
}

func singleVendor(token string) (vendor.Vendor, bool) {
	v, ok := vendor.Parse(strings.TrimSpace(token))
	if !ok || vendor.IsWildcard(token) {
		return "", false
	}
	return v, true
}

func providerToken(vendors []vendor.Vendor) string {
	if len(vendors) == 1 {
		return string(vendors[0])
	}
	return "all"
}

func jsonBody(c *gin.Context) map[string]any {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		return map[string]any{}
	}
	return body
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func int64Query(c *gin.Context, key string) (int64, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func clamp(n, lo, hi int) int {
	return min(max(n, lo), hi)
}
