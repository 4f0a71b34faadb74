// Package hyperliquid talks to the Hyperliquid public API: the REST info
// endpoint for spot metadata and current prices, and the websocket stream
// for live mark price updates.
package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultAPIURL = "https://api.hyperliquid.xyz"
	DefaultWSURL  = "wss://api.hyperliquid.xyz/ws"

	spotMetaCacheTTL = 5 * time.Minute
)

// ErrUnknownAsset is returned when a symbol cannot be resolved to a
// tradable token.
var ErrUnknownAsset = errors.New("unknown asset")

// ErrPriceUnavailable is returned when the API has no current price for a
// token.
var ErrPriceUnavailable = errors.New("price unavailable")

type spotToken struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
}

type spotPair struct {
	Name   string `json:"name"`
	Tokens []int  `json:"tokens"`
	Index  int    `json:"index"`
}

type spotMeta struct {
	Tokens   []spotToken `json:"tokens"`
	Universe []spotPair  `json:"universe"`
}

// Client is a REST client for the Hyperliquid info endpoint. It doubles as
// the asset registry: symbols resolve to the spot pair identifier the feed
// streams prices under.
type Client struct {
	apiURL     string
	httpClient *http.Client

	metaMutex     sync.Mutex
	cachedMeta    *spotMeta
	metaFetchedAt time.Time
}

func NewClient(apiURL string) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) postInfo(ctx context.Context, request any, response any) error {
	body, err := json.Marshal(request)
	if err != nil {
		return errors.Wrap(err, "could not encode info request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/info", bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "could not build info request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "info request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("info request failed with status %d", resp.StatusCode)
	}

	return errors.Wrap(json.NewDecoder(resp.Body).Decode(response), "could not parse info response")
}

func (c *Client) fetchSpotMeta(ctx context.Context) (*spotMeta, error) {
	c.metaMutex.Lock()
	defer c.metaMutex.Unlock()

	if c.cachedMeta != nil && time.Since(c.metaFetchedAt) < spotMetaCacheTTL {
		return c.cachedMeta, nil
	}

	var meta spotMeta
	if err := c.postInfo(ctx, map[string]string{"type": "spotMeta"}, &meta); err != nil {
		return nil, err
	}

	c.cachedMeta = &meta
	c.metaFetchedAt = time.Now()
	return &meta, nil
}

// ResolveToken maps a coin symbol to the spot pair identifier it trades
// under (e.g. HYPE -> @107). The lookup finds the token index by name, then
// the pair whose base token carries that index.
func (c *Client) ResolveToken(ctx context.Context, symbol string) (string, error) {
	meta, err := c.fetchSpotMeta(ctx)
	if err != nil {
		return "", err
	}

	tokenIndex := -1
	for _, token := range meta.Tokens {
		if token.Name == symbol {
			tokenIndex = token.Index
			break
		}
	}
	if tokenIndex < 0 {
		return "", errors.Wrap(ErrUnknownAsset, symbol)
	}

	for _, pair := range meta.Universe {
		if len(pair.Tokens) > 0 && pair.Tokens[0] == tokenIndex {
			return pair.Name, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownAsset, "%s has no spot pair", symbol)
}

// LookupCurrentPrice fetches the current mid price for a token.
func (c *Client) LookupCurrentPrice(ctx context.Context, token string) (float64, error) {
	var mids map[string]string
	if err := c.postInfo(ctx, map[string]string{"type": "allMids"}, &mids); err != nil {
		return 0, err
	}

	raw, ok := mids[token]
	if !ok {
		return 0, errors.Wrap(ErrPriceUnavailable, token)
	}

	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrPriceUnavailable, "unparsable price %q for %s", raw, token)
	}
	return price, nil
}
