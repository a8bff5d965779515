// Package ha talks to the Home Assistant core API: REST for states,
// services and config validation, and a persistent websocket for registry
// queries. When running as an add-on the supervisor proxies both under
// http://supervisor/core.
package ha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	stateCacheKey = "states"
	stateCacheTTL = 5 * time.Second
)

// State is one entity state as reported by /api/states.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

// ConfigCheck is the result of /api/config/core/check_config.
type ConfigCheck struct {
	Result string `json:"result"`
	Errors string `json:"errors"`
}

// Valid reports whether core accepted the configuration.
func (c ConfigCheck) Valid() bool { return c.Result == "valid" }

// Client is the REST client. Entity states are cached briefly so bursts of
// agent queries do not hammer core.
type Client struct {
	base  string
	token string
	http  *http.Client
	cache *gocache.Cache
	log   *zap.Logger
}

// NewClient returns a REST client for the core API at base, authenticating
// with a long-lived or supervisor token.
func NewClient(base, token string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
		cache: gocache.New(stateCacheTTL, time.Minute),
		log:   log,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, payload)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

// Ping verifies the API is reachable and the token is accepted.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/", nil, nil)
}

// GetStates returns all entity states, served from a short-lived cache.
func (c *Client) GetStates(ctx context.Context) ([]State, error) {
	if cached, ok := c.cache.Get(stateCacheKey); ok {
		return cached.([]State), nil
	}
	var states []State
	if err := c.do(ctx, http.MethodGet, "/api/states", nil, &states); err != nil {
		return nil, err
	}
	c.cache.SetDefault(stateCacheKey, states)
	return states, nil
}

// GetState returns one entity's state, bypassing the cache for freshness.
func (c *Client) GetState(ctx context.Context, entityID string) (*State, error) {
	var s State
	if err := c.do(ctx, http.MethodGet, "/api/states/"+entityID, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CallService invokes a service like light.turn_on. The state cache is
// dropped because the call likely changed something.
func (c *Client) CallService(ctx context.Context, domain, service string, data map[string]any) error {
	path := fmt.Sprintf("/api/services/%s/%s", domain, service)
	if err := c.do(ctx, http.MethodPost, path, data, nil); err != nil {
		return err
	}
	c.cache.Delete(stateCacheKey)
	c.log.Info("service called", zap.String("domain", domain), zap.String("service", service))
	return nil
}

// CheckConfig asks core to validate the current configuration without
// applying it.
func (c *Client) CheckConfig(ctx context.Context) (ConfigCheck, error) {
	var res ConfigCheck
	err := c.do(ctx, http.MethodPost, "/api/config/core/check_config", nil, &res)
	return res, err
}

// Restart restarts core. The configuration should be checked first; a boot
// loop from a broken config is exactly what the versioning store exists to
// recover from, not to cause.
func (c *Client) Restart(ctx context.Context) error {
	c.log.Warn("restarting home assistant core")
	return c.CallService(ctx, "homeassistant", "restart", nil)
}

// ReloadCoreConfig reloads YAML-reloadable domains without a full restart.
func (c *Client) ReloadCoreConfig(ctx context.Context) error {
	return c.CallService(ctx, "homeassistant", "reload_core_config", nil)
}
