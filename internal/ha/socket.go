package ha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SocketClient holds a persistent websocket session with core. Registry
// queries and template rendering are only available over the websocket API.
type SocketClient struct {
	url   string
	token string
	log   *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	nextID  int64
	pending map[int64]chan socketResult
}

type socketMessage struct {
	ID          int64  `json:"id,omitempty"`
	Type        string `json:"type"`
	AccessToken string `json:"access_token,omitempty"`
	Template    string `json:"template,omitempty"`
}

type socketResult struct {
	payload json.RawMessage
	err     error
}

type socketEnvelope struct {
	ID      int64           `json:"id"`
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Event   json.RawMessage `json:"event"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewSocketClient returns an unconnected client for the websocket API at the
// given core base URL (http scheme; converted to ws on dial).
func NewSocketClient(base, token string, log *zap.Logger) *SocketClient {
	if log == nil {
		log = zap.NewNop()
	}
	wsURL := strings.Replace(base, "http", "ws", 1) + "/api/websocket"
	return &SocketClient{
		url:     wsURL,
		token:   token,
		log:     log,
		pending: make(map[int64]chan socketResult),
	}
}

// Connect dials and authenticates, retrying with exponential backoff until
// the context expires. Safe to call when already connected.
func (s *SocketClient) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	conn, err := backoff.Retry(ctx, func() (*websocket.Conn, error) {
		c, err := s.dial(ctx)
		if err != nil {
			s.log.Warn("websocket connect failed, retrying", zap.Error(err))
		}
		return c, err
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(2*time.Minute),
	)
	if err != nil {
		return fmt.Errorf("connect websocket: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	go s.readLoop(conn)
	s.log.Info("websocket connected", zap.String("url", s.url))
	return nil
}

// dial performs one connection attempt including the auth handshake.
func (s *SocketClient) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, s.url, http.Header{})
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	// server speaks first: auth_required, then we answer with the token
	var hello socketEnvelope
	if err := conn.ReadJSON(&hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read auth_required: %w", err)
	}
	if hello.Type != "auth_required" {
		conn.Close()
		return nil, fmt.Errorf("unexpected greeting %q", hello.Type)
	}
	if err := conn.WriteJSON(socketMessage{Type: "auth", AccessToken: s.token}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send auth: %w", err)
	}
	var verdict socketEnvelope
	if err := conn.ReadJSON(&verdict); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read auth result: %w", err)
	}
	if verdict.Type != "auth_ok" {
		conn.Close()
		return nil, backoff.Permanent(fmt.Errorf("authentication rejected: %s", verdict.Type))
	}
	return conn, nil
}

// readLoop dispatches responses to their waiting callers until the
// connection drops, then fails everything still pending.
func (s *SocketClient) readLoop(conn *websocket.Conn) {
	for {
		var env socketEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			s.teardown(conn, err)
			return
		}
		if env.Type != "result" {
			continue
		}

		s.mu.Lock()
		ch, ok := s.pending[env.ID]
		if ok {
			delete(s.pending, env.ID)
		}
		s.mu.Unlock()
		if !ok {
			continue
		}

		if env.Success {
			ch <- socketResult{payload: env.Result}
		} else {
			ch <- socketResult{err: fmt.Errorf("websocket command %d: %s: %s", env.ID, env.Error.Code, env.Error.Message)}
		}
	}
}

func (s *SocketClient) teardown(conn *websocket.Conn, cause error) {
	conn.Close()
	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	for id, ch := range s.pending {
		delete(s.pending, id)
		ch <- socketResult{err: fmt.Errorf("connection lost: %w", cause)}
	}
	s.mu.Unlock()
	s.log.Warn("websocket disconnected", zap.Error(cause))
}

// Close shuts the connection down. In-flight commands fail.
func (s *SocketClient) Close() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Command sends one typed command and waits for its result. Reconnects first
// if the session is down.
func (s *SocketClient) Command(ctx context.Context, msg socketMessage) (json.RawMessage, error) {
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	conn := s.conn
	if conn == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("websocket not connected")
	}
	s.nextID++
	msg.ID = s.nextID
	ch := make(chan socketResult, 1)
	s.pending[msg.ID] = ch
	err := conn.WriteJSON(msg)
	s.mu.Unlock()
	if err != nil {
		s.mu.Lock()
		delete(s.pending, msg.ID)
		s.mu.Unlock()
		return nil, fmt.Errorf("send command %q: %w", msg.Type, err)
	}

	select {
	case res := <-ch:
		return res.payload, res.err
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.pending, msg.ID)
		s.mu.Unlock()
		return nil, ctx.Err()
	}
}

// RegistryEntry is the subset of registry fields the agent consumes.
type RegistryEntry struct {
	EntityID   string `json:"entity_id,omitempty"`
	DeviceID   string `json:"device_id,omitempty"`
	AreaID     string `json:"area_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Platform   string `json:"platform,omitempty"`
	DisabledBy string `json:"disabled_by,omitempty"`
}

// EntityRegistry lists all registered entities.
func (s *SocketClient) EntityRegistry(ctx context.Context) ([]RegistryEntry, error) {
	return s.registryList(ctx, "config/entity_registry/list")
}

// DeviceRegistry lists all registered devices.
func (s *SocketClient) DeviceRegistry(ctx context.Context) ([]RegistryEntry, error) {
	return s.registryList(ctx, "config/device_registry/list")
}

// AreaRegistry lists all areas.
func (s *SocketClient) AreaRegistry(ctx context.Context) ([]RegistryEntry, error) {
	return s.registryList(ctx, "config/area_registry/list")
}

func (s *SocketClient) registryList(ctx context.Context, command string) ([]RegistryEntry, error) {
	raw, err := s.Command(ctx, socketMessage{Type: command})
	if err != nil {
		return nil, err
	}
	var entries []RegistryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", command, err)
	}
	return entries, nil
}

// RenderTemplate evaluates a Jinja template against live state.
func (s *SocketClient) RenderTemplate(ctx context.Context, template string) (string, error) {
	raw, err := s.Command(ctx, socketMessage{Type: "render_template", Template: template})
	if err != nil {
		return "", err
	}
	var out struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		// some cores answer with the rendered string directly
		var direct string
		if jerr := json.Unmarshal(raw, &direct); jerr == nil {
			return direct, nil
		}
		return "", fmt.Errorf("decode template result: %w", err)
	}
	return out.Result, nil
}
