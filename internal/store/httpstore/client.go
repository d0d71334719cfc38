// Package httpstore is a store.VersionedStore backed by the pokerbank HTTP blob API.
package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/jason-s-yu/pokerbank/internal/handlers"
	"github.com/jason-s-yu/pokerbank/internal/models"
	"github.com/jason-s-yu/pokerbank/internal/store"
)

const defaultTimeout = 5 * time.Second

// Client talks to a blob API server. It implements store.VersionedStore and store.Watcher.
type Client struct {
	baseURL string
	http    *http.Client

	// HostToken authorizes Delete. It is set by CreateGame.
	HostToken string
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

func (c *Client) gameURL(code string) string {
	return c.baseURL + "/games/" + code
}

// CreateGame asks the server to create a game hosted by host and remembers the returned host
// token. A nil initialMoney uses the server's default.
func (c *Client) CreateGame(ctx context.Context, host string, initialMoney *int64) (handlers.CreateGameResponse, error) {
	body, err := json.Marshal(handlers.CreateGameRequest{Host: host, InitialMoney: initialMoney})
	if err != nil {
		return handlers.CreateGameResponse{}, err
	}
	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/games", body, nil)
	if err != nil {
		return handlers.CreateGameResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return handlers.CreateGameResponse{}, statusError(resp)
	}
	var out handlers.CreateGameResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return handlers.CreateGameResponse{}, fmt.Errorf("decode create response: %w", err)
	}
	c.HostToken = out.HostToken
	return out, nil
}

func (c *Client) Get(ctx context.Context, code string) (models.GameState, error) {
	resp, err := c.do(ctx, http.MethodGet, c.gameURL(code), nil, nil)
	if err != nil {
		return models.GameState{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.GameState{}, statusError(resp)
	}
	var state models.GameState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return models.GameState{}, fmt.Errorf("corrupt snapshot for %s: %w", code, err)
	}
	return state, nil
}

func (c *Client) Put(ctx context.Context, state models.GameState) error {
	return c.put(ctx, state, nil)
}

func (c *Client) PutIfVersion(ctx context.Context, state models.GameState, expected int64) error {
	h := http.Header{}
	if expected == 0 {
		h.Set("If-None-Match", "*")
	} else {
		h.Set("If-Match", strconv.FormatInt(expected, 10))
	}
	return c.put(ctx, state, h)
}

func (c *Client) put(ctx context.Context, state models.GameState, h http.Header) error {
	body, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPut, c.gameURL(state.GameCode), body, h)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, code string) error {
	h := http.Header{}
	if c.HostToken != "" {
		h.Set("Authorization", "Bearer "+c.HostToken)
	}
	resp, err := c.do(ctx, http.MethodDelete, c.gameURL(code), nil, h)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return statusError(resp)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte, h http.Header) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, err
	}
	for k, vs := range h {
		req.Header[k] = vs
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}
	return resp, nil
}

// statusError maps an unexpected response onto the store error taxonomy.
func statusError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return store.ErrNotFound
	case resp.StatusCode == http.StatusPreconditionFailed:
		return store.ErrConflict
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: server returned %d %s", store.ErrUnavailable, resp.StatusCode, body.Error)
	default:
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
	}
}

// Watch opens the game's websocket change stream. A deleted game is reported as version 0.
func (c *Client) Watch(ctx context.Context, code string) (<-chan int64, error) {
	wsURL := "ws" + strings.TrimPrefix(c.gameURL(code), "http") + "/ws"
	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		Subprotocols: []string{handlers.Subprotocol},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}

	out := make(chan int64, 8)
	go func() {
		defer close(out)
		defer conn.Close(websocket.StatusNormalClosure, "")
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var ev handlers.SnapshotEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				continue
			}
			var v int64
			switch ev.Type {
			case handlers.EventSnapshotUpdated:
				v = ev.Version
			case handlers.EventSnapshotDeleted:
				v = 0
			default:
				continue
			}
			select {
			case out <- v:
			default:
			}
			if ev.Type == handlers.EventSnapshotDeleted {
				return
			}
		}
	}()
	return out, nil
}

var _ interface {
	store.VersionedStore
	store.Watcher
} = (*Client)(nil)
