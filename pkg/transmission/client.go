// Package transmission is a small Transmission RPC client covering what the
// reconciler needs: listing torrents and removing them.
package transmission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	perrors "github.com/mrmachine/transmission-process-torrents/pkg/errors"
	"github.com/mrmachine/transmission-process-torrents/pkg/logging"
	"github.com/mrmachine/transmission-process-torrents/pkg/types"
)

const (
	// SessionHeader is the header name for Transmission CSRF protection
	SessionHeader = "X-Transmission-Session-Id"

	// MaxRetries is the maximum number of retry attempts
	MaxRetries = 3

	// DefaultTimeout is the default HTTP timeout
	DefaultTimeout = 30 * time.Second

	// DefaultRPCPath is where Transmission serves RPC unless configured otherwise
	DefaultRPCPath = "/transmission/rpc"

	// DefaultBackoff is the delay before the first retry; it doubles on each attempt
	DefaultBackoff = time.Second
)

// torrentFields are requested from torrent-get.
var torrentFields = []string{
	"downloadDir",
	"id",
	"name",
	"percentDone",
	"secondsSeeding",
	"uploadRatio",
}

// Options configures a Client.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	RPCPath  string
	Timeout  time.Duration
	Backoff  time.Duration

	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
	// Clock paces retries. Defaults to the real clock.
	Clock clockwork.Clock
}

// Client is a client for Transmission RPC API
type Client struct {
	address    string
	rpcURL     string
	httpClient *http.Client
	sessionID  string
	username   string
	password   string
	backoff    time.Duration
	clock      clockwork.Clock
	logger     zerolog.Logger
}

type rpcRequest struct {
	Method    string      `json:"method"`
	Arguments interface{} `json:"arguments,omitempty"`
}

type rpcResponse struct {
	Result    string          `json:"result"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type torrent struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	DownloadDir    string  `json:"downloadDir"`
	PercentDone    float64 `json:"percentDone"`
	SecondsSeeding int64   `json:"secondsSeeding"`
	UploadRatio    float64 `json:"uploadRatio"`
}

// New creates a new Transmission RPC client
func New(opts Options) *Client {
	rpcPath := opts.RPCPath
	if rpcPath == "" {
		rpcPath = DefaultRPCPath
	}
	if !strings.HasPrefix(rpcPath, "/") {
		rpcPath = "/" + rpcPath
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	address := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	return &Client{
		address:    address,
		rpcURL:     "http://" + address + rpcPath,
		httpClient: httpClient,
		username:   opts.Username,
		password:   opts.Password,
		backoff:    backoff,
		clock:      clock,
		logger:     logging.GetLogger("transmission").With().Str("address", address).Logger(),
	}
}

// Address returns host:port of the Transmission daemon.
func (c *Client) Address() string {
	return c.address
}

// ListItems returns every torrent the daemon tracks.
func (c *Client) ListItems(ctx context.Context) ([]types.TrackedItem, error) {
	var args struct {
		Torrents []torrent `json:"torrents"`
	}
	if err := c.request(ctx, "torrent-get", map[string]interface{}{"fields": torrentFields}, &args); err != nil {
		return nil, err
	}

	items := make([]types.TrackedItem, 0, len(args.Torrents))
	for _, t := range args.Torrents {
		items = append(items, types.TrackedItem{
			ID:             t.ID,
			Name:           t.Name,
			DownloadDir:    t.DownloadDir,
			PercentDone:    t.PercentDone,
			SecondsSeeding: t.SecondsSeeding,
			UploadRatio:    t.UploadRatio,
		})
	}
	c.logger.Debug().Int("torrents", len(items)).Msg("Fetched torrents")
	return items, nil
}

// RemoveItem removes a torrent, optionally deleting its downloaded data.
func (c *Client) RemoveItem(ctx context.Context, id int64, deleteLocalData bool) error {
	args := map[string]interface{}{
		"ids":               []int64{id},
		"delete-local-data": deleteLocalData,
	}
	if err := c.request(ctx, "torrent-remove", args, nil); err != nil {
		return err
	}
	c.logger.Debug().Int64("id", id).Bool("delete_local_data", deleteLocalData).Msg("Removed torrent")
	return nil
}

// request makes an RPC request to Transmission with retry logic. A 409
// carries a fresh session id and is retried straight away; transport
// failures are retried with exponential backoff.
func (c *Client) request(ctx context.Context, method string, arguments interface{}, out interface{}) error {
	body, err := json.Marshal(rpcRequest{Method: method, Arguments: arguments})
	if err != nil {
		return perrors.Wrapf(err, perrors.ErrInternal, "failed to marshal %s request", method)
	}

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		status, rpcResp, err := c.do(ctx, body)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			if attempt < MaxRetries {
				delay := c.backoff * time.Duration(1<<attempt)
				c.logger.Debug().Err(err).Str("method", method).Dur("retry_in", delay).Msg("Transmission request failed, retrying")
				select {
				case <-ctx.Done():
				case <-c.clock.After(delay):
				}
				continue
			}
			break
		}
		lastErr = nil

		switch {
		case status == http.StatusConflict:
			if c.sessionID == "" {
				return perrors.Newf(perrors.ErrRPC, "session expired but no new ID provided")
			}
			c.logger.Trace().Msg("Transmission session id refreshed")
			continue
		case status == http.StatusUnauthorized:
			return perrors.Newf(perrors.ErrAuth, "unauthorized by Transmission at %s - invalid credentials", c.address)
		case status != http.StatusOK:
			return perrors.Newf(perrors.ErrRPC, "HTTP error from Transmission: %d - %s", status, rpcResp.Result)
		case rpcResp.Result != "success":
			return perrors.Newf(perrors.ErrRPC, "%s failed: %s", method, rpcResp.Result)
		}

		if out != nil && len(rpcResp.Arguments) > 0 {
			if err := json.Unmarshal(rpcResp.Arguments, out); err != nil {
				return perrors.Wrapf(err, perrors.ErrRPC, "failed to decode %s response", method)
			}
		}
		return nil
	}

	if lastErr == nil {
		return perrors.Newf(perrors.ErrRPC, "%s failed - max retries exceeded", method)
	}
	return perrors.Wrapf(lastErr, perrors.ErrConnection, "Unable to connect to Transmission at %s", c.address).
		WithDetail("address", c.address)
}

// do sends one request. Non-200 responses are returned with their status
// and the body text in Result; only transport failures are errors.
func (c *Client) do(ctx context.Context, body []byte) (int, *rpcResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.sessionID != "" {
		req.Header.Set(SessionHeader, c.sessionID)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusConflict {
		c.sessionID = resp.Header.Get(SessionHeader)
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, &rpcResponse{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, &rpcResponse{Result: strings.TrimSpace(string(text))}, nil
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return resp.StatusCode, &rpcResponse{Result: "invalid response: " + err.Error()}, nil
	}
	return resp.StatusCode, &rpcResp, nil
}
