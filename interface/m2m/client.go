// Package m2m is a client of the USGS EROS Machine-to-Machine JSON API
// (https://m2m.cr.usgs.gov/api/docs/json/).
package m2m

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/avalanchegeo/eros-ingester/service"
	"github.com/avalanchegeo/eros-ingester/service/log"
	"go.uber.org/zap"
)

// DefaultServiceURL is the stable endpoint of the M2M API
const DefaultServiceURL = "https://m2m.cr.usgs.gov/api/api/json/stable/"

// authHeader carries the session token on every authenticated call
const authHeader = "X-Auth-Token"

// State of the session. Transitions are linear:
// Unauthenticated -> Authenticated -> LoggedOut.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateLoggedOut
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "Unauthenticated"
	case StateAuthenticated:
		return "Authenticated"
	case StateLoggedOut:
		return "LoggedOut"
	}
	return "Unknown"
}

// Client issues requests to the M2M API on behalf of a single session.
// It is not safe for concurrent use: the workflow is strictly sequential.
type Client struct {
	serviceURL string
	httpClient *http.Client
	token      string
	state      State
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http client (e.g. to set a timeout)
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates an unauthenticated Client for the given service URL
func NewClient(serviceURL string, opts ...Option) *Client {
	if serviceURL == "" {
		serviceURL = DefaultServiceURL
	}
	c := &Client{
		serviceURL: serviceURL,
		httpClient: http.DefaultClient,
		state:      StateUnauthenticated,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current session state
func (c *Client) State() State {
	return c.state
}

// envelope is the response wrapper common to every M2M operation
type envelope struct {
	ErrorCode    *string         `json:"errorCode"`
	ErrorMessage string          `json:"errorMessage"`
	Data         json.RawMessage `json:"data"`
}

// checkState rejects an operation issued out of order
func (c *Client) checkState(operation string, expected State) error {
	if c.state != expected {
		return fmt.Errorf("m2m.%s: session is %s, expecting %s", operation, c.state, expected)
	}
	return nil
}

// sendRequest POSTs the payload to {serviceURL}{operation} and unwraps the
// response envelope. The session token is attached unless the session is
// unauthenticated (only login is issued in that state).
//
// Any transport-level problem (unreachable service, 400/401/404 status,
// non-null errorCode, unparsable body) is a fatal error: it is logged with
// its context and aborts the whole run. There is no partial-success path.
func (c *Client) sendRequest(ctx context.Context, operation string, payload interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("m2m.%s.Marshal: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serviceURL+operation, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("m2m.%s.NewRequest: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set(authHeader, c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fatal(ctx, operation, fmt.Errorf("m2m.%s: %w", operation, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fatal(ctx, operation, fmt.Errorf("m2m.%s.ReadAll: %w", operation, err))
	}

	output := envelope{}
	if err := json.Unmarshal(raw, &output); err != nil {
		return nil, c.fatal(ctx, operation, fmt.Errorf("m2m.%s.Unmarshal [status %d]: %w", operation, resp.StatusCode, err))
	}
	if output.ErrorCode != nil {
		return nil, c.fatal(ctx, operation, fmt.Errorf("m2m.%s: %s - %s", operation, *output.ErrorCode, output.ErrorMessage))
	}
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound:
		return nil, c.fatal(ctx, operation, fmt.Errorf("m2m.%s: %s", operation, resp.Status))
	}

	return output.Data, nil
}

// fatal logs the failure and marks the error as run-terminal
func (c *Client) fatal(ctx context.Context, operation string, err error) error {
	log.Logger(ctx).Warn("m2m request failed", zap.String("operation", operation), zap.Error(err))
	return service.MakeFatal(err)
}

// Login opens the session: the returned token authenticates every subsequent call
func (c *Client) Login(ctx context.Context, username, password string) error {
	if err := c.checkState("login", StateUnauthenticated); err != nil {
		return err
	}

	payload := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{Username: username, Password: password}

	data, err := c.sendRequest(ctx, "login", payload)
	if err != nil {
		return err
	}

	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return service.MakeFatal(fmt.Errorf("m2m.login.Unmarshal token: %w", err))
	}
	c.token = token
	c.state = StateAuthenticated
	return nil
}

// Logout invalidates the session token server-side. It must be the last
// operation of a run; the session cannot be reused afterwards.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.checkState("logout", StateAuthenticated); err != nil {
		return err
	}

	_, err := c.sendRequest(ctx, "logout", struct{}{})
	c.token = ""
	c.state = StateLoggedOut
	if err != nil {
		return fmt.Errorf("Logout.%w", err)
	}
	return nil
}
