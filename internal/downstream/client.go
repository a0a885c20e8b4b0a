// Package downstream wraps the console's outbound calls to the catalog
// and storage services, attaching forged credentials and translating
// transport failures into the domain error taxonomy.
package downstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/opendatanode/manager/internal/core/domain"
	"github.com/opendatanode/manager/internal/security/token"
)

// Downstream service names, used for key selection, client_id lookup and
// operator-facing error messages.
const (
	ServiceCatalog = "catalog"
	ServiceStorage = "storage"
)

const defaultTimeout = 10 * time.Second

// Client calls one downstream service with bearer credentials from the
// forge. Every transport-level failure is remapped before it can reach a
// handler: raw connection errors never leak to the console user.
type Client struct {
	service   string
	baseURL   string
	probePath string
	forge     *token.Forge
	httpc     *http.Client
	log       zerolog.Logger
}

// NewClient builds a Client for the named service. probePath is the
// endpoint returning the service's externally reachable base URL.
func NewClient(service, baseURL, probePath string, forge *token.Forge, log zerolog.Logger) *Client {
	return &Client{
		service:   service,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		probePath: probePath,
		forge:     forge,
		httpc:     &http.Client{Timeout: defaultTimeout},
		log:       log.With().Str("service", service).Logger(),
	}
}

// Service returns the downstream service name.
func (c *Client) Service() string { return c.service }

// BaseURL returns the configured base URL of the service.
func (c *Client) BaseURL() string { return c.baseURL }

// PublicURL asks the service for its self-reported public base URL.
func (c *Client) PublicURL(ctx context.Context) (string, error) {
	body, err := c.do(ctx, http.MethodGet, c.probePath, nil, token.Scope{})
	if err != nil {
		return "", err
	}
	url := strings.TrimSpace(strings.Trim(string(body), `"`))
	if url == "" {
		return "", &domain.UnreachableError{Service: c.service, Err: errors.New("empty public URL")}
	}
	return url, nil
}

// GetJSON performs an authenticated GET and decodes the JSON response.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	body, err := c.do(ctx, http.MethodGet, path, nil, token.Scope{})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &domain.UnreachableError{Service: c.service, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return nil
}

// PostJSON performs an authenticated POST of a JSON payload and decodes
// the JSON response into out when non-nil.
func (c *Client) PostJSON(ctx context.Context, path string, payload, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, path, bytes.NewReader(raw), token.Scope{})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &domain.UnreachableError{Service: c.service, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return nil
}

// Passthrough relays a console request to the downstream service with a
// credential narrowed to this exact method/URL pair, returning the raw
// response body and status.
func (c *Client) Passthrough(ctx context.Context, method, path string, body io.Reader) ([]byte, int, error) {
	url := c.baseURL + ensureLeadingSlash(path)
	out, err := c.doURL(ctx, method, url, body, token.Scope{Method: method, URL: url})
	if err != nil {
		var de *domain.DownstreamError
		if errors.As(err, &de) {
			return []byte(de.Message), de.Status, nil
		}
		return nil, 0, err
	}
	return out, http.StatusOK, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, scope token.Scope) ([]byte, error) {
	return c.doURL(ctx, method, c.baseURL+ensureLeadingSlash(path), body, scope)
}

func (c *Client) doURL(ctx context.Context, method, url string, body io.Reader, scope token.Scope) ([]byte, error) {
	cred, err := c.forge.ServiceCredential(c.service, scope)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", c.service, err)
	}
	req.Header.Set("Authorization", "Bearer "+cred)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpc.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("url", url).Msg("downstream call failed")
		return nil, c.mapTransportError(err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &domain.UnreachableError{Service: c.service, Err: err}
	}

	if res.StatusCode == http.StatusBadGateway || res.StatusCode == http.StatusServiceUnavailable {
		return nil, &domain.UnreachableError{Service: c.service, Err: fmt.Errorf("status %d", res.StatusCode)}
	}
	if res.StatusCode >= 400 {
		return nil, &domain.DownstreamError{
			Service: c.service,
			Status:  res.StatusCode,
			Message: downstreamMessage(raw),
		}
	}
	return raw, nil
}

// mapTransportError folds every connection-level failure into a 503
// naming the target service.
func (c *Client) mapTransportError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &domain.UnreachableError{Service: c.service, Err: err}
	}
	return &domain.UnreachableError{Service: c.service, Err: err}
}

func downstreamMessage(raw []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}
	return strings.TrimSpace(string(raw))
}

func ensureLeadingSlash(path string) string {
	if path == "" || path[0] != '/' {
		return "/" + path
	}
	return path
}
