package inference

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const maxResponseBytes = 1 << 20

// HTTPConfig configures the plain HTTP invoker. URLTemplate must contain
// {endpoint}, which is replaced by the path-escaped endpoint name.
type HTTPConfig struct {
	URLTemplate  string
	Timeout      time.Duration
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

func (c HTTPConfig) Validate() error {
	if !strings.Contains(c.URLTemplate, "{endpoint}") {
		return errors.New("inference url template must contain {endpoint}")
	}
	if _, err := url.Parse(strings.ReplaceAll(c.URLTemplate, "{endpoint}", "x")); err != nil {
		return fmt.Errorf("inference url template: %w", err)
	}
	if c.TokenURL != "" && (c.ClientID == "" || c.ClientSecret == "") {
		return errors.New("inference oauth client id and secret are required with a token url")
	}
	return nil
}

// HTTPInvoker posts CSV rows to a self-hosted model server, optionally
// authenticating with an OAuth2 client-credentials token.
type HTTPInvoker struct {
	urlTemplate string
	client      *http.Client
}

func NewHTTPInvoker(ctx context.Context, cfg HTTPConfig, base *http.Client) (*HTTPInvoker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if base == nil {
		base = &http.Client{}
	}
	client := base
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		client = cc.Client(context.WithValue(ctx, oauth2.HTTPClient, base))
	}
	if cfg.Timeout > 0 {
		c := *client
		c.Timeout = cfg.Timeout
		client = &c
	}
	return &HTTPInvoker{urlTemplate: cfg.URLTemplate, client: client}, nil
}

func (h *HTTPInvoker) Invoke(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	target := strings.ReplaceAll(h.urlTemplate, "{endpoint}", url.PathEscape(endpoint))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", ContentTypeCSV)
	req.Header.Set("Accept", "text/csv, application/json;q=0.9, */*;q=0.1")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoke endpoint %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("invoke endpoint %s: status %d: %s", endpoint, resp.StatusCode, truncate(strings.TrimSpace(string(body)), 256))
	}
	return body, nil
}
