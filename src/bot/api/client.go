// Package api is the bot's and verification service's client for the
// backend HTTP API. Failures carry juju error kinds matching the status.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/juju/errors"

	"github.com/stake-plus/cardano-gov-sentiment/src/config"
	"github.com/stake-plus/cardano-gov-sentiment/src/webclient"
)

const maxErrorBody = 4 << 10

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(cfg config.Backend) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		http:    webclient.NewDefault(cfg.Timeout),
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return errors.Trace(err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return errors.Trace(err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Annotatef(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(method, path, resp.StatusCode, raw)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Annotatef(err, "decode %s %s", method, path)
	}
	return nil
}

func statusError(method, path string, status int, raw []byte) error {
	var eb errorBody
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &eb) == nil && eb.Message != "" {
		msg = eb.Message
	}
	cause := fmt.Errorf("%s %s: status %d: %s", method, path, status, msg)
	switch status {
	case http.StatusBadRequest:
		return errors.NewNotValid(cause, "")
	case http.StatusUnauthorized:
		return errors.NewUnauthorized(cause, "")
	case http.StatusForbidden:
		return errors.NewForbidden(cause, "")
	case http.StatusNotFound:
		return errors.NewNotFound(cause, "")
	case http.StatusConflict:
		return errors.NewAlreadyExists(cause, "")
	}
	return cause
}
