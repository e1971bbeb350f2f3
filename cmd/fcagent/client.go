package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jmgilman/go/errors"
)

// adminClient calls a running fcagent server. The cache lives in that
// process's memory, so cache commands cannot open it directly.
type adminClient struct {
	base   string
	token  string
	apiKey string
	http   *http.Client
}

func newAdminClient(base, token, apiKey string) *adminClient {
	return &adminClient{
		base:   strings.TrimRight(base, "/"),
		token:  token,
		apiKey: apiKey,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

type apiEnvelope struct {
	Success bool                  `json:"success"`
	Data    json.RawMessage       `json:"data"`
	Error   *errors.ErrorResponse `json:"error"`
}

// do sends body as JSON and decodes the data field of the reply into out.
func (c *adminClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CodeNetwork, "contact fcagent server")
	}
	defer resp.Body.Close()

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return errors.Wrapf(err, errors.CodeNetwork, "decode response (status %d)", resp.StatusCode)
	}
	if !env.Success {
		if env.Error != nil {
			return errors.New(errors.ErrorCode(env.Error.Code), env.Error.Message)
		}
		return errors.Newf(errors.CodeUnknown, "request failed with status %d", resp.StatusCode)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
