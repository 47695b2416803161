package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/NextMind-AI/repstats/server"
)

const requestTimeout = 30 * time.Second

var (
	// errNoContent is returned when the server answered 204.
	errNoContent = errors.New("no content")
	errBusy      = errors.New("a stats run is already in progress")
)

// apiClient talks to the HTTP API of a running server.
type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(cmd *cobra.Command) *apiClient {
	base, _ := cmd.Flags().GetString("server")
	return &apiClient{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusNoContent {
		return errNoContent
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr server.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Code != "" {
			return fmt.Errorf("%s: %s", apiErr.Error.Code, apiErr.Error.Message)
		}
		if resp.StatusCode == http.StatusConflict {
			return errBusy
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func jsonOutput(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}
