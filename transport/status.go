package transport

import (
	"context"
	"fmt"
	"net/url"
)

// AccountStatus asks the bridge whether the representative's session is authorized.
func (c *Client) AccountStatus(ctx context.Context, representativeID string) (AccountStatus, error) {
	endpoint := fmt.Sprintf("%s/v1/accounts/%s/status", c.config.BridgeURL, url.PathEscape(representativeID))

	var status AccountStatus
	if err := c.getJSON(ctx, endpoint, &status); err != nil {
		return AccountStatus{}, fmt.Errorf("transport: account status: %w", err)
	}
	return status, nil
}
