package transport

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog/log"
)

// MessageHistory fetches up to limit recent messages exchanged between the
// representative and the counterpart, newest first.
func (c *Client) MessageHistory(ctx context.Context, representativeID string, counterpartID int64, limit int) ([]HistoryMessage, error) {
	endpoint := fmt.Sprintf("%s/v1/accounts/%s/history/%d?limit=%d",
		c.config.BridgeURL, url.PathEscape(representativeID), counterpartID, limit)

	var resp HistoryResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("transport: message history: %w", err)
	}

	log.Debug().
		Str("representative_id", representativeID).
		Int64("counterpart_id", counterpartID).
		Int("messages", len(resp.Messages)).
		Msg("Fetched remote message history")

	return resp.Messages, nil
}
