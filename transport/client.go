// Package transport talks to the chat-transport bridge that owns the live
// representative sessions.
package transport

import (
	"net/http"
	"strings"
)

type Client struct {
	config     Config
	httpClient *http.Client
}

func NewClient(bridgeURL, bridgeToken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		config: Config{
			BridgeURL:   strings.TrimRight(bridgeURL, "/"),
			BridgeToken: bridgeToken,
		},
		httpClient: httpClient,
	}
}
