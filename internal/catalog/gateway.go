// Package catalog implements the CatalogClient collaborators: the remote
// gateway listing client and a local-filesystem variant for running against
// a library on disk.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/alexplain/jukebox/internal/domain"
)

const _maxListingSize = 1 << 20 // 1 MB

// GatewayClient lists catalog directories from the content gateway
type GatewayClient struct {
	logger  *zap.Logger
	client  *http.Client
	baseURL string
}

// NewGatewayClient creates a gateway-backed catalog client
func NewGatewayClient(logger *zap.Logger, baseURL string) *GatewayClient {
	return &GatewayClient{
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second, // Essential to prevent blocking the loaders
		},
	}
}

type gatewayListing struct {
	Entries []domain.CatalogEntry `json:"entries"`
}

// List fetches one directory listing from the gateway
func (c *GatewayClient) List(ctx context.Context, path string) ([]domain.CatalogEntry, error) {
	url := c.baseURL + "/" + strings.TrimLeft(path, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "jukeboxDaemon/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var listing gatewayListing
	limitReader := io.LimitReader(resp.Body, _maxListingSize)
	if err := json.NewDecoder(limitReader).Decode(&listing); err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}

	c.logger.Debug("Catalog listing fetched",
		zap.String("path", path),
		zap.Int("entries", len(listing.Entries)))
	return listing.Entries, nil
}
