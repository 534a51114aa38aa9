/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/friendsincode/grimnir_signage/internal/content"
	"github.com/friendsincode/grimnir_signage/internal/telemetry"
	"github.com/friendsincode/grimnir_signage/internal/version"
)

// ContractPrefix is where the record store contract is mounted on the server.
const ContractPrefix = "/api/v1/store"

type lastActiveRequest struct {
	At time.Time `json:"at"`
}

type mediaBatchRequest struct {
	IDs []string `json:"ids"`
}

// HTTPClient implements Store against a remote server's record store contract.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient builds a client for the server at baseURL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   timeout,
			Transport: telemetry.Transport(nil),
		},
	}
}

func (c *HTTPClient) DeviceByToken(ctx context.Context, token string) (content.Device, error) {
	var dev content.Device
	if err := c.do(ctx, http.MethodGet, "/devices/by-token/"+url.PathEscape(token), nil, &dev); err != nil {
		return content.Device{}, err
	}
	if err := dev.Validate(); err != nil {
		return content.Device{}, ErrNotFound
	}
	return dev, nil
}

func (c *HTTPClient) UpdateDeviceLastActive(ctx context.Context, deviceID string, at time.Time) error {
	return c.do(ctx, http.MethodPut, "/devices/"+url.PathEscape(deviceID)+"/last-active", lastActiveRequest{At: at.UTC()}, nil)
}

func (c *HTTPClient) PlaylistByID(ctx context.Context, playlistID string) (content.PlaylistMeta, error) {
	var meta content.PlaylistMeta
	if err := c.do(ctx, http.MethodGet, "/playlists/"+url.PathEscape(playlistID), nil, &meta); err != nil {
		return content.PlaylistMeta{}, err
	}
	if meta.ID == "" {
		return content.PlaylistMeta{}, ErrNotFound
	}
	return meta, nil
}

func (c *HTTPClient) PlaylistEntries(ctx context.Context, playlistID string) ([]content.Entry, error) {
	var entries []content.Entry
	if err := c.do(ctx, http.MethodGet, "/playlists/"+url.PathEscape(playlistID)+"/entries", nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *HTTPClient) MediaByIDs(ctx context.Context, ids []string) (map[string]content.MediaItem, error) {
	out := make(map[string]content.MediaItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var items []content.MediaItem
	if err := c.do(ctx, http.MethodPost, "/media/batch", mediaBatchRequest{IDs: ids}, &items); err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.Validate() != nil {
			continue
		}
		out[item.ID] = item
	}
	return out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+ContractPrefix+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 300:
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
