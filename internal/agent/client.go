package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/m1ckyb/commutecompute-core/internal/bitmap"
	"github.com/m1ckyb/commutecompute-core/internal/zone"
)

// Wire headers shared with the server API.
const (
	headerDeviceToken = "X-Device-Token"
	headerFingerprint = "X-Zone-Fingerprint"
	headerZoneX       = "X-Zone-X"
	headerZoneY       = "X-Zone-Y"
	headerZoneWidth   = "X-Zone-Width"
	headerZoneHeight  = "X-Zone-Height"
)

// maxZonePayload bounds a zone response body. The largest zone on an
// 800x480 panel encodes to well under 64 KiB.
const maxZonePayload = 256 * 1024

// PairingSession is the client view of a pairing code's state.
type PairingSession struct {
	Code       string `json:"code"`
	Status     string `json:"status"`
	WebhookURL string `json:"webhookUrl,omitempty"`
}

// ZoneUpdate is the outcome of one zone fetch.
type ZoneUpdate struct {
	ZoneID      string
	Unchanged   bool
	Fingerprint string
	Rect        zone.Rect
	Raster      *bitmap.Raster
}

// DeviceStatus is the health payload posted with each fetch cycle.
type DeviceStatus struct {
	FirmwareVersion   string `json:"firmware_version,omitempty"`
	BatteryMillivolts int    `json:"battery_mv,omitempty"`
	RSSI              int    `json:"rssi,omitempty"`
}

// Server is the network surface the state machine depends on. *Client is
// the production implementation; tests substitute a fake.
type Server interface {
	CreatePairing(ctx context.Context) (*PairingSession, error)
	PollPairing(ctx context.Context, code string) (*PairingSession, error)
	SetWebhook(url string)
	FetchZone(ctx context.Context, zoneID string, force bool) (*ZoneUpdate, error)
	Checkin(ctx context.Context, status DeviceStatus) error
}

// Client talks to the commutecompute server over HTTP.
type Client struct {
	base    string // server base URL, known at build/provision time
	webhook string // zone-fetch base, delivered through pairing
	token   string
	http    *http.Client
}

// NewClient creates a client for the server at base, identifying itself
// with the given device token.
func NewClient(base, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		base:  base,
		token: token,
		http:  &http.Client{Timeout: timeout},
	}
}

// SetWebhook sets the zone-fetch base URL after pairing delivers it.
func (c *Client) SetWebhook(url string) {
	c.webhook = url
}

// CreatePairing asks the server to allocate a pairing code.
func (c *Client) CreatePairing(ctx context.Context) (*PairingSession, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/pair", nil)
	if err != nil {
		return nil, fmt.Errorf("building pairing request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("creating pairing code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("creating pairing code: unexpected status %d", resp.StatusCode)
	}

	var session PairingSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decoding pairing response: %w", err)
	}
	return &session, nil
}

// PollPairing checks whether configuration has been bound to code.
func (c *Client) PollPairing(ctx context.Context, code string) (*PairingSession, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/pair/"+code, nil)
	if err != nil {
		return nil, fmt.Errorf("building poll request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("polling pairing code: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrPairingTimeout
	default:
		return nil, fmt.Errorf("polling pairing code: unexpected status %d", resp.StatusCode)
	}

	var session PairingSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("decoding poll response: %w", err)
	}
	return &session, nil
}

// FetchZone requests one zone's current content. A "not modified" answer
// returns ZoneUpdate.Unchanged with the fingerprint the server holds.
func (c *Client) FetchZone(ctx context.Context, zoneID string, force bool) (*ZoneUpdate, error) {
	if c.webhook == "" {
		return nil, ErrNotPaired
	}

	url := c.webhook + "?id=" + zoneID
	if force {
		url += "&force=1"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building zone request: %w", err)
	}
	req.Header.Set(headerDeviceToken, c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching zone %s: %w", zoneID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotModified:
		return &ZoneUpdate{
			ZoneID:      zoneID,
			Unchanged:   true,
			Fingerprint: resp.Header.Get(headerFingerprint),
		}, nil
	case http.StatusPreconditionFailed:
		return nil, ErrSetupRequired
	default:
		return nil, fmt.Errorf("fetching zone %s: unexpected status %d", zoneID, resp.StatusCode)
	}

	rect, err := rectFromHeaders(resp.Header)
	if err != nil {
		return nil, fmt.Errorf("fetching zone %s: %w", zoneID, err)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxZonePayload))
	if err != nil {
		return nil, fmt.Errorf("reading zone %s body: %w", zoneID, err)
	}
	raster, err := bitmap.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding zone %s: %w", zoneID, err)
	}
	if raster.Width != rect.W || raster.Height != rect.H {
		return nil, fmt.Errorf("zone %s: bitmap %dx%d does not match rect %dx%d: %w",
			zoneID, raster.Width, raster.Height, rect.W, rect.H, bitmap.ErrMalformedBitmap)
	}

	return &ZoneUpdate{
		ZoneID:      zoneID,
		Fingerprint: resp.Header.Get(headerFingerprint),
		Rect:        rect,
		Raster:      raster,
	}, nil
}

// Checkin posts the device's health status.
func (c *Client) Checkin(ctx context.Context, status DeviceStatus) error {
	body, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encoding checkin: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/api/devices/checkin", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building checkin request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerDeviceToken, c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("posting checkin: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("posting checkin: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// rectFromHeaders parses the zone rectangle metadata headers.
func rectFromHeaders(h http.Header) (zone.Rect, error) {
	var rect zone.Rect
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{headerZoneX, &rect.X},
		{headerZoneY, &rect.Y},
		{headerZoneWidth, &rect.W},
		{headerZoneHeight, &rect.H},
	} {
		v, err := strconv.Atoi(h.Get(f.name))
		if err != nil {
			return zone.Rect{}, fmt.Errorf("parsing %s: %w", f.name, err)
		}
		*f.dst = v
	}
	if rect.W <= 0 || rect.H <= 0 {
		return zone.Rect{}, fmt.Errorf("non-positive zone dimensions %dx%d", rect.W, rect.H)
	}
	return rect, nil
}
