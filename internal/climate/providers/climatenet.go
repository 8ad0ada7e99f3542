package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/i474232898/climatenet-bot/internal/climate"
)

// DefaultBaseURL is the public ClimateNet service.
const DefaultBaseURL = "https://climatenet.am"

// ClimateNetProvider implements climate.Source for the ClimateNet device service.
type ClimateNetProvider struct {
	name    string
	baseURL string
	client  *resilientClient
}

// NewClimateNetProvider creates a provider rooted at baseURL (DefaultBaseURL if empty).
func NewClimateNetProvider(client *http.Client, baseURL string) *ClimateNetProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &ClimateNetProvider{
		name:    "climatenet",
		baseURL: strings.TrimRight(baseURL, "/"),
		client: newResilientClient("climatenet", client, BackoffConfig{
			MaxRetries:      2,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		}),
	}
}

// WithBackoff overrides the retry policy.
func (p *ClimateNetProvider) WithBackoff(b BackoffConfig) *ClimateNetProvider {
	p.client.backoff = b
	return p
}

func (p *ClimateNetProvider) Name() string {
	return p.name
}

type deviceEntry struct {
	Name        string  `json:"name"`
	GeneratedID string  `json:"generated_id"`
	ParentName  *string `json:"parent_name"`
}

// ListDevices calls GET /device_inner/list/.
func (p *ClimateNetProvider) ListDevices(ctx context.Context) ([]climate.Device, error) {
	var payload []deviceEntry
	if err := p.getJSON(ctx, p.baseURL+"/device_inner/list/", scopeService, &payload); err != nil {
		return nil, err
	}

	devices := make([]climate.Device, 0, len(payload))
	for _, e := range payload {
		region := climate.UnknownRegion
		if e.ParentName != nil {
			region = *e.ParentName
		}
		devices = append(devices, climate.Device{
			Name:       e.Name,
			RegionName: region,
			ExternalID: e.GeneratedID,
		})
	}
	return devices, nil
}

// Latest calls GET /device_inner/{id}/latest/ and keeps only the newest sample.
func (p *ClimateNetProvider) Latest(ctx context.Context, deviceID string) (climate.Measurement, error) {
	u := fmt.Sprintf("%s/device_inner/%s/latest/", p.baseURL, url.PathEscape(deviceID))

	var samples []climate.Sample
	if err := p.getJSON(ctx, u, scopeDevice, &samples); err != nil {
		return climate.Measurement{}, err
	}
	if len(samples) == 0 {
		return climate.Measurement{}, fmt.Errorf("device %s: %w", deviceID, climate.ErrNoData)
	}
	return samples[0].Normalize(), nil
}

func (p *ClimateNetProvider) getJSON(ctx context.Context, u string, sc scope, out any) error {
	resp, err := p.client.get(ctx, u, sc)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", climate.ErrUpstreamUnavailable, p.name, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: decode payload: %v", climate.ErrUpstreamUnavailable, p.name, err)
	}
	return nil
}
