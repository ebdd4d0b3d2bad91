package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://router.project-osrm.org"
	DefaultProfile = "foot"
	DefaultTimeout = 10 * time.Second
)

// OSRMClient calls the /route/v1 endpoint of an OSRM-compatible service.
// It never retries; the caller owns retry policy. The client is shared by
// every navigation session and is not modified after construction.
type OSRMClient struct {
	BaseURL string
	Profile string
	Client  *http.Client
}

func NewOSRMClient(baseURL, profile string, timeout time.Duration) *OSRMClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if profile == "" {
		profile = DefaultProfile
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OSRMClient{
		BaseURL: baseURL,
		Profile: profile,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (c *OSRMClient) FetchRoute(ctx context.Context, startLon, startLat, endLon, endLat float64) (Response, error) {
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	endpoint := c.routeURL(startLon, startLat, endLon, endLat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Response{}, &RoutingError{Cause: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return Response{}, &RoutingError{Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, &RoutingError{Cause: fmt.Errorf("osrm http error: %s", resp.Status)}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, &RoutingError{Cause: err}
	}
	return out, nil
}

func (c *OSRMClient) routeURL(startLon, startLat, endLon, endLat float64) string {
	base, profile := c.BaseURL, c.Profile
	if base == "" {
		base = DefaultBaseURL
	}
	if profile == "" {
		profile = DefaultProfile
	}
	return fmt.Sprintf("%s/route/v1/%s/%s,%s;%s,%s?overview=full&geometries=polyline",
		strings.TrimRight(base, "/"), profile,
		formatCoord(startLon), formatCoord(startLat), formatCoord(endLon), formatCoord(endLat))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
