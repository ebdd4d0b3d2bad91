package routing

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"sync"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://osrm.test"

func newMockedClient(t *testing.T) *OSRMClient {
	t.Helper()
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	t.Cleanup(httpmock.DeactivateAndReset)
	return &OSRMClient{BaseURL: testBaseURL, Profile: "foot", Client: client}
}

func TestFetchRouteBuildsLongitudeFirstURL(t *testing.T) {
	c := newMockedClient(t)

	var gotURL string
	httpmock.RegisterRegexpResponder(http.MethodGet, regexp.MustCompile(`^https://osrm\.test/route/v1/foot/`),
		func(req *http.Request) (*http.Response, error) {
			gotURL = req.URL.String()
			return httpmock.NewStringResponse(200, `{"code":"Ok","routes":[{"geometry":"_p~iF~ps|U","distance":1523.4}]}`), nil
		})

	resp, err := c.FetchRoute(context.Background(), -0.18, 5.60, -0.19, 5.61)
	require.NoError(t, err)
	assert.Equal(t, "https://osrm.test/route/v1/foot/-0.18,5.6;-0.19,5.61?overview=full&geometries=polyline", gotURL)
	require.Len(t, resp.Routes, 1)
	assert.Equal(t, "_p~iF~ps|U", resp.Routes[0].Geometry)
	assert.InDelta(t, 1523.4, resp.Routes[0].Distance, 1e-9)
}

func TestFetchRouteNonSuccessStatus(t *testing.T) {
	c := newMockedClient(t)
	httpmock.RegisterRegexpResponder(http.MethodGet, regexp.MustCompile(`/route/v1/`),
		httpmock.NewStringResponder(503, `{"code":"Busy"}`))

	_, err := c.FetchRoute(context.Background(), -0.18, 5.60, -0.19, 5.61)
	require.Error(t, err)
	var rerr *RoutingError
	require.True(t, errors.As(err, &rerr))
	assert.Contains(t, rerr.Error(), "503")
}

func TestFetchRouteTransportFailure(t *testing.T) {
	c := newMockedClient(t)
	cause := errors.New("connection refused")
	httpmock.RegisterRegexpResponder(http.MethodGet, regexp.MustCompile(`/route/v1/`),
		httpmock.NewErrorResponder(cause))

	_, err := c.FetchRoute(context.Background(), -0.18, 5.60, -0.19, 5.61)
	var rerr *RoutingError
	require.True(t, errors.As(err, &rerr))
	assert.ErrorIs(t, err, cause)
}

func TestFetchRouteMalformedBody(t *testing.T) {
	c := newMockedClient(t)
	httpmock.RegisterRegexpResponder(http.MethodGet, regexp.MustCompile(`/route/v1/`),
		httpmock.NewStringResponder(200, `not json`))

	_, err := c.FetchRoute(context.Background(), -0.18, 5.60, -0.19, 5.61)
	var rerr *RoutingError
	assert.True(t, errors.As(err, &rerr))
}

func TestFetchRouteDoesNotRetry(t *testing.T) {
	c := newMockedClient(t)
	httpmock.RegisterRegexpResponder(http.MethodGet, regexp.MustCompile(`/route/v1/`),
		httpmock.NewStringResponder(500, ``))

	_, err := c.FetchRoute(context.Background(), 1, 2, 3, 4)
	require.Error(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestNewOSRMClientDefaults(t *testing.T) {
	c := NewOSRMClient("", "", 0)
	assert.Equal(t, DefaultBaseURL, c.BaseURL)
	assert.Equal(t, DefaultProfile, c.Profile)
	assert.Equal(t, DefaultTimeout, c.Client.Timeout)
}

func TestFetchRouteConcurrentCallsLeaveClientUnchanged(t *testing.T) {
	c := newMockedClient(t)
	c.Profile = ""
	httpmock.RegisterRegexpResponder(http.MethodGet, regexp.MustCompile(`^https://osrm\.test/route/v1/foot/`),
		httpmock.NewStringResponder(200, `{"code":"Ok","routes":[]}`))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.FetchRoute(context.Background(), -0.18, 5.60, -0.19, 5.61)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, "", c.Profile)
	assert.Equal(t, 8, httpmock.GetTotalCallCount())
}

func TestDisabledAlwaysFails(t *testing.T) {
	_, err := Disabled{}.FetchRoute(context.Background(), 1, 2, 3, 4)
	assert.ErrorIs(t, err, ErrDisabled)
}
