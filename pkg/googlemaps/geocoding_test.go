package googlemaps

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapsServer(t *testing.T, geocode, timezone string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		switch r.URL.Path {
		case "/geocode/json":
			_, _ = io.WriteString(w, geocode) //nolint:errcheck // test server
		case "/timezone/json":
			_, _ = io.WriteString(w, timezone) //nolint:errcheck // test server
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

const pune = `{"status":"OK","results":[{"formatted_address":"Pune, Maharashtra, India",
"types":["locality","political"],"geometry":{"location_type":"APPROXIMATE","location":{"lat":18.52,"lng":73.85}}}]}`

func TestZoneForPlace(t *testing.T) {
	srv, _ := mapsServer(t, pune, `{"status":"OK","timeZoneId":"Asia/Kolkata","timeZoneName":"India Standard Time"}`)
	c := NewClient("test-key", srv.URL, srv.Client(), nil)

	got, err := c.ZoneForPlace(context.Background(), "Pune")
	require.NoError(t, err)
	assert.Equal(t, Place{
		Address:  "Pune, Maharashtra, India",
		Zone:     "Asia/Kolkata",
		ZoneName: "India Standard Time",
		Location: Location{Latitude: 18.52, Longitude: 73.85},
	}, got)
}

func TestGeocodeRejectsCountryLevel(t *testing.T) {
	srv, _ := mapsServer(t, `{"status":"OK","results":[{"formatted_address":"United States",
"types":["country","political"],"geometry":{"location_type":"APPROXIMATE","location":{"lat":38,"lng":-97}}}]}`, "")
	c := NewClient("test-key", srv.URL, srv.Client(), nil)

	_, _, err := c.Geocode(context.Background(), "USA")
	assert.ErrorIs(t, err, ErrImprecise)
}

func TestGeocodeNoResults(t *testing.T) {
	srv, hits := mapsServer(t, `{"status":"ZERO_RESULTS","results":[]}`, "")
	c := NewClient("test-key", srv.URL, srv.Client(), nil)

	_, _, err := c.Geocode(context.Background(), "Atlantis")
	assert.ErrorContains(t, err, "no results")
	assert.Equal(t, int32(1), hits.Load())
}

func TestZoneAtStatusError(t *testing.T) {
	srv, _ := mapsServer(t, "", `{"status":"REQUEST_DENIED","error_message":"bad key"}`)
	c := NewClient("test-key", srv.URL, srv.Client(), nil)

	_, _, err := c.ZoneAt(context.Background(), Location{Latitude: 1, Longitude: 2}, time.Now())
	assert.ErrorContains(t, err, "REQUEST_DENIED: bad key")
}

func TestRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "oops", http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"status":"OK","timeZoneId":"Europe/Oslo"}`) //nolint:errcheck // test server
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, srv.Client(), nil)
	id, _, err := c.ZoneAt(context.Background(), Location{Latitude: 59.9, Longitude: 10.7}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Europe/Oslo", id)
	assert.Equal(t, int32(2), hits.Load())
}

func TestNoAPIKey(t *testing.T) {
	c := NewClient("", "", nil, nil)
	assert.False(t, c.Enabled())
	_, err := c.ZoneForPlace(context.Background(), "Paris")
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
