// Package googlemaps resolves place names to IANA zones with the Google
// Geocoding and Time Zone APIs.
package googlemaps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// DefaultBaseURL is the Google Maps API root.
const DefaultBaseURL = "https://maps.googleapis.com/maps/api"

// ErrNoAPIKey is returned when the client was built without a key.
var ErrNoAPIKey = errors.New("google Maps API key not configured")

// ErrImprecise is returned for geocoding hits too coarse to pick a single zone.
var ErrImprecise = errors.New("location too imprecise for zone lookup")

// Location is a pair of coordinates.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Place is a geocoded place and its zone.
type Place struct {
	Address  string
	Zone     string
	ZoneName string
	Location Location
}

// HTTPClient is the subset of *http.Client used here.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the Google Maps APIs.
type Client struct {
	httpClient HTTPClient
	logger     *slog.Logger
	apiKey     string
	baseURL    string
}

// NewClient creates a client. An empty baseURL selects DefaultBaseURL.
func NewClient(apiKey, baseURL string, httpClient HTTPClient, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Enabled reports whether the client has an API key.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// ZoneForPlace geocodes place and returns the zone at its coordinates.
func (c *Client) ZoneForPlace(ctx context.Context, place string) (Place, error) {
	loc, address, err := c.Geocode(ctx, place)
	if err != nil {
		return Place{}, err
	}
	zone, name, err := c.ZoneAt(ctx, loc, time.Now())
	if err != nil {
		return Place{}, err
	}
	return Place{Address: address, Zone: zone, ZoneName: name, Location: loc}, nil
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string   `json:"formatted_address"`
		Types            []string `json:"types"`
		Geometry         struct {
			LocationType string `json:"location_type"`
			Location     struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode returns the coordinates and formatted address of the best match for place.
func (c *Client) Geocode(ctx context.Context, place string) (Location, string, error) {
	if !c.Enabled() {
		return Location{}, "", ErrNoAPIKey
	}

	q := url.Values{"address": {place}, "key": {c.apiKey}}
	var result geocodeResponse
	if err := c.get(ctx, "/geocode/json?"+q.Encode(), &result); err != nil {
		return Location{}, "", fmt.Errorf("geocoding %q: %w", place, err)
	}
	if result.Status == "ZERO_RESULTS" || (result.Status == "OK" && len(result.Results) == 0) {
		return Location{}, "", fmt.Errorf("geocoding %q: no results", place)
	}
	if result.Status != "OK" {
		return Location{}, "", statusError("geocoding", result.Status, result.ErrorMessage)
	}

	first := result.Results[0]
	if strings.EqualFold(first.Geometry.LocationType, "approximate") &&
		slices.Contains(first.Types, "country") &&
		!slices.ContainsFunc(first.Types, func(t string) bool {
			return t == "locality" || strings.HasPrefix(t, "administrative_area_level_")
		}) {
		c.logger.Debug("rejecting country-level geocoding result", "place", place, "address", first.FormattedAddress)
		return Location{}, "", fmt.Errorf("%q: %w", place, ErrImprecise)
	}

	return Location{
		Latitude:  first.Geometry.Location.Lat,
		Longitude: first.Geometry.Location.Lng,
	}, first.FormattedAddress, nil
}

// ZoneAt returns the IANA zone id and its display name at loc on the given date.
func (c *Client) ZoneAt(ctx context.Context, loc Location, at time.Time) (id, name string, err error) {
	if !c.Enabled() {
		return "", "", ErrNoAPIKey
	}

	q := url.Values{
		"location":  {strconv.FormatFloat(loc.Latitude, 'f', 6, 64) + "," + strconv.FormatFloat(loc.Longitude, 'f', 6, 64)},
		"timestamp": {strconv.FormatInt(at.Unix(), 10)},
		"key":       {c.apiKey},
	}
	var result struct {
		TimeZoneID   string `json:"timeZoneId"`
		TimeZoneName string `json:"timeZoneName"`
		Status       string `json:"status"`
		ErrorMessage string `json:"error_message"`
	}
	if err := c.get(ctx, "/timezone/json?"+q.Encode(), &result); err != nil {
		return "", "", fmt.Errorf("zone lookup: %w", err)
	}
	if result.Status != "OK" {
		return "", "", statusError("zone lookup", result.Status, result.ErrorMessage)
	}
	return result.TimeZoneID, result.TimeZoneName, nil
}

// get fetches path under the base URL and decodes its JSON body into v,
// retrying transport failures and 5xx responses.
func (c *Client) get(ctx context.Context, path string, v any) error {
	apiURL := c.baseURL + path
	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer func() {
				if err := resp.Body.Close(); err != nil {
					c.logger.Debug("failed to close response body", "error", err)
				}
			}()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if resp.StatusCode >= http.StatusInternalServerError {
				return fmt.Errorf("HTTP %d", resp.StatusCode)
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Unrecoverable(fmt.Errorf("HTTP %d", resp.StatusCode))
			}
			if err := json.Unmarshal(body, v); err != nil {
				return retry.Unrecoverable(fmt.Errorf("parsing response: %w", err))
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.MaxDelay(2*time.Second),
		retry.DelayType(retry.FullJitterBackoffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying Google Maps request", "attempt", n+1, "error", err)
		}),
	)
}

func statusError(op, status, message string) error {
	if message != "" {
		return fmt.Errorf("%s failed: %s: %s", op, status, message)
	}
	return fmt.Errorf("%s failed with status %s", op, status)
}
