// Package detect picks a default source zone: the zone an IP-geolocation service
// reports for the caller, or the host's own zone when that lookup fails.
package detect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/codeGROOVE-dev/tzconv/pkg/httpcache"
)

// DefaultEndpoint is an ipapi.co compatible geolocation service.
const DefaultEndpoint = "https://ipapi.co"

// Source says where a detected zone came from.
type Source string

// Sources.
const (
	SourceIP    Source = "ip"
	SourceLocal Source = "local"
	SourceNone  Source = "none"
)

// Result is a detected zone. Zone is empty only when Source is SourceNone.
type Result struct {
	Zone    string `json:"timezone"`
	Source  Source `json:"source"`
	IP      string `json:"ip,omitempty"`
	City    string `json:"city,omitempty"`
	Region  string `json:"region,omitempty"`
	Country string `json:"country,omitempty"`
}

// HTTPClient is the subset of *http.Client used here.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Detector looks up zones by IP address.
type Detector struct {
	client   HTTPClient
	logger   *slog.Logger
	local    func() string
	endpoint string
	timeout  time.Duration
	delay    time.Duration
	attempts uint
}

// Option configures a Detector.
type Option func(*Detector)

// WithEndpoint sets the geolocation service base URL.
func WithEndpoint(endpoint string) Option {
	return func(d *Detector) {
		if endpoint != "" {
			d.endpoint = strings.TrimSuffix(endpoint, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client HTTPClient) Option {
	return func(d *Detector) {
		if client != nil {
			d.client = client
		}
	}
}

// WithCache serves repeated lookups for the same address from cache.
func WithCache(cache *httpcache.Cache) Option {
	return func(d *Detector) {
		if cache != nil {
			d.client = httpcache.NewCachedClient(cache, d.client, d.logger)
		}
	}
}

// WithTimeout bounds a whole lookup, retries included.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Detector) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithRetry sets the number of attempts and the base delay between them.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(d *Detector) {
		if attempts > 0 {
			d.attempts = attempts
		}
		d.delay = delay
	}
}

// WithLocalZone replaces the host zone lookup used as fallback.
func WithLocalZone(fn func() string) Option {
	return func(d *Detector) {
		if fn != nil {
			d.local = fn
		}
	}
}

// New returns a Detector. Options apply in order, so WithCache should follow WithHTTPClient.
func New(logger *slog.Logger, opts ...Option) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Detector{
		client:   &http.Client{Timeout: 5 * time.Second},
		logger:   logger,
		local:    LocalZone,
		endpoint: DefaultEndpoint,
		timeout:  5 * time.Second,
		delay:    250 * time.Millisecond,
		attempts: 3,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect returns the zone for ip, or for the caller's own public address when ip
// is empty. It never fails: on any lookup problem it falls back to the host zone.
func (d *Detector) Detect(ctx context.Context, ip string) Result {
	if ip != "" && !isPublic(ip) {
		d.logger.Debug("skipping geolocation for non-public address", "ip", ip)
		return d.fallback()
	}

	res, err := d.lookup(ctx, ip)
	if err != nil {
		d.logger.Warn("zone detection failed, using local zone", "ip", ip, "error", err)
		return d.fallback()
	}
	d.logger.Debug("zone detected", "ip", res.IP, "zone", res.Zone, "city", res.City)
	return res
}

func (d *Detector) fallback() Result {
	if zone := d.local(); zone != "" {
		return Result{Zone: zone, Source: SourceLocal}
	}
	return Result{Source: SourceNone}
}

type geoResponse struct {
	IP          string `json:"ip"`
	City        string `json:"city"`
	Region      string `json:"region"`
	CountryName string `json:"country_name"`
	Timezone    string `json:"timezone"`
	Reason      string `json:"reason"`
	Error       bool   `json:"error"`
}

func (d *Detector) lookup(ctx context.Context, ip string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	apiURL := d.endpoint + "/json/"
	if ip != "" {
		apiURL = d.endpoint + "/" + url.PathEscape(ip) + "/json/"
	}

	var geo geoResponse
	err := retry.Do(
		func() error {
			var err error
			geo, err = d.fetch(ctx, apiURL)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(d.attempts),
		retry.Delay(d.delay),
		retry.MaxDelay(2*time.Second),
		retry.DelayType(retry.FullJitterBackoffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			d.logger.Debug("retrying geolocation lookup", "attempt", n+1, "url", apiURL, "error", err)
		}),
	)
	if err != nil {
		return Result{}, fmt.Errorf("geolocation lookup: %w", err)
	}

	if geo.Error {
		return Result{}, fmt.Errorf("geolocation service error: %s", geo.Reason)
	}
	zone := strings.TrimSpace(geo.Timezone)
	if _, err := loadZone(zone); err != nil {
		return Result{}, fmt.Errorf("geolocation returned unusable zone %q: %w", zone, err)
	}
	return Result{
		Zone:    zone,
		Source:  SourceIP,
		IP:      geo.IP,
		City:    geo.City,
		Region:  geo.Region,
		Country: geo.CountryName,
	}, nil
}

func (d *Detector) fetch(ctx context.Context, apiURL string) (geoResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, http.NoBody)
	if err != nil {
		return geoResponse{}, retry.Unrecoverable(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "tzconv/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return geoResponse{}, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			d.logger.Debug("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512)) //nolint:errcheck // body is only for the message
		err := fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return geoResponse{}, err
		}
		return geoResponse{}, retry.Unrecoverable(err)
	}

	var geo geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&geo); err != nil {
		return geoResponse{}, retry.Unrecoverable(fmt.Errorf("decoding response: %w", err))
	}
	return geo, nil
}

// ClientIP extracts the caller address from a request, preferring the first
// X-Forwarded-For hop. Callers can set that header freely, so only use this
// behind a proxy that overwrites it.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	return RemoteIP(r)
}

// RemoteIP returns the host part of the connection's remote address.
func RemoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func isPublic(ip string) bool {
	addr := net.ParseIP(ip)
	if addr == nil {
		return false
	}
	return !addr.IsLoopback() && !addr.IsPrivate() && !addr.IsUnspecified() &&
		!addr.IsLinkLocalUnicast() && !addr.IsMulticast()
}

var errNotIANA = errors.New("not an IANA zone name")

func loadZone(zone string) (*time.Location, error) {
	if zone == "" || zone == "Local" {
		return nil, errNotIANA
	}
	return time.LoadLocation(zone)
}
