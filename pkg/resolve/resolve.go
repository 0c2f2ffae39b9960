// Package resolve turns free text such as "Pune", "new york" or "Asia/Tokyo"
// into an IANA zone id.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/tzconv/pkg/catalog"
	"github.com/codeGROOVE-dev/tzconv/pkg/gemini"
	"github.com/codeGROOVE-dev/tzconv/pkg/googlemaps"
)

var (
	// ErrUnresolved means no step produced a usable zone.
	ErrUnresolved = errors.New("could not resolve place to a time zone")
	// ErrEmptyQuery means the query was blank.
	ErrEmptyQuery = errors.New("empty query")
)

// Source names the step that produced a resolution.
type Source string

// Sources, in the order they are tried.
const (
	SourceZoneID  Source = "zone"
	SourceCatalog Source = "catalog"
	SourceMaps    Source = "googlemaps"
	SourceGemini  Source = "gemini"
)

// Resolution is a resolved zone.
type Resolution struct {
	Zone   string `json:"zone"`
	Label  string `json:"label"`
	Source Source `json:"source"`
	Detail string `json:"detail,omitempty"`
}

// MapsClient geocodes places.
type MapsClient interface {
	Enabled() bool
	ZoneForPlace(ctx context.Context, place string) (googlemaps.Place, error)
}

// AIClient asks a model for a place's zone.
type AIClient interface {
	Enabled() bool
	ZoneForPlace(ctx context.Context, place string) (*gemini.Response, error)
}

// Resolver tries an exact zone id, then the catalog, then the external services.
type Resolver struct {
	catalog *catalog.Catalog
	maps    MapsClient
	ai      AIClient
	logger  *slog.Logger
}

// New returns a Resolver. maps and ai may be nil.
func New(cat *catalog.Catalog, maps MapsClient, ai AIClient, logger *slog.Logger) *Resolver {
	if cat == nil {
		cat = catalog.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{catalog: cat, maps: maps, ai: ai, logger: logger}
}

// Resolve returns the zone query names.
func (r *Resolver) Resolve(ctx context.Context, query string) (Resolution, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Resolution{}, ErrEmptyQuery
	}

	if validZone(query) {
		return r.resolution(query, SourceZoneID, ""), nil
	}
	if e, ok := r.catalog.Match(query); ok {
		return r.resolution(e.ID, SourceCatalog, ""), nil
	}

	var errs []error
	if r.maps != nil && r.maps.Enabled() {
		place, err := r.maps.ZoneForPlace(ctx, query)
		switch {
		case err != nil:
			errs = append(errs, err)
		case !validZone(place.Zone):
			errs = append(errs, fmt.Errorf("google maps returned unknown zone %q", place.Zone))
		default:
			return r.resolution(place.Zone, SourceMaps, place.Address), nil
		}
		r.logger.Debug("google maps could not resolve place", "query", query, "error", errs[len(errs)-1])
	}

	if r.ai != nil && r.ai.Enabled() {
		resp, err := r.ai.ZoneForPlace(ctx, query)
		switch {
		case err != nil:
			errs = append(errs, err)
		case !validZone(resp.Timezone):
			errs = append(errs, fmt.Errorf("gemini returned unknown zone %q", resp.Timezone))
		default:
			return r.resolution(resp.Timezone, SourceGemini, resp.Location), nil
		}
		r.logger.Debug("gemini could not resolve place", "query", query, "error", errs[len(errs)-1])
	}

	if len(errs) > 0 {
		return Resolution{}, fmt.Errorf("%q: %w: %w", query, ErrUnresolved, errors.Join(errs...))
	}
	return Resolution{}, fmt.Errorf("%q: %w", query, ErrUnresolved)
}

func (r *Resolver) resolution(zone string, src Source, detail string) Resolution {
	return Resolution{Zone: zone, Label: r.catalog.LabelFor(zone), Source: src, Detail: detail}
}

func validZone(zone string) bool {
	if zone == "" || zone == "Local" {
		return false
	}
	_, err := time.LoadLocation(zone)
	return err == nil
}
