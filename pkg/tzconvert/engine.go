package tzconvert

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/tzconv/pkg/catalog"
)

// MaxTargets is the most target zones one request may carry.
const MaxTargets = 5

// Display layouts for converted times.
const (
	TimeLayout = "03:04 PM"
	DateLayout = "Monday, Jan 02"
)

// Request is one conversion: a wall clock read in SourceZone, shown in each TargetZones entry.
type Request struct {
	SourceZone  string    `json:"source_zone"`
	TargetZones []string  `json:"target_zones"`
	WallClock   WallClock `json:"wall_clock"`
}

// Targets returns the non-empty target zones in order.
func (r Request) Targets() []string {
	out := make([]string, 0, len(r.TargetZones))
	for _, z := range r.TargetZones {
		if z = strings.TrimSpace(z); z != "" {
			out = append(out, z)
		}
	}
	return out
}

// Validate checks that every required field is present. Clock and calendar
// errors are reported later, by the conversion itself.
func (r Request) Validate() error {
	var missing []string
	if r.WallClock.IsZero() {
		missing = append(missing, "date/time")
	}
	if strings.TrimSpace(r.SourceZone) == "" {
		missing = append(missing, "source zone")
	}
	targets := r.Targets()
	if len(targets) == 0 {
		missing = append(missing, "target zone")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteInput, strings.Join(missing, ", "))
	}
	if len(targets) > MaxTargets {
		return ErrTooManyTargets
	}
	return nil
}

// Swap exchanges the source zone with the first target. Nothing is re-detected
// and the wall clock is kept as is.
func (r Request) Swap() Request {
	out := r
	out.TargetZones = slices.Clone(r.TargetZones)
	if len(out.TargetZones) == 0 {
		out.TargetZones = []string{r.SourceZone}
		out.SourceZone = ""
		return out
	}
	out.SourceZone, out.TargetZones[0] = out.TargetZones[0], r.SourceZone
	return out
}

// Result is the wall clock of one target zone.
type Result struct {
	Instant       time.Time `json:"-"`
	TargetZone    string    `json:"timezone"`
	Label         string    `json:"label"`
	ConvertedTime string    `json:"converted_time"`
	ConvertedDate string    `json:"converted_date"`
	UTCOffset     string    `json:"offset"`
	Abbreviation  string    `json:"abbreviation"`
}

// WallClock returns the converted time as a WallClock, ready to feed back in.
func (r Result) WallClock() WallClock {
	return FromTime(r.Instant)
}

// Engine converts requests. It is safe for concurrent use.
type Engine struct {
	catalog   *catalog.Catalog
	logger    *slog.Logger
	locations sync.Map // zone id -> *time.Location
}

// NewEngine returns an engine labelling results from cat.
func NewEngine(cat *catalog.Catalog, logger *slog.Logger) *Engine {
	if cat == nil {
		cat = catalog.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{catalog: cat, logger: logger}
}

// Catalog returns the catalog used for labels.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Convert converts req into one Result per resolvable target zone, in request order.
//
// Missing fields return ErrIncompleteInput and nothing is converted. A wall clock
// that is not a real date and time returns a *FormatError and an unknown source
// zone an *UnresolvedZoneError; both abort the request. Unknown target zones are
// dropped from the results without failing.
func (e *Engine) Convert(req Request) ([]Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	src, err := e.location(req.SourceZone)
	if err != nil {
		return nil, err
	}
	instant, err := req.WallClock.In(src)
	if err != nil {
		return nil, err
	}

	targets := req.Targets()
	results := make([]Result, 0, len(targets))
	for _, zone := range targets {
		loc, err := e.location(zone)
		if err != nil {
			e.logger.Debug("skipping target zone", "zone", zone, "error", err)
			continue
		}
		results = append(results, e.result(instant.In(loc), zone))
	}
	return results, nil
}

// ConvertOne converts a single pair of zones.
func (e *Engine) ConvertOne(w WallClock, from, to string) (Result, error) {
	results, err := e.Convert(Request{WallClock: w, SourceZone: from, TargetZones: []string{to}})
	if err != nil {
		return Result{}, err
	}
	if len(results) == 0 {
		return Result{}, &UnresolvedZoneError{Zone: to, Err: fmt.Errorf("zone %q not in timezone database", to)}
	}
	return results[0], nil
}

func (e *Engine) result(t time.Time, zone string) Result {
	abbr, offset := t.Zone()
	return Result{
		Instant:       t,
		TargetZone:    zone,
		Label:         e.catalog.LabelFor(zone),
		ConvertedTime: t.Format(TimeLayout),
		ConvertedDate: t.Format(DateLayout),
		UTCOffset:     FormatOffset(offset),
		Abbreviation:  abbr,
	}
}

func (e *Engine) location(zone string) (*time.Location, error) {
	zone = strings.TrimSpace(zone)
	if loc, ok := e.locations.Load(zone); ok {
		return loc.(*time.Location), nil
	}
	// LoadLocation treats "" and "Local" as the host zone; neither names a zone.
	if zone == "" || zone == "Local" {
		return nil, &UnresolvedZoneError{Zone: zone, Err: fmt.Errorf("zone %q is not an IANA name", zone)}
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, &UnresolvedZoneError{Zone: zone, Err: err}
	}
	e.locations.Store(zone, loc)
	return loc, nil
}
