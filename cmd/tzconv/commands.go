package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/tzconv/pkg/catalog"
	"github.com/codeGROOVE-dev/tzconv/pkg/detect"
	"github.com/codeGROOVE-dev/tzconv/pkg/pairs"
	"github.com/codeGROOVE-dev/tzconv/pkg/render"
	"github.com/codeGROOVE-dev/tzconv/pkg/resolve"
	"github.com/codeGROOVE-dev/tzconv/pkg/tzconvert"
)

var errNoResolvableTargets = errors.New("no resolvable target zones")

type zoneDetector interface {
	Detect(ctx context.Context, ip string) detect.Result
}

type placeResolver interface {
	Resolve(ctx context.Context, query string) (resolve.Resolution, error)
}

type app struct {
	out      io.Writer
	errOut   io.Writer
	engine   *tzconvert.Engine
	catalog  *catalog.Catalog
	detector zoneDetector
	resolver placeResolver
	pairs    *pairs.Store
	logger   *slog.Logger
	now      func() time.Time
}

func (a *app) dispatch(ctx context.Context, opts *options) error {
	cmd, rest := "convert", opts.args
	if len(rest) > 0 {
		cmd, rest = rest[0], rest[1:]
	}

	switch cmd {
	case "convert":
		if len(rest) > 0 {
			return fmt.Errorf("convert takes no arguments, got %q (zones go in -from and -to)", strings.Join(rest, " "))
		}
		return a.convert(ctx, opts, opts.from, opts.to)
	case "zones":
		return render.Zones(a.out, a.catalog.List(), a.now())
	case "detect":
		return a.detect(ctx)
	case "resolve":
		return a.resolve(ctx, strings.Join(rest, " "))
	case "pairs":
		return a.pairsCommand(ctx, opts, rest)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) convert(ctx context.Context, opts *options, from string, to []string) error {
	if len(to) > tzconvert.MaxTargets {
		return tzconvert.ErrTooManyTargets
	}

	source, err := a.sourceZone(ctx, from)
	if err != nil {
		return err
	}
	targets := a.targetZones(ctx, to)
	if len(to) > 0 && len(targets) == 0 {
		return errNoResolvableTargets
	}
	req := tzconvert.Request{SourceZone: source, TargetZones: targets}
	if opts.swap {
		req = req.Swap()
	}

	wc, err := a.wallClock(req.SourceZone, opts)
	if err != nil {
		return err
	}
	req.WallClock = wc

	results, err := a.engine.Convert(req)
	var formatErr *tzconvert.FormatError
	switch {
	case errors.Is(err, tzconvert.ErrIncompleteInput):
		return fmt.Errorf("please fill in all fields: %w", err)
	case errors.As(err, &formatErr):
		return fmt.Errorf("error converting time: %w", err)
	case err != nil:
		return err
	}

	if err := render.Conversion(a.out, a.catalog, req.SourceZone, wc, results); err != nil {
		return err
	}
	if !opts.timeline {
		return nil
	}

	loc, err := time.LoadLocation(req.SourceZone)
	if err != nil {
		return err
	}
	zones := []string{req.SourceZone}
	for _, r := range results {
		zones = append(zones, r.TargetZone)
	}
	if _, err := fmt.Fprintln(a.out); err != nil {
		return err
	}
	return render.Timeline(a.out, time.Date(wc.Year, wc.Month, wc.Day, 0, 0, 0, 0, loc), zones, a.catalog.LabelFor)
}

// sourceZone resolves from, or detects the zone of this machine when from is empty.
func (a *app) sourceZone(ctx context.Context, from string) (string, error) {
	if strings.TrimSpace(from) == "" {
		res := a.detector.Detect(ctx, "")
		if res.Zone == "" {
			return "", errors.New("could not detect your time zone, pass -from")
		}
		fmt.Fprintf(a.errOut, "using detected zone %s (%s)\n", res.Zone, res.Source) //nolint:errcheck // informational
		return res.Zone, nil
	}
	res, err := a.resolver.Resolve(ctx, from)
	if err != nil {
		return "", fmt.Errorf("source zone %q: %w", from, err)
	}
	return res.Zone, nil
}

// targetZones resolves each target, warning about and dropping the ones that fail.
func (a *app) targetZones(ctx context.Context, to []string) []string {
	out := make([]string, 0, len(to))
	for _, t := range to {
		res, err := a.resolver.Resolve(ctx, t)
		if err != nil {
			render.Warn(a.errOut, "skipping %q: %v", t, err)
			continue
		}
		out = append(out, res.Zone)
	}
	return out
}

// wallClock reads -date, -time and -meridiem, or takes the current time in
// zone when neither date nor time is given.
func (a *app) wallClock(zone string, opts *options) (tzconvert.WallClock, error) {
	if opts.date == "" && opts.clock == "" && zone != "" {
		return tzconvert.Now(zone, a.now())
	}
	wc, err := tzconvert.ParseWallClock(opts.date, opts.clock, opts.meridiem)
	if errors.Is(err, tzconvert.ErrIncompleteInput) {
		return wc, fmt.Errorf("please fill in all fields: %w", err)
	}
	return wc, err
}

func (a *app) detect(ctx context.Context) error {
	res := a.detector.Detect(ctx, "")
	if res.Source == detect.SourceNone {
		return errors.New("no time zone detected")
	}
	if _, err := fmt.Fprintf(a.out, "%s  %s  (%s)\n", res.Zone, a.catalog.LabelFor(res.Zone), res.Source); err != nil {
		return err
	}
	var where []string
	for _, s := range []string{res.City, res.Region, res.Country} {
		if s != "" {
			where = append(where, s)
		}
	}
	if len(where) == 0 {
		return nil
	}
	_, err := fmt.Fprintln(a.out, strings.Join(where, ", "))
	return err
}

func (a *app) resolve(ctx context.Context, query string) error {
	res, err := a.resolver.Resolve(ctx, query)
	if errors.Is(err, resolve.ErrEmptyQuery) {
		return fmt.Errorf("usage: tzconv resolve <place>: %w", err)
	}
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(a.out, "%s  %s  (%s)\n", res.Zone, res.Label, res.Source); err != nil {
		return err
	}
	if res.Detail != "" {
		_, err = fmt.Fprintln(a.out, res.Detail)
	}
	return err
}

func (a *app) pairsCommand(ctx context.Context, opts *options, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	switch sub {
	case "list":
		list, err := a.pairs.List(ctx, pairs.DefaultKey)
		if err != nil {
			return err
		}
		return render.Pairs(a.out, a.catalog, list)
	case "save":
		if len(args) != 2 {
			return errors.New("usage: tzconv pairs save <from> <to>")
		}
		from, err := a.resolver.Resolve(ctx, args[0])
		if err != nil {
			return fmt.Errorf("%q: %w", args[0], err)
		}
		to, err := a.resolver.Resolve(ctx, args[1])
		if err != nil {
			return fmt.Errorf("%q: %w", args[1], err)
		}
		p, err := a.pairs.Save(ctx, pairs.DefaultKey, from.Zone, to.Zone)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(a.out, "saved pair %d: %s → %s\n", p.ID, a.catalog.LabelFor(p.From), a.catalog.LabelFor(p.To))
		return err
	case "rm", "load":
		if len(args) != 1 {
			return fmt.Errorf("usage: tzconv pairs %s <id>", sub)
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid pair id %q", args[0])
		}
		if sub == "rm" {
			if err := a.pairs.Remove(ctx, pairs.DefaultKey, id); err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "removed pair %d\n", id)
			return err
		}
		p, err := a.pairs.Find(ctx, pairs.DefaultKey, id)
		if err != nil {
			return err
		}
		return a.convert(ctx, opts, p.From, []string{p.To})
	default:
		return fmt.Errorf("unknown pairs command %q", sub)
	}
}
