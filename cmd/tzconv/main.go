// Package main implements the tzconv CLI for converting times between zones.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/tzconv/pkg/catalog"
	"github.com/codeGROOVE-dev/tzconv/pkg/config"
	"github.com/codeGROOVE-dev/tzconv/pkg/detect"
	"github.com/codeGROOVE-dev/tzconv/pkg/gemini"
	"github.com/codeGROOVE-dev/tzconv/pkg/googlemaps"
	"github.com/codeGROOVE-dev/tzconv/pkg/httpcache"
	"github.com/codeGROOVE-dev/tzconv/pkg/pairs"
	"github.com/codeGROOVE-dev/tzconv/pkg/render"
	"github.com/codeGROOVE-dev/tzconv/pkg/resolve"
	"github.com/codeGROOVE-dev/tzconv/pkg/tzconvert"
	"github.com/fatih/color"
)

const usage = `Usage: %s [flags] [command]

Commands:
  convert               convert -from to each -to (default)
  zones                 list the built-in zones
  detect                show the zone detected for this machine
  resolve <place>       find the zone for a city, country or zone id
  pairs list            list saved pairs
  pairs save <from> <to>
  pairs rm <id>
  pairs load <id>       convert using a saved pair

Flags:
`

// zoneList collects repeated -to flags. Comma separated values are split.
type zoneList []string

func (z *zoneList) String() string {
	return strings.Join(*z, ",")
}

func (z *zoneList) Set(v string) error {
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*z = append(*z, part)
		}
	}
	return nil
}

type options struct {
	from     string
	date     string
	clock    string
	meridiem string
	envFile  string
	to       zoneList
	args     []string
	swap     bool
	timeline bool
	noCache  bool
	noColor  bool
	verbose  bool
	version  bool
}

func parseOptions(args []string, errOut io.Writer) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("tzconv", flag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.Usage = func() {
		fmt.Fprintf(errOut, usage, fs.Name()) //nolint:errcheck // usage output
		fs.PrintDefaults()
	}
	fs.StringVar(&o.from, "from", "", "Source zone, city or country (detected when empty)")
	fs.Var(&o.to, "to", "Target zone, city or country; repeat for up to 5")
	fs.StringVar(&o.date, "date", "", "Date as YYYY-MM-DD (defaults to today in the source zone)")
	fs.StringVar(&o.clock, "time", "", "Time as hh:mm (defaults to now in the source zone)")
	fs.StringVar(&o.meridiem, "meridiem", "", "AM or PM; empty reads -time as a 24-hour clock")
	fs.BoolVar(&o.swap, "swap", false, "Swap the source zone with the first target")
	fs.BoolVar(&o.timeline, "timeline", false, "Draw a 24-hour strip for every zone")
	fs.StringVar(&o.envFile, "env-file", ".env", "Optional file of environment variables")
	fs.BoolVar(&o.noCache, "no-cache", false, "Disable the lookup cache")
	fs.BoolVar(&o.noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&o.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&o.version, "version", false, "Show version")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.args = fs.Args()
	return o, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	opts, err := parseOptions(args, errOut)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if opts.version {
		fmt.Fprintln(out, "tzconv v1.0.0") //nolint:errcheck // stdout
		return 0
	}
	if opts.noColor {
		color.NoColor = true
	}

	cfg, err := config.Load(opts.envFile, nil)
	if err != nil {
		render.Warn(errOut, "%v", err)
		return 1
	}
	// Quiet by default; lookup fallbacks still surface as warnings.
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if opts.verbose || cfg.Verbose {
		logger = config.NewLogger(true)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, closeApp, err := newApp(ctx, cfg, opts, logger)
	if err != nil {
		render.Warn(errOut, "%v", err)
		return 1
	}
	defer closeApp()
	a.out, a.errOut = out, errOut

	if err := a.dispatch(ctx, opts); err != nil {
		render.Warn(errOut, "%v", err)
		return 1
	}
	return 0
}

// newApp wires the real detector, resolver and pair store from cfg.
func newApp(ctx context.Context, cfg *config.Config, opts *options, logger *slog.Logger) (*app, func(), error) {
	cat := catalog.Default()
	if cfg.CatalogFile != "" {
		extra, err := catalog.ReadFile(cfg.CatalogFile)
		if err != nil {
			return nil, nil, fmt.Errorf("catalog file: %w", err)
		}
		cat = cat.Extend(extra...)
	}

	var cache *httpcache.Cache
	if !opts.noCache {
		var err error
		cache, err = httpcache.New(ctx, cfg.CachePath(), cfg.GeoCacheTTL, logger)
		if err != nil {
			logger.Warn("disk cache unavailable, using memory", "error", err)
			cache = httpcache.NewMemory(cfg.GeoCacheTTL, logger)
		}
	}

	detector := detect.New(logger,
		detect.WithEndpoint(cfg.GeoEndpoint),
		detect.WithTimeout(cfg.GeoTimeout),
		detect.WithCache(cache),
	)

	var mapsHTTP googlemaps.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	var aiCache gemini.Cache
	if cache != nil {
		mapsHTTP = httpcache.NewCachedClient(cache, mapsHTTP, logger)
		aiCache = cache
	}
	resolver := resolve.New(cat,
		googlemaps.NewClient(cfg.GoogleMapsAPIKey, "", mapsHTTP, logger),
		gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GCPProject, aiCache, logger),
		logger)

	kv, err := pairs.NewFileKV(cfg.PairsPath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening saved pairs: %w", err)
	}

	a := &app{
		engine:   tzconvert.NewEngine(cat, logger),
		catalog:  cat,
		detector: detector,
		resolver: resolver,
		pairs:    pairs.NewStore(kv, logger),
		logger:   logger,
		now:      time.Now,
	}
	closeApp := func() {
		if err := cache.Close(); err != nil {
			logger.Warn("failed to save cache", "error", err)
		}
	}
	return a, closeApp, nil
}
