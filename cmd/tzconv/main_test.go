package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/codeGROOVE-dev/tzconv/pkg/catalog"
	"github.com/codeGROOVE-dev/tzconv/pkg/detect"
	"github.com/codeGROOVE-dev/tzconv/pkg/pairs"
	"github.com/codeGROOVE-dev/tzconv/pkg/resolve"
	"github.com/codeGROOVE-dev/tzconv/pkg/tzconvert"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

type fakeDetector struct {
	res detect.Result
}

func (f fakeDetector) Detect(context.Context, string) detect.Result {
	return f.res
}

func newTestApp(t *testing.T, detected detect.Result) (*app, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cat := catalog.Default()
	var out, errOut bytes.Buffer
	return &app{
		out:      &out,
		errOut:   &errOut,
		engine:   tzconvert.NewEngine(cat, logger),
		catalog:  cat,
		detector: fakeDetector{res: detected},
		resolver: resolve.New(cat, nil, nil, logger),
		pairs:    pairs.NewStore(pairs.NewMemoryKV(), logger),
		logger:   logger,
		now:      func() time.Time { return time.Date(2024, time.July, 4, 12, 0, 0, 0, time.UTC) },
	}, &out, &errOut
}

func mustParse(t *testing.T, args ...string) *options {
	t.Helper()
	opts, err := parseOptions(args, io.Discard)
	require.NoError(t, err)
	return opts
}

func TestParseOptions(t *testing.T) {
	opts := mustParse(t, "-from", "America/New_York", "-to", "Asia/Kolkata", "-to", "Europe/London, Asia/Tokyo",
		"-date", "2024-07-04", "-time", "09:00", "-meridiem", "AM", "-swap", "pairs", "list")

	assert.Equal(t, "America/New_York", opts.from)
	assert.Equal(t, []string{"Asia/Kolkata", "Europe/London", "Asia/Tokyo"}, []string(opts.to))
	assert.Equal(t, "2024-07-04", opts.date)
	assert.Equal(t, "09:00", opts.clock)
	assert.Equal(t, "AM", opts.meridiem)
	assert.True(t, opts.swap)
	assert.Equal(t, []string{"pairs", "list"}, opts.args)

	_, err := parseOptions([]string{"-bogus"}, io.Discard)
	assert.Error(t, err)
}

func TestConvert(t *testing.T) {
	a, out, _ := newTestApp(t, detect.Result{})
	opts := mustParse(t, "-from", "America/New_York", "-to", "Asia/Kolkata", "-to", "Europe/London",
		"-date", "2024-07-04", "-time", "09:00", "-meridiem", "AM")

	require.NoError(t, a.dispatch(context.Background(), opts))
	got := out.String()
	assert.Contains(t, got, "2024-07-04 09:00 AM  New York")
	assert.Contains(t, got, "India")
	assert.Contains(t, got, "06:30 PM")
	assert.Contains(t, got, "Thursday, Jul 04")
	assert.Contains(t, got, "02:00 PM")
	assert.Less(t, strings.Index(got, "India"), strings.Index(got, "London"), "results keep request order")
}

func TestConvertTwentyFourHourClock(t *testing.T) {
	a, out, _ := newTestApp(t, detect.Result{})
	opts := mustParse(t, "-from", "UTC", "-to", "Asia/Tokyo", "-date", "2024-07-04", "-time", "21:00")

	require.NoError(t, a.dispatch(context.Background(), opts))
	assert.Contains(t, out.String(), "2024-07-04 09:00 PM  UTC")
	assert.Contains(t, out.String(), "Friday, Jul 05")
}

func TestConvertByPlaceName(t *testing.T) {
	a, out, _ := newTestApp(t, detect.Result{})
	opts := mustParse(t, "-from", "new york", "-to", "tokyo", "-date", "2024-01-15", "-time", "08:00", "-meridiem", "PM")

	require.NoError(t, a.dispatch(context.Background(), opts))
	assert.Contains(t, out.String(), "10:00 AM")
	assert.Contains(t, out.String(), "Tuesday, Jan 16")
}

func TestConvertDetectsSource(t *testing.T) {
	a, out, errOut := newTestApp(t, detect.Result{Zone: "Asia/Tokyo", Source: detect.SourceIP})
	opts := mustParse(t, "-to", "UTC", "-date", "2024-07-04", "-time", "09:00", "-meridiem", "AM")

	require.NoError(t, a.dispatch(context.Background(), opts))
	assert.Contains(t, errOut.String(), "using detected zone Asia/Tokyo (ip)")
	assert.Contains(t, out.String(), "12:00 AM")
}

func TestConvertDetectionFails(t *testing.T) {
	a, _, _ := newTestApp(t, detect.Result{Source: detect.SourceNone})
	err := a.dispatch(context.Background(), mustParse(t, "-to", "UTC"))
	assert.ErrorContains(t, err, "pass -from")
}

func TestConvertDefaultsToNow(t *testing.T) {
	a, out, _ := newTestApp(t, detect.Result{})
	require.NoError(t, a.dispatch(context.Background(), mustParse(t, "-from", "UTC", "-to", "Asia/Kolkata")))
	assert.Contains(t, out.String(), "2024-07-04 12:00 PM  UTC")
	assert.Contains(t, out.String(), "05:30 PM")
}

func TestConvertSwap(t *testing.T) {
	a, out, _ := newTestApp(t, detect.Result{})
	opts := mustParse(t, "-from", "America/New_York", "-to", "Asia/Kolkata",
		"-date", "2024-07-04", "-time", "06:30", "-meridiem", "PM", "-swap")

	require.NoError(t, a.dispatch(context.Background(), opts))
	assert.Contains(t, out.String(), "2024-07-04 06:30 PM  India")
	assert.Contains(t, out.String(), "09:00 AM")
}

func TestConvertSkipsUnknownTarget(t *testing.T) {
	a, out, errOut := newTestApp(t, detect.Result{})
	opts := mustParse(t, "-from", "UTC", "-to", "Atlantis", "-to", "Asia/Tokyo", "-date", "2024-07-04", "-time", "09:00")

	require.NoError(t, a.dispatch(context.Background(), opts))
	assert.Contains(t, errOut.String(), `skipping "Atlantis"`)
	assert.Contains(t, out.String(), "Tokyo")
	assert.Contains(t, out.String(), "06:00 PM")
}

func TestConvertErrors(t *testing.T) {
	tests := []struct {
		check func(t *testing.T, err error)
		name  string
		args  []string
	}{
		{
			name: "date without time",
			args: []string{"-from", "UTC", "-to", "Asia/Tokyo", "-date", "2024-07-04"},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, tzconvert.ErrIncompleteInput)
			},
		},
		{
			name: "no targets",
			args: []string{"-from", "UTC", "-date", "2024-07-04", "-time", "09:00"},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, tzconvert.ErrIncompleteInput)
			},
		},
		{
			name: "clock out of range",
			args: []string{"-from", "UTC", "-to", "Asia/Tokyo", "-date", "2024-07-04", "-time", "25:99", "-meridiem", "PM"},
			check: func(t *testing.T, err error) {
				var fe *tzconvert.FormatError
				assert.ErrorAs(t, err, &fe)
			},
		},
		{
			name: "no target resolves",
			args: []string{"-from", "UTC", "-to", "Atlantis,Lemuria", "-date", "2024-07-04", "-time", "09:00"},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, errNoResolvableTargets)
				assert.NotErrorIs(t, err, tzconvert.ErrIncompleteInput)
			},
		},
		{
			name: "too many targets",
			args: []string{"-from", "UTC", "-to", "A,B,C,D,E,F"},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, tzconvert.ErrTooManyTargets)
			},
		},
		{
			name: "unknown source",
			args: []string{"-from", "Atlantis", "-to", "UTC"},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, resolve.ErrUnresolved)
			},
		},
		{
			name: "stray arguments",
			args: []string{"-from", "UTC", "convert", "Asia/Tokyo"},
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "no arguments")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, out, _ := newTestApp(t, detect.Result{})
			err := a.dispatch(context.Background(), mustParse(t, tt.args...))
			require.Error(t, err)
			tt.check(t, err)
			assert.Empty(t, out.String())
		})
	}
}

func TestConvertTimeline(t *testing.T) {
	a, out, _ := newTestApp(t, detect.Result{})
	opts := mustParse(t, "-from", "UTC", "-to", "Asia/Kolkata", "-date", "2024-07-04", "-time", "09:00", "-timeline")

	require.NoError(t, a.dispatch(context.Background(), opts))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.Contains(t, lines[len(lines)-2], "00 01 02")
	assert.Contains(t, lines[len(lines)-1], "05 06 07")
}

func TestZonesCommand(t *testing.T) {
	a, out, _ := newTestApp(t, detect.Result{})
	require.NoError(t, a.dispatch(context.Background(), mustParse(t, "zones")))
	assert.Contains(t, out.String(), "GMT+5:30")
	assert.Contains(t, out.String(), "Asia/Kolkata")
}

func TestDetectCommand(t *testing.T) {
	a, out, _ := newTestApp(t, detect.Result{
		Zone: "Asia/Kolkata", Source: detect.SourceIP, City: "Pune", Region: "Maharashtra", Country: "India",
	})
	require.NoError(t, a.dispatch(context.Background(), mustParse(t, "detect")))
	assert.Equal(t, "Asia/Kolkata  India  (ip)\nPune, Maharashtra, India\n", out.String())

	a, _, _ = newTestApp(t, detect.Result{Source: detect.SourceNone})
	assert.Error(t, a.dispatch(context.Background(), mustParse(t, "detect")))
}

func TestResolveCommand(t *testing.T) {
	a, out, _ := newTestApp(t, detect.Result{})
	require.NoError(t, a.dispatch(context.Background(), mustParse(t, "resolve", "new", "york")))
	assert.Equal(t, "America/New_York  New York  (catalog)\n", out.String())

	err := a.dispatch(context.Background(), mustParse(t, "resolve"))
	assert.ErrorIs(t, err, resolve.ErrEmptyQuery)
}

func TestPairsCommands(t *testing.T) {
	ctx := context.Background()
	a, out, _ := newTestApp(t, detect.Result{})

	require.NoError(t, a.dispatch(ctx, mustParse(t, "pairs")))
	assert.Contains(t, out.String(), "no saved pairs")

	out.Reset()
	require.NoError(t, a.dispatch(ctx, mustParse(t, "pairs", "save", "new york", "Asia/Kolkata")))
	assert.Contains(t, out.String(), "New York → India")

	err := a.dispatch(ctx, mustParse(t, "pairs", "save", "America/New_York", "india"))
	require.ErrorIs(t, err, pairs.ErrDuplicatePair)

	list, err := a.pairs.List(ctx, pairs.DefaultKey)
	require.NoError(t, err)
	require.Len(t, list, 1)
	id := strconv.FormatInt(list[0].ID, 10)

	out.Reset()
	require.NoError(t, a.dispatch(ctx, mustParse(t, "-date", "2024-07-04", "-time", "09:00", "-meridiem", "AM", "pairs", "load", id)))
	assert.Contains(t, out.String(), "06:30 PM")

	out.Reset()
	require.NoError(t, a.dispatch(ctx, mustParse(t, "pairs", "rm", id)))
	assert.Equal(t, "removed pair "+id+"\n", out.String())

	assert.ErrorIs(t, a.dispatch(ctx, mustParse(t, "pairs", "rm", id)), pairs.ErrPairNotFound)
	assert.ErrorIs(t, a.dispatch(ctx, mustParse(t, "pairs", "load", id)), pairs.ErrPairNotFound)
	assert.Error(t, a.dispatch(ctx, mustParse(t, "pairs", "rm", "abc")))
	assert.Error(t, a.dispatch(ctx, mustParse(t, "pairs", "save", "UTC")))
	assert.Error(t, a.dispatch(ctx, mustParse(t, "pairs", "frobnicate")))
}

func TestUnknownCommand(t *testing.T) {
	a, _, _ := newTestApp(t, detect.Result{})
	assert.ErrorContains(t, a.dispatch(context.Background(), mustParse(t, "teleport")), "unknown command")
}

func TestRunVersionAndBadFlags(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 0, run([]string{"-version"}, &out, &errOut))
	assert.Equal(t, "tzconv v1.0.0\n", out.String())

	assert.Equal(t, 2, run([]string{"-bogus"}, &out, &errOut))
	assert.Equal(t, 0, run([]string{"-h"}, &out, &errOut))
}
