// Package render formats conversions, zones and saved pairs for a terminal.
package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/codeGROOVE-dev/tzconv/pkg/catalog"
	"github.com/codeGROOVE-dev/tzconv/pkg/pairs"
	"github.com/codeGROOVE-dev/tzconv/pkg/tzconvert"
	"github.com/fatih/color"
)

// Period classifies an hour of the day.
type Period int

// Periods.
const (
	Business Period = iota
	Evening
	Night
)

var (
	businessColor = color.New(color.FgGreen)
	eveningColor  = color.New(color.FgYellow)
	nightColor    = color.New(color.FgBlue)
	headerColor   = color.New(color.Bold)
	dimColor      = color.New(color.FgHiBlack)
)

// PeriodOf returns the period a 24-hour clock hour falls in: 9-17 is business,
// 22-6 is night, everything else is evening.
func PeriodOf(hour int) Period {
	switch {
	case hour >= 9 && hour < 18:
		return Business
	case hour >= 22 || hour < 7:
		return Night
	default:
		return Evening
	}
}

func (p Period) color() *color.Color {
	switch p {
	case Business:
		return businessColor
	case Night:
		return nightColor
	default:
		return eveningColor
	}
}

// Conversion writes one line per result under a header naming the source time.
func Conversion(w io.Writer, cat *catalog.Catalog, from string, wc tzconvert.WallClock, results []tzconvert.Result) error {
	if _, err := headerColor.Fprintf(w, "%s  %s\n", wc, cat.LabelFor(from)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, dimColor.Sprint(strings.Repeat("─", 60))); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range results {
		c := PeriodOf(r.WallClock().Hour24()).color()
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%s %s\n",
			r.Label, c.Sprint(r.ConvertedTime), r.ConvertedDate, r.UTCOffset, r.Abbreviation); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// Timeline writes a 24-hour strip per zone, aligned on the source zone's day
// starting at start. Each cell is the local hour, coloured by period.
func Timeline(w io.Writer, start time.Time, zones []string, labels func(string) string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, zone := range zones {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			continue
		}
		var b strings.Builder
		for i := range 24 {
			h := start.Add(time.Duration(i) * time.Hour).In(loc).Hour()
			b.WriteString(PeriodOf(h).color().Sprintf("%02d", h))
			b.WriteByte(' ')
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", labels(zone), strings.TrimRight(b.String(), " ")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// Zones lists catalog entries with the offsets in effect at at.
func Zones(w io.Writer, entries []catalog.Entry, at time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		offset := ""
		if loc, err := time.LoadLocation(e.ID); err == nil {
			_, secs := at.In(loc).Zone()
			offset = catalog.GMTOffset(secs)
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Label, dimColor.Sprint(offset), e.ID); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// Pairs lists saved pairs, or a hint when there are none.
func Pairs(w io.Writer, cat *catalog.Catalog, list []pairs.Pair) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, dimColor.Sprint("no saved pairs"))
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, p := range list {
		if _, err := fmt.Fprintf(tw, "%d\t%s\t→\t%s\n", p.ID, cat.LabelFor(p.From), cat.LabelFor(p.To)); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// Warn writes a highlighted warning line.
func Warn(w io.Writer, format string, args ...any) {
	_, _ = color.New(color.FgRed).Fprintf(w, "warning: "+format+"\n", args...) //nolint:errcheck // best effort
}
