// Package catalog holds the set of selectable timezones and their display labels.
package catalog

import (
	"fmt"
	"slices"
	"strings"
	"time"
	_ "time/tzdata" // zone rules must not depend on the host's zoneinfo

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Entry is a selectable zone.
type Entry struct {
	ID    string `json:"id" yaml:"id"`
	Label string `json:"label" yaml:"label"`
}

// Catalog is an immutable, label-sorted list of zones.
type Catalog struct {
	byID    map[string]Entry
	entries []Entry
}

// New builds a catalog. Entries sharing an ID are collapsed, the last one wins.
// Entries with an empty label are labelled with their ID.
func New(entries ...Entry) *Catalog {
	byID := make(map[string]Entry, len(entries))
	for _, e := range entries {
		e.ID = strings.TrimSpace(e.ID)
		if e.ID == "" {
			continue
		}
		if strings.TrimSpace(e.Label) == "" {
			e.Label = e.ID
		}
		byID[e.ID] = e
	}

	sorted := make([]Entry, 0, len(byID))
	for _, e := range byID {
		sorted = append(sorted, e)
	}

	// Collator is not safe for concurrent use; it only lives for this sort.
	col := collate.New(language.English)
	slices.SortStableFunc(sorted, func(a, b Entry) int {
		if c := col.CompareString(a.Label, b.Label); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	return &Catalog{byID: byID, entries: sorted}
}

// Extend returns a new catalog holding c's entries plus extra.
func (c *Catalog) Extend(extra ...Entry) *Catalog {
	all := make([]Entry, 0, len(c.entries)+len(extra))
	all = append(all, c.entries...)
	all = append(all, extra...)
	return New(all...)
}

// List returns the entries sorted by label.
func (c *Catalog) List() []Entry {
	return slices.Clone(c.entries)
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Lookup returns the entry for id.
func (c *Catalog) Lookup(id string) (Entry, bool) {
	e, ok := c.byID[id]
	return e, ok
}

// LabelFor returns the label for id, or id itself when it is not in the catalog.
func (c *Catalog) LabelFor(id string) string {
	if e, ok := c.byID[id]; ok {
		return e.Label
	}
	return id
}

// IsKnown reports whether id is in the catalog.
func (c *Catalog) IsKnown(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Match finds an entry by free text: an ID, a label, or the city part of an ID.
// Comparison ignores case, and spaces match underscores.
func (c *Catalog) Match(query string) (Entry, bool) {
	q := normalize(query)
	if q == "" {
		return Entry{}, false
	}
	for _, e := range c.entries {
		if normalize(e.ID) == q || normalize(e.Label) == q || normalize(city(e.ID)) == q {
			return e, true
		}
	}
	return Entry{}, false
}

// Display renders an entry the way /timezones lists it:
// "New York (GMT-4) [America/New_York]", using the offset in effect at at.
// Unknown or unloadable ids are rendered with their ID as label and no offset.
func (c *Catalog) Display(id string, at time.Time) string {
	label := c.LabelFor(id)
	loc, err := time.LoadLocation(id)
	if err != nil {
		return fmt.Sprintf("%s [%s]", label, id)
	}
	_, offset := at.In(loc).Zone()
	return fmt.Sprintf("%s (%s) [%s]", label, GMTOffset(offset), id)
}

// GMTOffset formats an offset in seconds east of UTC the way the catalog shows it:
// GMT+0, GMT-4, GMT+5:30.
func GMTOffset(seconds int) string {
	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	if minutes == 0 {
		return fmt.Sprintf("GMT%s%d", sign, hours)
	}
	return fmt.Sprintf("GMT%s%d:%02d", sign, hours, minutes)
}

// SplitDisplay extracts the zone ID from a Display string.
func SplitDisplay(s string) (label, id string, ok bool) {
	i := strings.LastIndex(s, "[")
	if i < 0 || !strings.HasSuffix(s, "]") {
		return "", "", false
	}
	return strings.TrimSpace(s[:i]), s[i+1 : len(s)-1], true
}

func city(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.ReplaceAll(s, "_", " ")
}
