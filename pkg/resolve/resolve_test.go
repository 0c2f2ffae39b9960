package resolve

import (
	"context"
	"errors"
	"testing"

	"github.com/codeGROOVE-dev/tzconv/pkg/catalog"
	"github.com/codeGROOVE-dev/tzconv/pkg/gemini"
	"github.com/codeGROOVE-dev/tzconv/pkg/googlemaps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMaps struct {
	err   error
	place googlemaps.Place
	calls int
}

func (f *fakeMaps) Enabled() bool { return true }

func (f *fakeMaps) ZoneForPlace(context.Context, string) (googlemaps.Place, error) {
	f.calls++
	return f.place, f.err
}

type fakeAI struct {
	err   error
	resp  *gemini.Response
	calls int
}

func (f *fakeAI) Enabled() bool { return true }

func (f *fakeAI) ZoneForPlace(context.Context, string) (*gemini.Response, error) {
	f.calls++
	return f.resp, f.err
}

func TestResolveZoneID(t *testing.T) {
	maps := &fakeMaps{}
	r := New(catalog.Default(), maps, nil, nil)

	got, err := r.Resolve(context.Background(), " Asia/Kolkata ")
	require.NoError(t, err)
	assert.Equal(t, Resolution{Zone: "Asia/Kolkata", Label: "India", Source: SourceZoneID}, got)
	assert.Zero(t, maps.calls)
}

func TestResolveCatalog(t *testing.T) {
	r := New(catalog.Default(), nil, nil, nil)

	got, err := r.Resolve(context.Background(), "new york")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", got.Zone)
	assert.Equal(t, SourceCatalog, got.Source)
}

func TestResolveMaps(t *testing.T) {
	maps := &fakeMaps{place: googlemaps.Place{Zone: "Asia/Kolkata", Address: "Pune, India"}}
	ai := &fakeAI{}
	r := New(catalog.Default(), maps, ai, nil)

	got, err := r.Resolve(context.Background(), "Pune")
	require.NoError(t, err)
	assert.Equal(t, Resolution{Zone: "Asia/Kolkata", Label: "India", Source: SourceMaps, Detail: "Pune, India"}, got)
	assert.Zero(t, ai.calls)
}

func TestResolveFallsThroughToGemini(t *testing.T) {
	tests := []struct {
		name string
		maps *fakeMaps
	}{
		{name: "maps error", maps: &fakeMaps{err: errors.New("quota")}},
		{name: "maps bogus zone", maps: &fakeMaps{place: googlemaps.Place{Zone: "Nowhere/Land"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ai := &fakeAI{resp: &gemini.Response{Timezone: "America/Cuiaba", Location: "Cuiabá, Brazil"}}
			r := New(catalog.Default(), tt.maps, ai, nil)

			got, err := r.Resolve(context.Background(), "Cuiabá")
			require.NoError(t, err)
			assert.Equal(t, "America/Cuiaba", got.Zone)
			assert.Equal(t, SourceGemini, got.Source)
			assert.Equal(t, "America/Cuiaba", got.Label, "zones outside the catalog are labelled by id")
			assert.Equal(t, 1, ai.calls)
		})
	}
}

func TestResolveUnresolved(t *testing.T) {
	r := New(catalog.Default(), &fakeMaps{err: errors.New("no results")},
		&fakeAI{resp: &gemini.Response{Timezone: "Mars/Base"}}, nil)

	_, err := r.Resolve(context.Background(), "Olympus Mons")
	require.ErrorIs(t, err, ErrUnresolved)
	assert.ErrorContains(t, err, "no results")
	assert.ErrorContains(t, err, "Mars/Base")

	_, err = New(nil, nil, nil, nil).Resolve(context.Background(), "Olympus Mons")
	assert.ErrorIs(t, err, ErrUnresolved)
}

func TestResolveEmpty(t *testing.T) {
	_, err := New(nil, nil, nil, nil).Resolve(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestResolveRejectsLocal(t *testing.T) {
	_, err := New(nil, nil, nil, nil).Resolve(context.Background(), "Local")
	assert.ErrorIs(t, err, ErrUnresolved)
}
