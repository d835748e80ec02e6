package compose

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkonsowa/restaurants-assistant/config"
	"github.com/imkonsowa/restaurants-assistant/llm"
	"github.com/imkonsowa/restaurants-assistant/maps"
	"github.com/imkonsowa/restaurants-assistant/recommend"
	"github.com/imkonsowa/restaurants-assistant/retrieval"
)

type fakeCompleter struct {
	answer string
	err    error
	seen   []llm.Request
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	f.seen = append(f.seen, req)
	return f.answer, f.err
}

type fakePlaces struct {
	station    maps.Station
	stationErr error
	details    map[string]maps.PlaceInfo
	origins    []maps.LatLng
}

func (f *fakePlaces) NearestStation(_ context.Context, origin maps.LatLng, _ string) (maps.Station, error) {
	f.origins = append(f.origins, origin)
	return f.station, f.stationErr
}

func (f *fakePlaces) PlaceDetails(_ context.Context, placeID string) maps.PlaceInfo {
	return f.details[placeID]
}

func ranked(n int) []recommend.Candidate {
	out := make([]recommend.Candidate, n)
	for i := range out {
		name := fmt.Sprintf("R%d", i+1)
		out[i] = recommend.Candidate{
			Record: retrieval.Record{Name: name, Address: name + " St", PlaceID: name + "-id"},
			Score:  1 - float64(i)/100,
			Route:  maps.Route{DistanceText: "1 km", DurationText: "10 mins", Meters: 1000},
		}
	}
	return out
}

func newComposer(completer llm.Completer, places Places) *Composer {
	return NewComposer(completer, places, config.Pager{PageSize: 3, MaxPages: 3})
}

func TestNextPageSlicesInOrder(t *testing.T) {
	all := ranked(8)
	c := newComposer(&fakeCompleter{answer: "page"}, &fakePlaces{})

	var seen []string
	for pageIndex := 0; pageIndex < 3; pageIndex++ {
		page, err := c.NextPage(context.Background(), all, pageIndex, nil)
		require.NoError(t, err)
		assert.Equal(t, pageIndex+1, page.Index)
		for _, cand := range page.Candidates {
			seen = append(seen, cand.Name)
		}
	}
	assert.Equal(t, []string{"R1", "R2", "R3", "R4", "R5", "R6", "R7", "R8"}, seen)
}

func TestNextPageExhausted(t *testing.T) {
	c := newComposer(&fakeCompleter{answer: "page"}, &fakePlaces{})

	_, err := c.NextPage(context.Background(), ranked(15), 3, nil)
	assert.ErrorIs(t, err, ErrExhausted)

	_, err = c.NextPage(context.Background(), ranked(4), 2, nil)
	assert.ErrorIs(t, err, ErrExhausted, "empty slice")
}

func TestNextPageSections(t *testing.T) {
	all := ranked(3)
	all[0].Instagram = "https://www.instagram.com/dishoom/"
	all[2].Instagram = "https://www.instagram.com/padella"

	answer := "## 1. R1\n" + llm.IgPlaceholder + "\n## 2. R2\n" + llm.IgPlaceholder + "\n## 3. R3\n" + llm.IgPlaceholder + "\nWant more?"
	completer := &fakeCompleter{answer: answer}
	c := newComposer(completer, &fakePlaces{})

	page, err := c.NextPage(context.Background(), all, 0, []string{"user: vegan food"})
	require.NoError(t, err)
	assert.NotContains(t, page.Text, llm.IgPlaceholder)

	require.Len(t, page.Sections, 4)
	assert.Equal(t, "## 1. R1", page.Sections[0].Text)
	assert.Equal(t, "https://www.instagram.com/dishoom/embed/", page.Sections[0].Instagram)
	assert.Empty(t, page.Sections[1].Instagram)
	assert.Equal(t, "https://www.instagram.com/padella/embed/", page.Sections[2].Instagram)
	assert.Equal(t, "Want more?", page.Sections[3].Text)

	require.Len(t, completer.seen, 1)
	assert.Equal(t, llm.RecommendationSysPrompt, completer.seen[0].System)
	assert.Contains(t, completer.seen[0].Context[0], "user: vegan food")
	assert.Contains(t, completer.seen[0].Context[1], `"restaurant":"R1"`)
}

func TestNextPageFallsBackToPlainText(t *testing.T) {
	fare := "£2.80"
	all := ranked(2)
	all[0].Route.FareText = &fare

	c := newComposer(&fakeCompleter{err: errors.New("model down")}, &fakePlaces{})

	page, err := c.NextPage(context.Background(), all, 0, nil)
	require.NoError(t, err)
	assert.Contains(t, page.Text, "## 1. R1")
	assert.Contains(t, page.Text, "Fare: £2.80")
	assert.Contains(t, page.Text, "## 2. R2")
	assert.Len(t, page.Sections, 3)
}

func TestDetail(t *testing.T) {
	all := ranked(6)
	places := &fakePlaces{
		station: maps.Station{Name: "King's Cross St. Pancras", Walk: maps.Route{DistanceText: "0.4 km", DurationText: "5 mins"}},
		details: map[string]maps.PlaceInfo{"R6-id": {Name: "R6", Address: "R6 St"}},
	}
	completer := &fakeCompleter{answer: "R6 is lovely"}
	c := newComposer(completer, places)
	origin := maps.LatLng{Lat: 51.53, Lng: -0.12}

	detail, err := c.Detail(context.Background(), all, 2, 3, origin)
	require.NoError(t, err)
	assert.Equal(t, "R6", detail.Candidate.Name)
	assert.Equal(t, "R6 is lovely", detail.Text)
	require.NotNil(t, detail.Station)
	assert.Equal(t, []maps.LatLng{origin}, places.origins)

	require.Len(t, completer.seen, 1)
	assert.Equal(t, llm.DetailSysPrompt, completer.seen[0].System)
	assert.Contains(t, completer.seen[0].Context[1], "King's Cross St. Pancras")
}

func TestDetailOutOfRange(t *testing.T) {
	all := ranked(4)
	c := newComposer(&fakeCompleter{answer: "x"}, &fakePlaces{})

	tests := map[string]struct{ pageIndex, ordinal int }{
		"zero ordinal":      {1, 0},
		"beyond page size":  {1, 4},
		"beyond candidates": {2, 2},
		"no page shown yet": {0, 1},
		"negative ordinal":  {1, -1},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			before := append([]recommend.Candidate(nil), all...)
			_, err := c.Detail(context.Background(), all, tt.pageIndex, tt.ordinal, maps.LatLng{})
			assert.ErrorIs(t, err, ErrOutOfRange)
			assert.Equal(t, before, all)
		})
	}
}

func TestDetailWithoutStation(t *testing.T) {
	places := &fakePlaces{stationErr: maps.ErrNotFound}
	c := newComposer(&fakeCompleter{err: errors.New("model down")}, places)

	detail, err := c.Detail(context.Background(), ranked(3), 1, 1, maps.LatLng{})
	require.NoError(t, err)
	assert.Nil(t, detail.Station)
	assert.Contains(t, detail.Text, "none within 1 km")
	assert.Contains(t, detail.Text, "## R1")
}

func TestInstagramEmbed(t *testing.T) {
	assert.Equal(t, "https://instagram.com/x/embed/", InstagramEmbed(" https://instagram.com/x/ "))
	assert.Empty(t, InstagramEmbed(""))
}
