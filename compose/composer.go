// Package compose pages through ranked candidates and turns them into
// assistant turns.
package compose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/imkonsowa/restaurants-assistant/config"
	"github.com/imkonsowa/restaurants-assistant/llm"
	"github.com/imkonsowa/restaurants-assistant/maps"
	"github.com/imkonsowa/restaurants-assistant/recommend"
)

var (
	ErrExhausted  = errors.New("compose: no more pages")
	ErrOutOfRange = errors.New("compose: ordinal outside the last page")
)

const (
	DefaultPageSize = 3
	DefaultMaxPages = 3
)

// Places is the part of the maps gateway used for detail turns.
type Places interface {
	NearestStation(ctx context.Context, origin maps.LatLng, destination string) (maps.Station, error)
	PlaceDetails(ctx context.Context, placeID string) maps.PlaceInfo
}

// Section is one restaurant's share of a page, with the embeddable
// Instagram URL when the restaurant has one.
type Section struct {
	Text      string `json:"text"`
	Instagram string `json:"instagram,omitempty"`
}

type Page struct {
	// Index is the page index after this page, i.e. the number of pages shown.
	Index      int                   `json:"index"`
	Candidates []recommend.Candidate `json:"candidates"`
	Text       string                `json:"text"`
	Sections   []Section             `json:"sections"`
}

type Detail struct {
	Candidate recommend.Candidate `json:"candidate"`
	Place     maps.PlaceInfo      `json:"place"`
	Station   *maps.Station       `json:"station,omitempty"`
	Text      string              `json:"text"`
}

type Composer struct {
	llm      llm.Completer
	places   Places
	pageSize int
	maxPages int
}

func NewComposer(completer llm.Completer, places Places, cfg config.Pager) *Composer {
	c := &Composer{
		llm:      completer,
		places:   places,
		pageSize: cfg.PageSize,
		maxPages: cfg.MaxPages,
	}
	if c.pageSize < 1 {
		c.pageSize = DefaultPageSize
	}
	if c.maxPages < 1 {
		c.maxPages = DefaultMaxPages
	}

	return c
}

func (c *Composer) PageSize() int {
	return c.pageSize
}

// NextPage formats ranked[pageIndex*size : pageIndex*size+size]. It returns
// ErrExhausted once maxPages pages were shown or the slice is empty.
func (c *Composer) NextPage(ctx context.Context, ranked []recommend.Candidate, pageIndex int, history []string) (Page, error) {
	if pageIndex < 0 || pageIndex >= c.maxPages {
		return Page{}, ErrExhausted
	}

	start := pageIndex * c.pageSize
	if start >= len(ranked) {
		return Page{}, ErrExhausted
	}
	end := min(start+c.pageSize, len(ranked))
	slice := ranked[start:end]

	text, err := c.formatPage(ctx, slice, history)
	if err != nil {
		slog.Warn("failed to format recommendations, using plain template", "err", err)
		text = plainPage(slice)
	}

	return Page{
		Index:      pageIndex + 1,
		Candidates: slice,
		Text:       strings.ReplaceAll(text, llm.IgPlaceholder, ""),
		Sections:   splitSections(text, slice),
	}, nil
}

// Detail resolves a 1-based ordinal within the most recently shown page.
func (c *Composer) Detail(ctx context.Context, ranked []recommend.Candidate, pageIndex, ordinal int, origin maps.LatLng) (Detail, error) {
	if pageIndex < 1 || ordinal < 1 || ordinal > c.pageSize {
		return Detail{}, ErrOutOfRange
	}

	i := (pageIndex-1)*c.pageSize + ordinal - 1
	if i >= len(ranked) {
		return Detail{}, ErrOutOfRange
	}
	candidate := ranked[i]

	detail := Detail{
		Candidate: candidate,
		Place:     c.places.PlaceDetails(ctx, candidate.PlaceID),
	}

	station, err := c.places.NearestStation(ctx, origin, candidate.Destination())
	if err != nil {
		slog.Warn("failed to find nearest station", "restaurant", candidate.Name, "err", err)
	} else {
		detail.Station = &station
	}

	text, err := c.formatDetail(ctx, detail)
	if err != nil {
		slog.Warn("failed to format restaurant detail, using plain template", "err", err)
		text = plainDetail(detail)
	}
	detail.Text = text

	return detail, nil
}

type pageItem struct {
	Number      int           `json:"number"`
	Name        string        `json:"restaurant"`
	Address     string        `json:"address"`
	Distance    string        `json:"distance"`
	TravelTime  string        `json:"travel_time"`
	Fare        *string       `json:"fare"`
	Instagram   string        `json:"instagram,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	Attributes  any           `json:"attributes,omitempty"`
	Reviews     []maps.Review `json:"reviews,omitempty"`
	Rating      float64       `json:"rating,omitempty"`
	RatingCount int           `json:"rating_count,omitempty"`
}

func (c *Composer) formatPage(ctx context.Context, slice []recommend.Candidate, history []string) (string, error) {
	items := make([]pageItem, 0, len(slice))
	for i, cand := range slice {
		item := pageItem{
			Number:     i + 1,
			Name:       cand.Name,
			Address:    cand.Address,
			Distance:   cand.Route.DistanceText,
			TravelTime: cand.Route.DurationText,
			Fare:       cand.Route.FareText,
			Instagram:  cand.Instagram,
			Tags:       cand.Tags,
		}
		if len(cand.Attributes) > 0 {
			item.Attributes = cand.Attributes
		}
		if cand.Reviews.Available {
			item.Reviews = cand.Reviews.Items
			item.Rating = cand.Reviews.Rating
			item.RatingCount = cand.Reviews.RatingCount
		}
		items = append(items, item)
	}

	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to marshal page: %w", err)
	}

	return c.llm.Complete(ctx, llm.Request{
		System: llm.RecommendationSysPrompt,
		Context: []string{
			"Chat history:\n" + strings.Join(history, "\n"),
			"Here are the restaurants data: " + string(data),
		},
	})
}

func (c *Composer) formatDetail(ctx context.Context, d Detail) (string, error) {
	data, err := json.Marshal(d.Place)
	if err != nil {
		return "", fmt.Errorf("failed to marshal place: %w", err)
	}

	return c.llm.Complete(ctx, llm.Request{
		System: llm.DetailSysPrompt,
		Context: []string{
			"Here are the restaurants data: " + string(data),
			stationLine(d.Station),
		},
	})
}

func stationLine(s *maps.Station) string {
	if s == nil {
		return "There is no station within 1 km."
	}

	return fmt.Sprintf("Here are the nearest metro: %s, distance: %s, and duration by walking: %s",
		s.Name, s.Walk.DistanceText, s.Walk.DurationText)
}

// splitSections cuts a formatted page at the placeholder and pairs each part
// with the Instagram embed of the restaurant in the same position.
func splitSections(text string, slice []recommend.Candidate) []Section {
	var sections []Section
	for i, part := range strings.Split(text, llm.IgPlaceholder) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		section := Section{Text: part}
		if i < len(slice) && slice[i].Instagram != "" {
			section.Instagram = InstagramEmbed(slice[i].Instagram)
		}
		sections = append(sections, section)
	}

	return sections
}

// InstagramEmbed turns a profile or post URL into its embeddable form.
func InstagramEmbed(handle string) string {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return ""
	}

	return strings.TrimRight(handle, "/") + "/embed/"
}
