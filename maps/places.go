package maps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	gmaps "googlemaps.github.io/maps"
)

var (
	detailsFields = fieldMasks("name", "formatted_address", "international_phone_number", "price_level", "reservable", "url", "website", "opening_hours")
	reviewsFields = fieldMasks("rating", "user_ratings_total", "reviews")
)

func fieldMasks(names ...string) []gmaps.PlaceDetailsFieldMask {
	masks := make([]gmaps.PlaceDetailsFieldMask, 0, len(names))
	for _, name := range names {
		masks = append(masks, gmaps.PlaceDetailsFieldMask(name))
	}
	return masks
}

// Station is the closest transit station to a point together with the
// walking route from the station to a destination.
type Station struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Walk    Route  `json:"walk"`
}

// NearestStation finds the closest transit station within the configured
// radius of origin and the walking route from it to destination. Each
// station type is searched ranked by distance.
func (c *Client) NearestStation(ctx context.Context, origin LatLng, destination string) (Station, error) {
	center := &gmaps.LatLng{Lat: origin.Lat, Lng: origin.Lng}

	var (
		nearest gmaps.PlacesSearchResult
		best    = c.stationRadius
		found   bool
	)
	for _, placeType := range c.stationTypes {
		req := &gmaps.NearbySearchRequest{
			Location: center,
			RankBy:   gmaps.RankByDistance,
			Type:     gmaps.PlaceType(placeType),
		}

		resp, err := call(ctx, c, "nearest_station", func() (gmaps.PlacesSearchResponse, error) {
			return c.api.NearbySearch(ctx, req)
		})
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return Station{}, fmt.Errorf("failed to search %s near %s: %w", placeType, origin, err)
		}
		if len(resp.Results) == 0 {
			continue
		}

		place := resp.Results[0]
		loc := place.Geometry.Location
		if d := Haversine(origin, LatLng{Lat: loc.Lat, Lng: loc.Lng}); d <= best {
			nearest, best, found = place, d, true
		}
	}

	if !found {
		return Station{}, fmt.Errorf("station within %.0fm of %s: %w", c.stationRadius, origin, ErrNotFound)
	}

	station := Station{Name: nearest.Name, Address: nearest.Vicinity}
	if station.Address == "" {
		station.Address = nearest.FormattedAddress
	}
	if station.Address == "" {
		station.Address = station.Name
	}
	if station.Name == "" {
		station.Name = station.Address
	}

	from := LatLng{Lat: nearest.Geometry.Location.Lat, Lng: nearest.Geometry.Location.Lng}
	walk, err := c.Distance(ctx, from.String(), destination, Walking)
	if err != nil {
		return Station{}, err
	}
	station.Walk = walk

	return station, nil
}

// PlaceInfo is best-effort: every field the provider did not return holds
// Unavailable.
type PlaceInfo struct {
	Name         string `json:"restaurant"`
	Address      string `json:"address"`
	Phone        string `json:"phone_number"`
	PriceLevel   string `json:"price_level"`
	Reservable   string `json:"reservable"`
	MapsURI      string `json:"google_maps_uri"`
	WebsiteURI   string `json:"website_uri"`
	OpenNow      string `json:"open_now"`
	OpeningHours string `json:"opening_hours"`
}

func unavailablePlace() PlaceInfo {
	return PlaceInfo{
		Name:         Unavailable,
		Address:      Unavailable,
		Phone:        Unavailable,
		PriceLevel:   Unavailable,
		Reservable:   Unavailable,
		MapsURI:      Unavailable,
		WebsiteURI:   Unavailable,
		OpenNow:      Unavailable,
		OpeningHours: Unavailable,
	}
}

var priceLevels = map[int]string{
	1: "Inexpensive",
	2: "Moderate",
	3: "Expensive",
	4: "Very expensive",
}

func orUnavailable(s string) string {
	if s == "" {
		return Unavailable
	}
	return s
}

func boolOrUnavailable(b *bool) string {
	if b == nil {
		return Unavailable
	}
	return strconv.FormatBool(*b)
}

func (c *Client) details(ctx context.Context, name, placeID string, fields []gmaps.PlaceDetailsFieldMask) (gmaps.PlaceDetailsResult, error) {
	req := &gmaps.PlaceDetailsRequest{
		PlaceID: placeID,
		Fields:  fields,
	}

	return call(ctx, c, name, func() (gmaps.PlaceDetailsResult, error) {
		return c.api.PlaceDetails(ctx, req)
	})
}

// PlaceDetails never fails; provider errors yield an all-unavailable PlaceInfo.
func (c *Client) PlaceDetails(ctx context.Context, placeID string) PlaceInfo {
	info := unavailablePlace()

	resp, err := c.details(ctx, "place_details", placeID, detailsFields)
	if err != nil {
		slog.Warn("failed to fetch place details", "place_id", placeID, "err", err)
		return info
	}

	info.Name = orUnavailable(resp.Name)
	info.Address = orUnavailable(resp.FormattedAddress)
	info.Phone = orUnavailable(resp.InternationalPhoneNumber)
	if level, ok := priceLevels[resp.PriceLevel]; ok {
		info.PriceLevel = level
	}
	info.Reservable = boolOrUnavailable(resp.Reservable)
	info.MapsURI = orUnavailable(resp.URL)
	info.WebsiteURI = orUnavailable(resp.Website)
	if hours := resp.OpeningHours; hours != nil {
		info.OpenNow = boolOrUnavailable(hours.OpenNow)
		if len(hours.WeekdayText) > 0 {
			info.OpeningHours = strings.Join(hours.WeekdayText, "; ")
		}
	}

	return info
}

type Review struct {
	Rating    float64 `json:"rating"`
	Text      string  `json:"text"`
	Published string  `json:"published"`
}

// Reviews is either Available with the provider's rating summary and
// reviews, or the unavailable marker. A rated place without written reviews
// is still Available.
type Reviews struct {
	Available   bool     `json:"available"`
	Rating      float64  `json:"rating,omitempty"`
	RatingCount int      `json:"rating_count,omitempty"`
	Items       []Review `json:"reviews,omitempty"`
}

// Reviews never fails; any provider error collapses to unavailable.
func (c *Client) Reviews(ctx context.Context, placeID string) Reviews {
	resp, err := c.details(ctx, "reviews", placeID, reviewsFields)
	if err != nil {
		slog.Warn("failed to fetch reviews", "place_id", placeID, "err", err)
		return Reviews{}
	}

	if len(resp.Reviews) == 0 && resp.Rating == 0 && resp.UserRatingsTotal == 0 {
		return Reviews{}
	}

	reviews := Reviews{
		Available:   true,
		Rating:      float64(resp.Rating),
		RatingCount: resp.UserRatingsTotal,
	}
	for _, r := range resp.Reviews {
		review := Review{Rating: float64(r.Rating), Text: r.Text}
		if r.Time > 0 {
			review.Published = time.Unix(int64(r.Time), 0).UTC().Format(time.DateOnly)
		}
		reviews.Items = append(reviews.Items, review)
	}

	return reviews
}
