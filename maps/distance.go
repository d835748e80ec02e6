package maps

import (
	"context"
	"fmt"

	gmaps "googlemaps.github.io/maps"
)

// Route holds the travel metrics between two places.
type Route struct {
	DistanceText string  `json:"distance"`
	DurationText string  `json:"duration"`
	FareText     *string `json:"fare,omitempty"`
	// Meters is the distance normalised to metres.
	Meters float64 `json:"meters"`
}

// Km is the route distance in kilometres.
func (r Route) Km() float64 {
	return r.Meters / 1000
}

// Distance computes travel metrics from origin to destination. Both are
// free-text addresses or "lat,lng" pairs. It returns ErrNoRoute when the
// provider has no route for the pair and ErrProvider when it refused the
// request.
func (c *Client) Distance(ctx context.Context, origin, destination string, mode TravelMode) (Route, error) {
	req := &gmaps.DistanceMatrixRequest{
		Origins:      []string{origin},
		Destinations: []string{destination},
		Mode:         gmaps.TravelModeTransit,
	}
	switch mode {
	case Walking:
		req.Mode = gmaps.TravelModeWalking
	case Subway:
		req.TransitMode = []gmaps.TransitMode{gmaps.TransitModeSubway}
	}

	resp, err := call(ctx, c, "distance", func() (*gmaps.DistanceMatrixResponse, error) {
		return c.api.DistanceMatrix(ctx, req)
	})
	if err != nil {
		return Route{}, fmt.Errorf("failed to compute distance to %q: %w", destination, err)
	}

	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 || resp.Rows[0].Elements[0] == nil {
		return Route{}, fmt.Errorf("distance to %q: empty matrix: %w", destination, ErrNoRoute)
	}

	element := resp.Rows[0].Elements[0]
	if element.Status != "OK" || element.Distance.HumanReadable == "" {
		return Route{}, fmt.Errorf("distance to %q (%s): %w", destination, element.Status, ErrNoRoute)
	}

	route := Route{
		DistanceText: element.Distance.HumanReadable,
		DurationText: Unavailable,
		Meters:       float64(element.Distance.Meters),
	}
	if element.Duration > 0 {
		route.DurationText = FormatDuration(element.Duration)
	}
	if element.Fare != nil && element.Fare.Text != "" {
		fare := element.Fare.Text
		route.FareText = &fare
	}

	if route.Meters <= 0 {
		meters, err := ParseDistance(route.DistanceText)
		if err != nil {
			return Route{}, fmt.Errorf("distance to %q: %w: %w", destination, err, ErrNoRoute)
		}
		route.Meters = meters
	}

	return route, nil
}
