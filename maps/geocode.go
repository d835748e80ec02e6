package maps

import (
	"context"
	"fmt"

	gmaps "googlemaps.github.io/maps"
)

// Geocode resolves a free-text address within the configured region and
// locality. It returns ErrNotFound when the provider has no result.
func (c *Client) Geocode(ctx context.Context, address string) (LatLng, error) {
	req := &gmaps.GeocodingRequest{
		Address: address,
		Region:  c.region,
	}
	if c.locality != "" {
		req.Components = map[gmaps.Component]string{gmaps.ComponentLocality: c.locality}
		if c.region != "" {
			req.Components[gmaps.ComponentCountry] = c.region
		}
	}

	results, err := call(ctx, c, "geocode", func() ([]gmaps.GeocodingResult, error) {
		return c.api.Geocode(ctx, req)
	})
	if err != nil {
		return LatLng{}, fmt.Errorf("failed to geocode %q: %w", address, err)
	}

	if len(results) == 0 {
		return LatLng{}, fmt.Errorf("geocode %q: %w", address, ErrNotFound)
	}

	loc := results[0].Geometry.Location
	return LatLng{Lat: loc.Lat, Lng: loc.Lng}, nil
}
