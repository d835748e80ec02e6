package maps

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkonsowa/restaurants-assistant/retry"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := NewClient("test-key",
		WithBaseURL(srv.URL),
		WithRetryPolicy(retry.Policy{Attempts: 3, Delay: time.Millisecond}),
	)
	require.NoError(t, err)

	return client
}

func writeJSON(t *testing.T, w http.ResponseWriter, body string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	_, err := w.Write([]byte(body))
	require.NoError(t, err)
}

func placeID(r *http.Request) string {
	q := r.URL.Query()
	if id := q.Get("place_id"); id != "" {
		return id
	}
	return q.Get("placeid")
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("")
	assert.Error(t, err)
}

func TestGeocode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/maps/api/geocode/json", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("key"))
		assert.Equal(t, "GB", q.Get("region"))
		assert.Contains(t, q.Get("components"), "locality:london")
		assert.Contains(t, q.Get("components"), "country:GB")

		if q.Get("address") == "Nowhere, London" {
			writeJSON(t, w, `{"status":"ZERO_RESULTS","results":[]}`)
			return
		}
		writeJSON(t, w, `{"status":"OK","results":[{"geometry":{"location":{"lat":51.5308,"lng":-0.1238}}}]}`)
	})
	client := newTestClient(t, mux)

	loc, err := client.Geocode(context.Background(), "Kings Cross, London")
	require.NoError(t, err)
	assert.Equal(t, LatLng{Lat: 51.5308, Lng: -0.1238}, loc)

	_, err = client.Geocode(context.Background(), "Nowhere, London")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGeocodeRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/maps/api/geocode/json", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(t, w, `{"status":"OK","results":[{"geometry":{"location":{"lat":1,"lng":2}}}]}`)
	})
	client := newTestClient(t, mux)

	loc, err := client.Geocode(context.Background(), "Soho")
	require.NoError(t, err)
	assert.Equal(t, LatLng{Lat: 1, Lng: 2}, loc)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGeocodeRetriesQuota(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/maps/api/geocode/json", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(t, w, `{"status":"OVER_QUERY_LIMIT","error_message":"You have exceeded your rate-limit","results":[]}`)
			return
		}
		writeJSON(t, w, `{"status":"OK","results":[{"geometry":{"location":{"lat":1,"lng":2}}}]}`)
	})
	client := newTestClient(t, mux)

	loc, err := client.Geocode(context.Background(), "Soho")
	require.NoError(t, err)
	assert.Equal(t, LatLng{Lat: 1, Lng: 2}, loc)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGeocodeRequestDenied(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/maps/api/geocode/json", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(t, w, `{"status":"REQUEST_DENIED","error_message":"The provided API key is invalid.","results":[]}`)
	})
	client := newTestClient(t, mux)

	_, err := client.Geocode(context.Background(), "Soho")
	assert.ErrorIs(t, err, ErrProvider)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDistance(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/maps/api/distancematrix/json", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch q.Get("destinations") {
		case "subway-only":
			assert.Equal(t, "transit", q.Get("mode"))
			assert.Equal(t, "subway", q.Get("transit_mode"))
			writeJSON(t, w, `{"status":"OK","rows":[{"elements":[{"status":"OK","distance":{"text":"2.4 km","value":2400},"duration":{"text":"14 mins","value":840},"fare":{"currency":"GBP","text":"£2.80","value":2.8}}]}]}`)
		case "walk":
			assert.Equal(t, "walking", q.Get("mode"))
			assert.Empty(t, q.Get("transit_mode"))
			writeJSON(t, w, `{"status":"OK","rows":[{"elements":[{"status":"OK","distance":{"text":"450 m"},"duration":{"text":"6 mins","value":360}}]}]}`)
		default:
			assert.Equal(t, "transit", q.Get("mode"))
			writeJSON(t, w, `{"status":"OK","rows":[{"elements":[{"status":"ZERO_RESULTS"}]}]}`)
		}
	})
	client := newTestClient(t, mux)
	ctx := context.Background()

	route, err := client.Distance(ctx, "51.5,-0.12", "subway-only", Subway)
	require.NoError(t, err)
	assert.Equal(t, "2.4 km", route.DistanceText)
	assert.Equal(t, "14 mins", route.DurationText)
	require.NotNil(t, route.FareText)
	assert.Equal(t, "£2.80", *route.FareText)
	assert.Equal(t, 2400.0, route.Meters)
	assert.Equal(t, 2.4, route.Km())

	route, err = client.Distance(ctx, "51.5,-0.12", "walk", Walking)
	require.NoError(t, err)
	assert.Nil(t, route.FareText)
	assert.Equal(t, "6 mins", route.DurationText)
	assert.Equal(t, 450.0, route.Meters, "metres parsed from text when value is missing")

	_, err = client.Distance(ctx, "51.5,-0.12", "atlantis", Transit)
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestDistanceProviderStatus(t *testing.T) {
	tests := []struct {
		status    string
		calls     int32
		temporary bool
	}{
		{status: "UNKNOWN_ERROR", calls: 3, temporary: true},
		{status: "OVER_QUERY_LIMIT", calls: 3, temporary: true},
		{status: "INVALID_REQUEST", calls: 1},
		{status: "REQUEST_DENIED", calls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			var calls atomic.Int32
			mux := http.NewServeMux()
			mux.HandleFunc("/maps/api/distancematrix/json", func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				writeJSON(t, w, fmt.Sprintf(`{"status":%q,"rows":[]}`, tt.status))
			})
			client := newTestClient(t, mux)

			_, err := client.Distance(context.Background(), "51.5,-0.12", "Dishoom", Transit)
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrNoRoute)
			assert.Equal(t, tt.calls, calls.Load())

			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.status, statusErr.Status)
			assert.Equal(t, tt.temporary, statusErr.Temporary())
			if !tt.temporary {
				assert.ErrorIs(t, err, ErrProvider)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	isPermanent := func(err error) bool {
		var permanent *backoff.PermanentError
		return errors.As(err, &permanent)
	}

	assert.NoError(t, classify(ctx, nil))

	err := classify(ctx, errors.New("maps: OVER_QUERY_LIMIT - You have exceeded your daily request quota"))
	assert.False(t, isPermanent(err))
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, "You have exceeded your daily request quota", statusErr.Message)

	err = classify(ctx, errors.New("maps: NOT_FOUND - "))
	assert.True(t, isPermanent(err))
	assert.ErrorIs(t, err, ErrNotFound)

	err = classify(ctx, errors.New("maps: origins empty"))
	assert.True(t, isPermanent(err))
	assert.ErrorIs(t, err, ErrProvider)

	assert.False(t, isPermanent(classify(ctx, errors.New("unexpected EOF"))))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.True(t, isPermanent(classify(cancelled, context.Canceled)))
}

func TestNearestStation(t *testing.T) {
	var searches atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/maps/api/place/nearbysearch/json", func(w http.ResponseWriter, r *http.Request) {
		searches.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "distance", q.Get("rankby"))
		assert.Empty(t, q.Get("radius"))

		if !strings.HasPrefix(q.Get("location"), "51.") {
			writeJSON(t, w, `{"status":"ZERO_RESULTS","results":[]}`)
			return
		}

		switch q.Get("type") {
		case "subway_station":
			writeJSON(t, w, `{"status":"OK","results":[{"name":"Euston","vicinity":"Euston Rd, London","geometry":{"location":{"lat":51.5282,"lng":-0.1337}}}]}`)
		case "train_station":
			writeJSON(t, w, `{"status":"OK","results":[{"name":"King's Cross St. Pancras","vicinity":"Euston Rd, London N1 9AL","geometry":{"location":{"lat":51.532,"lng":-0.1233}}}]}`)
		case "transit_station":
			writeJSON(t, w, `{"status":"OK","results":[{"name":"Old Street","vicinity":"City Rd, London","geometry":{"location":{"lat":51.52,"lng":-0.1}}}]}`)
		default:
			writeJSON(t, w, `{"status":"ZERO_RESULTS","results":[]}`)
		}
	})
	mux.HandleFunc("/maps/api/distancematrix/json", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "51.532000,-0.123300", r.URL.Query().Get("origins"))
		assert.Equal(t, "walking", r.URL.Query().Get("mode"))
		writeJSON(t, w, `{"status":"OK","rows":[{"elements":[{"status":"OK","distance":{"text":"0.3 km","value":300},"duration":{"text":"4 mins","value":240}}]}]}`)
	})
	client := newTestClient(t, mux)

	station, err := client.NearestStation(context.Background(), LatLng{Lat: 51.5308, Lng: -0.1238}, "1 Granary Sq, London")
	require.NoError(t, err)
	assert.Equal(t, "King's Cross St. Pancras", station.Name)
	assert.Equal(t, "Euston Rd, London N1 9AL", station.Address)
	assert.Equal(t, "0.3 km", station.Walk.DistanceText)
	assert.Equal(t, "4 mins", station.Walk.DurationText)
	assert.Equal(t, int32(len(DefaultStationTypes)), searches.Load())

	_, err = client.NearestStation(context.Background(), LatLng{}, "1 Granary Sq, London")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNearestStationOutsideRadius(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/maps/api/place/nearbysearch/json", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, `{"status":"OK","results":[{"name":"Old Street","vicinity":"City Rd, London","geometry":{"location":{"lat":51.52,"lng":-0.1}}}]}`)
	})
	client := newTestClient(t, mux)

	_, err := client.NearestStation(context.Background(), LatLng{Lat: 51.5308, Lng: -0.1238}, "1 Granary Sq, London")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPlaceDetails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/maps/api/place/details/json", func(w http.ResponseWriter, r *http.Request) {
		fields := r.URL.Query().Get("fields")
		assert.Contains(t, fields, "reservable")
		assert.Contains(t, fields, "opening_hours")

		switch placeID(r) {
		case "full":
			writeJSON(t, w, `{"status":"OK","result":{
				"name":"Dishoom",
				"formatted_address":"5 Stable St, London",
				"international_phone_number":"+44 20 7420 9321",
				"price_level":2,
				"reservable":true,
				"opening_hours":{"open_now":false,"weekday_text":["Monday: 8 AM-11 PM","Tuesday: 8 AM-11 PM"]}
			}}`)
		default:
			writeJSON(t, w, `{"status":"NOT_FOUND"}`)
		}
	})
	client := newTestClient(t, mux)

	info := client.PlaceDetails(context.Background(), "full")
	assert.Equal(t, "Dishoom", info.Name)
	assert.Equal(t, "5 Stable St, London", info.Address)
	assert.Equal(t, "+44 20 7420 9321", info.Phone)
	assert.Equal(t, "Moderate", info.PriceLevel)
	assert.Equal(t, "true", info.Reservable)
	assert.Equal(t, "false", info.OpenNow)
	assert.Equal(t, "Monday: 8 AM-11 PM; Tuesday: 8 AM-11 PM", info.OpeningHours)
	assert.Equal(t, Unavailable, info.WebsiteURI)
	assert.Equal(t, Unavailable, info.MapsURI)

	assert.Equal(t, unavailablePlace(), client.PlaceDetails(context.Background(), "missing"))
}

func TestReviews(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/maps/api/place/details/json", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("fields"), "reviews")

		switch placeID(r) {
		case "reviewed":
			writeJSON(t, w, `{"status":"OK","result":{"rating":4.6,"user_ratings_total":120,"reviews":[
				{"rating":5,"text":"Great chai","time":1725185472},
				{"rating":3,"text":"Long queue","time":1723708800}]}}`)
		case "rated":
			writeJSON(t, w, `{"status":"OK","result":{"rating":4.0,"user_ratings_total":2}}`)
		case "blank":
			writeJSON(t, w, `{"status":"OK","result":{}}`)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	client := newTestClient(t, mux)
	ctx := context.Background()

	reviews := client.Reviews(ctx, "reviewed")
	require.True(t, reviews.Available)
	assert.InDelta(t, 4.6, reviews.Rating, 1e-6)
	assert.Equal(t, 120, reviews.RatingCount)
	assert.Equal(t, []Review{
		{Rating: 5, Text: "Great chai", Published: "2024-09-01"},
		{Rating: 3, Text: "Long queue", Published: "2024-08-15"},
	}, reviews.Items)

	rated := client.Reviews(ctx, "rated")
	require.True(t, rated.Available, "rating summary kept without written reviews")
	assert.InDelta(t, 4.0, rated.Rating, 1e-6)
	assert.Equal(t, 2, rated.RatingCount)
	assert.Empty(t, rated.Items)

	assert.False(t, client.Reviews(ctx, "blank").Available)
	assert.False(t, client.Reviews(ctx, "broken").Available)
}
