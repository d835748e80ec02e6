// Package maps is the gateway to the maps provider: geocoding, travel
// distances, nearby transit stations, place details and reviews.
package maps

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	gmaps "googlemaps.github.io/maps"

	"github.com/imkonsowa/restaurants-assistant/config"
	"github.com/imkonsowa/restaurants-assistant/retry"
)

var (
	ErrNotFound = errors.New("maps: not found")
	ErrNoRoute  = errors.New("maps: no route")
	// ErrProvider is a request the provider refused, e.g. a denied key or an
	// invalid request. It is never retried.
	ErrProvider = errors.New("maps: request refused")
)

// Unavailable is the marker used for place fields the provider did not return.
const Unavailable = "N/A"

const (
	DefaultBaseURL       = "https://maps.googleapis.com"
	DefaultStationRadius = 1000.0
	DefaultRateLimit     = 50
)

var DefaultStationTypes = []string{"subway_station", "light_rail_station", "train_station", "transit_station"}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (l LatLng) String() string {
	return fmt.Sprintf("%f,%f", l.Lat, l.Lng)
}

type TravelMode string

const (
	Walking TravelMode = "walking"
	Transit TravelMode = "transit"
	// Subway is transit restricted to the underground network.
	Subway TravelMode = "subway"
)

// StatusError is a non-OK status in an otherwise well-formed provider
// response. OVER_QUERY_LIMIT and UNKNOWN_ERROR are temporary and retried.
type StatusError struct {
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return "maps provider status " + e.Status
	}
	return fmt.Sprintf("maps provider status %s: %s", e.Status, e.Message)
}

func (e *StatusError) Temporary() bool {
	return e.Status == "OVER_QUERY_LIMIT" || e.Status == "UNKNOWN_ERROR"
}

func (e *StatusError) Unwrap() error {
	switch {
	case e.Status == "NOT_FOUND" || e.Status == "ZERO_RESULTS":
		return ErrNotFound
	case e.Temporary():
		return nil
	default:
		return ErrProvider
	}
}

// statusPattern matches the errors the maps library builds from response
// statuses: "maps: <STATUS> - <error_message>".
var statusPattern = regexp.MustCompile(`^maps: ([A-Z_]+) - (?s:(.*))$`)

// classify turns a maps library error into a retryable error or a
// retry.Permanent one.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return retry.Permanent(err)
	}

	m := statusPattern.FindStringSubmatch(err.Error())
	if m == nil {
		// the library rejects malformed requests before sending them
		if strings.HasPrefix(err.Error(), "maps: ") {
			return retry.Permanent(fmt.Errorf("%w: %w", ErrProvider, err))
		}
		// transport failure or undecodable body
		return err
	}

	statusErr := &StatusError{Status: m[1], Message: strings.TrimSpace(m[2])}
	if statusErr.Temporary() {
		return statusErr
	}

	return retry.Permanent(statusErr)
}

type Client struct {
	api           *gmaps.Client
	region        string
	locality      string
	stationRadius float64
	stationTypes  []string
	policy        retry.Policy
}

type settings struct {
	baseURL    string
	httpClient *http.Client
	rateLimit  int
	client     *Client
}

type Option func(*settings)

func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) {
		s.httpClient = c
	}
}

func WithRetryPolicy(p retry.Policy) Option {
	return func(s *settings) {
		s.client.policy = p
	}
}

// WithBaseURL points every endpoint at another host, which tests use.
func WithBaseURL(baseURL string) Option {
	return func(s *settings) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithRegion(region, locality string) Option {
	return func(s *settings) {
		s.client.region = region
		s.client.locality = locality
	}
}

// WithStations overrides the station search radius in metres and the place
// types searched for. Zero values keep the defaults.
func WithStations(radius float64, types []string) Option {
	return func(s *settings) {
		if radius > 0 {
			s.client.stationRadius = radius
		}
		if len(types) > 0 {
			s.client.stationTypes = types
		}
	}
}

func WithRateLimit(requestsPerSecond int) Option {
	return func(s *settings) {
		s.rateLimit = requestsPerSecond
	}
}

func NewClient(apiKey string, opts ...Option) (*Client, error) {
	s := &settings{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		rateLimit:  DefaultRateLimit,
		client: &Client{
			region:        "GB",
			locality:      "london",
			stationRadius: DefaultStationRadius,
			stationTypes:  DefaultStationTypes,
			policy:        retry.DefaultPolicy(),
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	apiOpts := []gmaps.ClientOption{
		gmaps.WithAPIKey(apiKey),
		gmaps.WithHTTPClient(s.httpClient),
		gmaps.WithRateLimit(s.rateLimit),
	}
	if s.baseURL != "" {
		apiOpts = append(apiOpts, gmaps.WithBaseURL(s.baseURL))
	}

	api, err := gmaps.NewClient(apiOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	s.client.api = api

	return s.client, nil
}

func NewClientFromConfig(cfg config.Maps, policy retry.Policy) (*Client, error) {
	return NewClient(cfg.APIKey,
		WithBaseURL(cfg.BaseURL),
		WithRegion(cfg.Region, cfg.Locality),
		WithStations(cfg.StationRadius, cfg.StationTypes),
		WithRateLimit(cfg.RateLimit),
		WithRetryPolicy(policy),
	)
}

// call runs one provider request under the retry policy.
func call[T any](ctx context.Context, c *Client, name string, op func() (T, error)) (T, error) {
	return retry.Value(ctx, c.policy, name, func() (T, error) {
		v, err := op()
		return v, classify(ctx, err)
	})
}
