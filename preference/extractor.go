// Package preference turns free-text user input into a structured dining
// preference and, when the user names one, a resolved starting location.
package preference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/imkonsowa/restaurants-assistant/llm"
	"github.com/imkonsowa/restaurants-assistant/maps"
)

var ErrOffTopic = errors.New("preference: input is not about dining")

type Geocoder interface {
	Geocode(ctx context.Context, address string) (maps.LatLng, error)
}

// Result is a successful extraction. NeedLocation is set when the input
// carried no location; Location and Coordinates are set otherwise.
type Result struct {
	Preference   string
	Location     string
	Coordinates  maps.LatLng
	NeedLocation bool
}

type Extractor struct {
	llm      llm.Completer
	geocoder Geocoder
	city     string
}

func NewExtractor(completer llm.Completer, geocoder Geocoder, city string) *Extractor {
	if city == "" {
		city = "London"
	}

	return &Extractor{
		llm:      completer,
		geocoder: geocoder,
		city:     city,
	}
}

// Extract returns ErrOffTopic when the model judges the input irrelevant or
// its answer cannot be used, and a wrapped maps.ErrNotFound when a location
// was named but could not be geocoded.
func (e *Extractor) Extract(ctx context.Context, input string) (Result, error) {
	answer, err := e.llm.Complete(ctx, llm.Request{
		System: llm.PreferenceSysPrompt,
		User:   "User question: " + input,
	})
	if err != nil {
		slog.Warn("preference extraction failed", "err", err)
		return Result{}, fmt.Errorf("%w: %w", ErrOffTopic, err)
	}

	extraction, err := llm.ParsePreference(answer)
	if err != nil {
		slog.Warn("unusable preference answer", "answer", answer, "err", err)
		return Result{}, fmt.Errorf("%w: %w", ErrOffTopic, err)
	}
	if extraction.OffTopic {
		return Result{}, ErrOffTopic
	}

	result := Result{Preference: extraction.Preference}
	if extraction.Location == "" {
		result.NeedLocation = true
		return result, nil
	}

	result.Location = extraction.Location
	result.Coordinates, err = e.Locate(ctx, extraction.Location)
	if err != nil {
		return result, err
	}

	return result, nil
}

// Locate geocodes a location phrase, biased towards the configured city.
func (e *Extractor) Locate(ctx context.Context, phrase string) (maps.LatLng, error) {
	phrase = llm.CleanLocation(phrase)
	if phrase == "" {
		return maps.LatLng{}, fmt.Errorf("empty location: %w", maps.ErrNotFound)
	}

	return e.geocoder.Geocode(ctx, WithCity(phrase, e.city))
}

// WithCity appends ", <city>" unless the phrase already mentions the city.
func WithCity(phrase, city string) string {
	if strings.Contains(strings.ToLower(phrase), strings.ToLower(city)) {
		return phrase
	}

	return phrase + ", " + city
}
