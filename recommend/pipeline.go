// Package recommend enriches retrieved candidates with travel and review
// data and ranks them.
package recommend

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/imkonsowa/restaurants-assistant/config"
	"github.com/imkonsowa/restaurants-assistant/maps"
	"github.com/imkonsowa/restaurants-assistant/retrieval"
)

var ErrTooFar = errors.New("recommend: no candidates close enough")

// Router is the part of the maps gateway the pipeline needs.
type Router interface {
	Distance(ctx context.Context, origin, destination string, mode maps.TravelMode) (maps.Route, error)
	Reviews(ctx context.Context, placeID string) maps.Reviews
}

type Candidate struct {
	retrieval.Record
	Score   float64      `json:"score"`
	Route   maps.Route   `json:"route"`
	Reviews maps.Reviews `json:"reviews"`
}

type Pipeline struct {
	router         Router
	maxCandidateKm float64
	maxMeanKm      float64
	concurrency    int
}

// NewPipeline builds a pipeline. A zero maxCandidateKm disables the
// per-candidate cap.
func NewPipeline(router Router, cfg config.Recommend) *Pipeline {
	p := &Pipeline{
		router:         router,
		maxCandidateKm: cfg.MaxCandidateKm,
		maxMeanKm:      cfg.MaxMeanKm,
		concurrency:    cfg.Concurrency,
	}
	if p.maxMeanKm <= 0 {
		p.maxMeanKm = 50
	}
	if p.concurrency < 1 {
		p.concurrency = 4
	}

	return p
}

// EnrichAndRank routes from origin to every candidate and drops those that
// cannot be routed. Survivors are sorted by score descending, then distance
// ascending. ErrTooFar is returned when nothing survives or the mean distance
// exceeds the configured limit.
func (p *Pipeline) EnrichAndRank(ctx context.Context, origin maps.LatLng, raw []retrieval.Candidate) ([]Candidate, error) {
	enriched := make([]*Candidate, len(raw))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, rc := range raw {
		g.Go(func() error {
			route, err := p.route(gctx, origin, rc.Destination())
			if err != nil {
				slog.Debug("dropping candidate without route", "restaurant", rc.Name, "err", err)
				return nil
			}
			if p.maxCandidateKm > 0 && route.Km() > p.maxCandidateKm {
				slog.Debug("dropping distant candidate", "restaurant", rc.Name, "km", route.Km())
				return nil
			}

			enriched[i] = &Candidate{
				Record:  rc.Record,
				Score:   rc.Score,
				Route:   route,
				Reviews: p.router.Reviews(gctx, rc.PlaceID),
			}
			return nil
		})
	}
	// workers never fail; Wait only joins them
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ranked := make([]Candidate, 0, len(enriched))
	for _, c := range enriched {
		if c != nil {
			ranked = append(ranked, *c)
		}
	}
	if len(ranked) == 0 {
		return nil, ErrTooFar
	}

	Rank(ranked)

	if mean := MeanKm(ranked); mean > p.maxMeanKm {
		slog.Info("candidates too far", "mean_km", mean, "limit_km", p.maxMeanKm)
		return nil, ErrTooFar
	}

	return ranked, nil
}

// route prefers the underground and falls back to any transit.
func (p *Pipeline) route(ctx context.Context, origin maps.LatLng, destination string) (maps.Route, error) {
	route, err := p.router.Distance(ctx, origin.String(), destination, maps.Subway)
	if err == nil {
		return route, nil
	}

	return p.router.Distance(ctx, origin.String(), destination, maps.Transit)
}

// Rank sorts by score descending, then distance ascending.
func Rank(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Route.Meters < candidates[j].Route.Meters
	})
}

func MeanKm(candidates []Candidate) float64 {
	if len(candidates) == 0 {
		return 0
	}

	var total float64
	for _, c := range candidates {
		total += c.Route.Km()
	}

	return total / float64(len(candidates))
}
