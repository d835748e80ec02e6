package models

import (
	"encoding/hex"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

// Location is a nullable PostGIS point read from EWKB. Valid is false for
// NULL columns.
type Location struct {
	Lat, Lon float64
	Valid    bool
}

func NewLocation(lat, lon float64) Location {
	return Location{Lat: lat, Lon: lon, Valid: true}
}

// String renders the point as "lat,lon", the form routing providers accept.
func (l Location) String() string {
	return fmt.Sprintf("%f,%f", l.Lat, l.Lon)
}

func (l *Location) Scan(value interface{}) error {
	if value == nil {
		*l = Location{}
		return nil
	}

	data, ok := value.([]byte)
	if !ok {
		text, isText := value.(string)
		if !isText {
			return fmt.Errorf("scan location: expected string or []byte, got %T", value)
		}

		var err error
		if data, err = hex.DecodeString(text); err != nil {
			return fmt.Errorf("scan location: %w", err)
		}
	}

	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("scan location: %w", err)
	}

	point, ok := g.(*geom.Point)
	if !ok {
		return fmt.Errorf("scan location: expected Point, got %T", g)
	}

	*l = NewLocation(point.Y(), point.X())

	return nil
}

// RestaurantDocument is one row of the pre-built similarity index. Content
// holds the serialized restaurant record keyed by restaurant name.
type RestaurantDocument struct {
	ID        uint64          `gorm:"primaryKey" json:"id"`
	Content   string          `json:"content"`
	Tags      pq.StringArray  `gorm:"type:text[]" json:"tags"`
	Location  Location        `json:"location"`
	Embedding pgvector.Vector `gorm:"type:vector(1536)" json:"-"`
}

func (d *RestaurantDocument) TableName() string {
	return "restaurant_documents"
}

// ScoredDocument is a search hit with its relevance score, 1 - cosine distance.
type ScoredDocument struct {
	Content  string         `json:"content"`
	Tags     pq.StringArray `gorm:"type:text[]" json:"tags"`
	Location Location       `json:"location"`
	Score    float64        `json:"score"`
}
