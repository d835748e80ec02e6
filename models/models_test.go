package models

import (
	"encoding/binary"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

func encodePoint(t *testing.T, g geom.T) []byte {
	t.Helper()

	data, err := ewkb.Marshal(g, binary.LittleEndian)
	require.NoError(t, err)

	return data
}

func TestLocationScan(t *testing.T) {
	point := geom.NewPointFlat(geom.XY, []float64{-0.1246, 51.5308}).SetSRID(4326)
	raw := encodePoint(t, point)

	t.Run("bytes", func(t *testing.T) {
		var loc Location
		require.NoError(t, loc.Scan(raw))
		assert.True(t, loc.Valid)
		assert.InDelta(t, -0.1246, loc.Lon, 1e-9)
		assert.InDelta(t, 51.5308, loc.Lat, 1e-9)
	})

	t.Run("hex string", func(t *testing.T) {
		var loc Location
		require.NoError(t, loc.Scan(hex.EncodeToString(raw)))
		assert.Equal(t, NewLocation(51.5308, -0.1246), loc)
	})

	t.Run("null", func(t *testing.T) {
		loc := NewLocation(2, 1)
		require.NoError(t, loc.Scan(nil))
		assert.False(t, loc.Valid)
	})

	t.Run("not a point", func(t *testing.T) {
		line := geom.NewLineStringFlat(geom.XY, []float64{0, 0, 1, 1})
		var loc Location
		assert.Error(t, loc.Scan(encodePoint(t, line)))
	})

	t.Run("unsupported type", func(t *testing.T) {
		var loc Location
		assert.Error(t, loc.Scan(42))
	})
}

func TestLocationString(t *testing.T) {
	assert.Equal(t, "51.530800,-0.124600", NewLocation(51.5308, -0.1246).String())
}
