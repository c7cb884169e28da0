// Package geo answers "how far apart are two cities" and turns distances
// into location similarity scores.
package geo

import (
	_ "embed"
	"fmt"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed cities.yaml
var citiesYAML []byte

// Oracle returns the distance in kilometres between two normalized city
// names. ok is false when either city is unknown.
type Oracle interface {
	Distance(a, b string) (km float64, ok bool)
}

// Coordinate is a point on the globe in decimal degrees.
type Coordinate struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

type cityEntry struct {
	Coordinate `yaml:",inline"`
	Aliases    []string `yaml:"aliases"`
}

// CoordinateOracle computes great-circle distances over a fixed city table.
type CoordinateOracle struct {
	coords  map[string]Coordinate
	aliases map[string]string
}

// DefaultOracle returns a CoordinateOracle over the embedded city table.
func DefaultOracle() *CoordinateOracle {
	o, err := ParseCities(citiesYAML)
	if err != nil {
		panic(fmt.Sprintf("geo: embedded cities.yaml: %v", err))
	}
	return o
}

// ParseCities builds a CoordinateOracle from YAML laid out as
// name: {lat, lon, aliases}.
func ParseCities(data []byte) (*CoordinateOracle, error) {
	var doc map[string]cityEntry
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse cities: %w", err)
	}
	o := &CoordinateOracle{
		coords:  make(map[string]Coordinate, len(doc)),
		aliases: make(map[string]string),
	}
	for name, e := range doc {
		key := fold(name)
		o.coords[key] = e.Coordinate
		for _, a := range e.Aliases {
			o.aliases[fold(a)] = key
		}
	}
	return o, nil
}

// Canonical maps an already-folded city name to its table name.
func (o *CoordinateOracle) Canonical(city string) string {
	if c, ok := o.aliases[city]; ok {
		return c
	}
	return city
}

// Distance implements Oracle.
func (o *CoordinateOracle) Distance(a, b string) (float64, bool) {
	ca, ok := o.coords[o.Canonical(a)]
	if !ok {
		return 0, false
	}
	cb, ok := o.coords[o.Canonical(b)]
	if !ok {
		return 0, false
	}
	return Haversine(ca, cb), true
}

const earthRadiusKm = 6371.0

// Haversine returns the great-circle distance between two points in km.
func Haversine(a, b Coordinate) float64 {
	lat1, lat2 := a.Lat*math.Pi/180, b.Lat*math.Pi/180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Table is an Oracle backed by explicit symmetric pair distances.
type Table map[[2]string]float64

// Set records the distance between a and b in both directions.
func (t Table) Set(a, b string, km float64) Table {
	t[[2]string{a, b}] = km
	t[[2]string{b, a}] = km
	return t
}

// Distance implements Oracle.
func (t Table) Distance(a, b string) (float64, bool) {
	if a == b {
		return 0, true
	}
	d, ok := t[[2]string{a, b}]
	return d, ok
}

// NormalizeCity reduces a raw location string to a comparable city name:
// qualifiers are stripped, case and diacritics are folded, and known aliases
// are mapped when the oracle knows them.
func NormalizeCity(o Oracle, raw string) string {
	c := fold(CityOnly(raw))
	if c == "" {
		return ""
	}
	if co, ok := o.(*CoordinateOracle); ok {
		return co.Canonical(c)
	}
	return c
}

// CityOnly keeps the city part of compound forms such as "City, State",
// "City (Region)", "City / Remote" or "City - State".
func CityOnly(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, " - "); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexAny(s, ",(|/;"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}
