// Package external adapts third-party address parsers to gazetteer.Splitter.
package external

import (
	"errors"
	"strings"

	"github.com/jp-address-parser/internal/gazetteer"
)

// ErrLibpostalUnavailable is returned when the binary was built without cgo.
var ErrLibpostalUnavailable = errors.New("external: libpostal requires a cgo build")

// Component is one labelled span from libpostal.
type Component struct {
	Label string
	Value string
}

// ResultFromComponents maps libpostal labels onto a gazetteer result:
// state to Pref, city and city_district to City, suburb to Town and
// road/house_number to Addr. A missing state or city is reported the same way
// the dictionary splitter reports it.
func ResultFromComponents(input string, comps []Component) (*gazetteer.Result, error) {
	var res gazetteer.Result
	var addr []string
	for _, c := range comps {
		value := strings.TrimSpace(c.Value)
		if value == "" {
			continue
		}
		switch c.Label {
		case "state":
			res.Pref = value
		case "city":
			res.City = value + res.City
		case "city_district":
			res.City += value
		case "suburb":
			res.Town = value
		case "road", "house_number":
			addr = append(addr, value)
		}
	}
	res.Addr = strings.Join(addr, "-")

	switch {
	case res.Pref == "":
		return nil, &gazetteer.UnmatchedError{Level: gazetteer.LevelPrefecture, Input: input}
	case res.City == "":
		return nil, &gazetteer.UnmatchedError{Level: gazetteer.LevelCity, Input: input}
	}
	return &res, nil
}
