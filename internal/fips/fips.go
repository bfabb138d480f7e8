// Package fips implements the fixed-width Census geographic identifier
// conventions used throughout the tagging pipeline: block-group GEOIDs,
// their parent tract GEOIDs, and the state+county+tract composite built
// from a borough name.
package fips

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Fixed-width GEOID lengths per the Census encoding:
// state(2) + county(3) + tract(6) = 11, block group adds one suffix digit.
const (
	TractGEOIDLen      = 11
	BlockGroupGEOIDLen = 12
	tractCodeLen       = 6
)

// DefaultStatePrefix is the New York state FIPS code.
const DefaultStatePrefix = "36"

// boroughCounty maps NYC borough names to their county FIPS codes.
var boroughCounty = map[string]string{
	"manhattan":     "061",
	"bronx":         "005",
	"brooklyn":      "047",
	"queens":        "081",
	"staten island": "085",
}

// BoroughCode returns the county FIPS code for a NYC borough name.
// The name is matched case-insensitively. An unrecognized borough is an
// input error; callers treat it as fatal.
func BoroughCode(name string) (string, error) {
	code, ok := boroughCounty[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", eris.Errorf("fips: unknown borough %q", name)
	}
	return code, nil
}

// ComposeTractGEOID builds the 11-character tract GEOID from a tract code
// and a borough name: statePrefix + county code + zero-padded tract code.
// An empty statePrefix defaults to New York.
func ComposeTractGEOID(statePrefix, tractCode, borough string) (string, error) {
	if statePrefix == "" {
		statePrefix = DefaultStatePrefix
	}
	county, err := BoroughCode(borough)
	if err != nil {
		return "", err
	}
	tractCode = strings.TrimSpace(tractCode)
	if tractCode == "" || len(tractCode) > tractCodeLen {
		return "", eris.Errorf("fips: tract code %q is not a %d-digit code", tractCode, tractCodeLen)
	}
	padded := strings.Repeat("0", tractCodeLen-len(tractCode)) + tractCode
	return statePrefix + county + padded, nil
}

// TractFromBlockGroup derives the tract GEOID from a block-group GEOID by
// dropping the trailing block-group digit. The input must be exactly 12
// characters; anything else is an error, never a silent slice.
func TractFromBlockGroup(geoid string) (string, error) {
	if len(geoid) != BlockGroupGEOIDLen {
		return "", eris.Errorf("fips: block group GEOID %q is not %d characters", geoid, BlockGroupGEOIDLen)
	}
	return geoid[:TractGEOIDLen], nil
}
