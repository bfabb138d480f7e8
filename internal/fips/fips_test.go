package fips

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoroughCode(t *testing.T) {
	tests := []struct {
		name     string
		borough  string
		expected string
		wantErr  bool
	}{
		{name: "bronx", borough: "Bronx", expected: "005"},
		{name: "manhattan", borough: "Manhattan", expected: "061"},
		{name: "brooklyn", borough: "Brooklyn", expected: "047"},
		{name: "queens", borough: "Queens", expected: "081"},
		{name: "staten island", borough: "Staten Island", expected: "085"},
		{name: "case insensitive", borough: "bRoOkLyN", expected: "047"},
		{name: "surrounding whitespace", borough: "  Queens ", expected: "081"},
		{name: "unknown borough", borough: "Yonkers", wantErr: true},
		{name: "empty", borough: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := BoroughCode(tt.borough)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, code)
		})
	}
}

func TestComposeTractGEOID(t *testing.T) {
	tests := []struct {
		name     string
		prefix   string
		tract    string
		borough  string
		expected string
		wantErr  bool
	}{
		{name: "bronx full width", tract: "012101", borough: "Bronx", expected: "36005012101"},
		{name: "default state prefix", prefix: "", tract: "000100", borough: "Manhattan", expected: "36061000100"},
		{name: "zero pads short codes", tract: "100", borough: "Queens", expected: "36081000100"},
		{name: "explicit prefix", prefix: "36", tract: "012101", borough: "Bronx", expected: "36005012101"},
		{name: "unknown borough is fatal", tract: "012101", borough: "Hoboken", wantErr: true},
		{name: "empty tract code", tract: "", borough: "Bronx", wantErr: true},
		{name: "overlong tract code", tract: "0121011", borough: "Bronx", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComposeTractGEOID(tt.prefix, tt.tract, tt.borough)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.Len(t, got, TractGEOIDLen)
		})
	}
}

func TestTractFromBlockGroup(t *testing.T) {
	got, err := TractFromBlockGroup("360070121011")
	require.NoError(t, err)
	assert.Equal(t, "36007012101", got)
}

func TestTractFromBlockGroupLengthInvariant(t *testing.T) {
	for _, bad := range []string{"", "36007", "36007012101", "3600701210112"} {
		_, err := TractFromBlockGroup(bad)
		assert.Error(t, err, "geoid %q", bad)
	}
}
