package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupEPCScheme(t *testing.T) {
	tests := []struct {
		epc  string
		want string
	}{
		{"3034F8A1C2000000000004D2", "SGTIN-96"},
		{"31 14 00 00", "SSCC-96"},
		{"36:00", "SGTIN-198"},
		{"e2801160600002", "TID (ISO/IEC 15963)"},
		{"AA00", ""},
		{"3", ""},
		{"ZZ00", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LookupEPCScheme(tt.epc), tt.epc)
	}
}

func TestShortEPC(t *testing.T) {
	assert.Equal(t, "…04D2", ShortEPC("3034F8A1C2000000000004D2", 4))
	assert.Equal(t, "04D2", ShortEPC("04D2", 4))
	assert.Equal(t, "ABC", ShortEPC("ABC", 0))
}
