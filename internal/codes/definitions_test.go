package codes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDefinitions_BRTInfoByMap(t *testing.T) {
	raw := []byte(`{"sections":{"Residential":{"30":{"MAP":{
		"1":{"KEY":"1","DATA":{"VALUE":"OWNER"}},
		"2":{"KEY":"2","DATA":{"VALUE":"REFUSED INT"}},
		"9":{"DATA":{"KEY":"9","VALUE":"DOOR TAG"}}
	}}}}}`)

	defs, err := ExtractDefinitions(VendorBRT, raw)
	require.NoError(t, err)

	assert.Equal(t, []CodeDefinition{
		{Code: "1", Description: "OWNER"},
		{Code: "2", Description: "REFUSED INT"},
		{Code: "9", Description: "DOOR TAG"},
	}, defs)
}

func TestExtractDefinitions_BRTFallsBackToKeywordScan(t *testing.T) {
	raw := []byte(`{"Commercial":{
		"5":{"KEY":"5","DATA":{"VALUE":"AGENT"}},
		"6":{"KEY":"6","DATA":{"VALUE":"FRAME"}}
	}}`)

	defs, err := ExtractDefinitions(VendorBRT, raw)
	require.NoError(t, err)

	assert.Equal(t, []CodeDefinition{{Code: "5", Description: "AGENT"}}, defs)
}

func TestExtractDefinitions_MicrosystemsLayouts(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"field codes", `{"field_codes":{"140":{"A":{"description":"AGENT"},"R":{"description":"REFUSED"}}}}`},
		{"flat lookup", `{"flat_lookup":{"140A":"AGENT","140R":"REFUSED","520X":"OTHER"}}`},
		{"legacy keys", `{"140A   9999":"AGENT","140R   9999":"REFUSED","520X":"OTHER"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defs, err := ExtractDefinitions(VendorMicrosystems, []byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, []CodeDefinition{
				{Code: "A", Description: "AGENT"},
				{Code: "R", Description: "REFUSED"},
			}, defs)
		})
	}
}

func TestExtractDefinitions_Errors(t *testing.T) {
	_, err := ExtractDefinitions(VendorBRT, nil)
	assert.Error(t, err)

	_, err = ExtractDefinitions(VendorBRT, []byte("null"))
	assert.Error(t, err)

	_, err = ExtractDefinitions(VendorUnknown, []byte(`{}`))
	assert.Error(t, err)

	_, err = ExtractDefinitions(VendorMicrosystems, []byte(`[1,2]`))
	assert.Error(t, err)
}

func TestExtractDefinitions_FeedsBootstrap(t *testing.T) {
	raw := []byte(`{"field_codes":{"140":{
		"A":{"description":"AGENT"},
		"V":{"description":"VACANT LAND"},
		"E":{"description":"ESTIMATED"}
	}}}`)

	defs, err := ExtractDefinitions(VendorMicrosystems, raw)
	require.NoError(t, err)

	cfg := Bootstrap(VendorMicrosystems, defs)
	assert.Equal(t, []CanonicalCode{"A"}, cfg.Entry)
	assert.Equal(t, []CanonicalCode{"V"}, cfg.Special)
	assert.Equal(t, []CanonicalCode{"E"}, cfg.Estimation)
}
