package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCardNumber(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expected  string
		expectErr bool
	}{
		{name: "Ten digits", raw: "0123456789", expected: "0123456789"},
		{name: "EM prefix", raw: "EM 0123456789", expected: "0123456789"},
		{name: "Lowercase prefix without space", raw: "em0123456789", expected: "0123456789"},
		{name: "Short number is padded", raw: "12345", expected: "0000012345"},
		{name: "Inner spaces", raw: " 01 2345 6789 ", expected: "0123456789"},
		{name: "Empty", raw: "   ", expected: ""},
		{name: "Letters", raw: "01234abcde", expectErr: true},
		{name: "Too long", raw: "01234567890", expectErr: true},
		{name: "Security phone number", raw: "91897373", expectErr: true},
		{name: "Padded security phone number", raw: "0091897373", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeCardNumber(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestValidStreamName(t *testing.T) {
	assert.True(t, ValidStreamName("prusa-1"))
	assert.True(t, ValidStreamName("sla_printer"))
	assert.False(t, ValidStreamName("Prusa"))
	assert.False(t, ValidStreamName("prusa 1"))
	assert.False(t, ValidStreamName(""))
}
