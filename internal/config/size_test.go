package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	cases := map[string]int64{
		"512":    512,
		"10B":    10,
		"1kb":    1024,
		"10MB":   10 << 20,
		"1.5 GB": 3 << 29,
		"1TB":    1 << 40,
		" 2gb ":  2 << 30,
	}
	for in, want := range cases {
		got, err := ParseSize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, bad := range []string{"", "MB", "-1MB", "1PB", "1,5GB"} {
		_, err := ParseSize(bad)
		assert.Error(t, err, bad)
	}
}
