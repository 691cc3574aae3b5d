package ticket

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`^[A-Z0-9]{8}$`)

func TestGenerate_Format(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code, err := Generate()
		require.NoError(t, err)
		assert.Regexp(t, codePattern, code)
	}
}

func TestGenerate_NoDuplicatesAcrossLargeSample(t *testing.T) {
	const n = 100_000

	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		code, err := Generate()
		require.NoError(t, err)

		_, dup := seen[code]
		require.False(t, dup, "duplicate ticket code %q after %d generations", code, i)
		seen[code] = struct{}{}
	}
}
