package sha256

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasherHashDeterministic(t *testing.T) {
	t.Parallel()

	got, err := New().Hash([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", got)
}

func TestHasherNormalization(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		same bool
	}{
		{name: "case", a: "Admission Notice", b: "admission notice", same: true},
		{name: "whitespace", a: "Hello   World\n", b: "hello world", same: true},
		{name: "tabs and newlines", a: "Dean\t(Academic)\r\n", b: "dean (academic)", same: true},
		{name: "different words", a: "hello world", b: "hello worlds"},
		{name: "punctuation kept", a: "B.Tech", b: "btech"},
	}
	h := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a, err := h.Hash([]byte(tt.a))
			require.NoError(t, err)
			b, err := h.Hash([]byte(tt.b))
			require.NoError(t, err)
			if tt.same {
				assert.Equal(t, a, b)
				return
			}
			assert.NotEqual(t, a, b)
		})
	}
}
