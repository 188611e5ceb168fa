package normalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bedshift/internal/foundation/errors"
)

type color string

const (
	red   color = "red"
	green color = "green"
)

func newColors() *Normalizer[color] {
	return NewNormalizer(map[string]color{"Red": red, "green": green}, red)
}

func TestNormalize(t *testing.T) {
	n := newColors()
	assert.Equal(t, green, n.Normalize("  GREEN "))
	assert.Equal(t, red, n.Normalize("red"))
	assert.Equal(t, red, n.Normalize("blue"), "unknown falls back to default")
	assert.True(t, n.Known("Green"))
	assert.False(t, n.Known("blue"))
	assert.Equal(t, []string{"green", "red"}, n.ValidKeys())
}

func TestNormalizeWithError(t *testing.T) {
	n := newColors()

	v, err := n.NormalizeWithError("Red")
	require.NoError(t, err)
	assert.Equal(t, red, v)

	_, err = n.NormalizeWithError("blue")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	valid, _ := ce.Context().GetString("valid")
	assert.Equal(t, "green, red", valid)
}
