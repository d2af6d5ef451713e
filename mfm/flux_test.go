package mfm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergev/fluxclock/flux"
)

func TestSynthesize(t *testing.T) {
	buf, err := Synthesize([]byte{0x44, 0xa9}, 1000)
	require.NoError(t, err)

	require.Equal(t, 7, buf.Len())
	assert.True(t, buf.At(0).IsIndex())
	assert.Equal(t, 1, buf.IndexCount())

	want := []float64{0, 2000, 6000, 9000, 11000, 13000, 16000}
	for i, w := range want {
		assert.Equal(t, w, buf.At(i).Time(), "sample %d", i)
		assert.True(t, buf.At(i).Flags.Has(flux.FlagSynthetic))
	}

	_, err = Synthesize(nil, 1000)
	assert.Error(t, err)
	_, err = Synthesize([]byte{0x80}, 0)
	assert.ErrorIs(t, err, flux.ErrInvalidConfig)
}
