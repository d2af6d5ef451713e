package fluxio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sergev/fluxclock/flux"
)

// Helper function: build an OOB block with a little-endian payload
func kfBlock(oobType byte, words ...uint32) []byte {
	size := 4 * len(words)
	block := []byte{kfOOB, oobType, byte(size), byte(size >> 8)}
	for _, w := range words {
		block = append(block, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	return block
}

func TestParseKryoFlux(t *testing.T) {
	var data []byte
	data = append(data, kfBlock(0x04)...)                 // KFInfo, ignored
	data = append(data, 0x20)                             // Flux1 at position 0: 32
	data = append(data, 0x01, 0x00)                       // Flux2 at position 1: 256
	data = append(data, kfBlock(kfOOBIndex, 3, 10, 0)...) // Index in the cell at position 3
	data = append(data, kfOvl16, 0x10)                    // Ovl16 + Flux1 at position 3: 0x10010
	data = append(data, kfNop2, 0x00)                     // Nop2 at position 5
	data = append(data, kfFlux3, 0x01, 0x00)              // Flux3 at position 7: 256
	data = append(data, kfOOB, kfOOBEOF, kfOOB, kfOOB)
	data = append(data, 0x55) // After EOF, ignored

	buf, err := ParseKryoFlux(data)
	require.NoError(t, err)
	assert.Equal(t, KryoFluxSampleClock, buf.SampleRate())

	want := []struct {
		ticks float64
		index bool
	}{
		{32, false},
		{288, false},
		{298, true},
		{288 + 0x10010, false},
		{288 + 0x10010 + 256, false},
	}
	require.Equal(t, len(want), buf.Len())
	nsPerTick := 1e9 / KryoFluxSampleClock
	for i, w := range want {
		s := buf.At(i)
		assert.InDelta(t, w.ticks*nsPerTick, s.Time(), 1e-3, "sample %d", i)
		assert.Equal(t, w.index, s.IsIndex(), "sample %d", i)
	}
}

func TestParseKryoFlux_IndexClamp(t *testing.T) {
	// The sample counter overshoots the cell, so the index lands on its flux
	var data []byte
	data = append(data, 0x20)
	data = append(data, kfBlock(kfOOBIndex, 1, 1000, 0)...)
	data = append(data, 0x30)
	data = append(data, kfBlock(kfOOBIndex, 2, 5, 0)...)

	buf, err := ParseKryoFlux(data)
	require.NoError(t, err)
	require.Equal(t, 4, buf.Len())
	nsPerTick := 1e9 / KryoFluxSampleClock
	assert.True(t, buf.At(1).IsIndex())
	assert.InDelta(t, 0x50*nsPerTick, buf.At(1).Time(), 1e-3)
	assert.False(t, buf.At(2).IsIndex())
	assert.True(t, buf.At(3).IsIndex())
	assert.InDelta(t, (0x50+5)*nsPerTick, buf.At(3).Time(), 1e-3)
	assert.Equal(t, 2, buf.IndexCount())
}

func TestParseKryoFlux_Errors(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"Empty", nil},
		{"Flux2", []byte{0x20, 0x01}},
		{"Flux3", []byte{kfFlux3, 0x01}},
		{"OOBHeader", []byte{kfOOB, kfOOBIndex}},
		{"OOBData", []byte{kfOOB, kfOOBIndex, 12, 0, 1, 2}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseKryoFlux(tc.data)
			assert.Error(t, err)
		})
	}
}

func TestDetect_KryoFlux(t *testing.T) {
	assert.Equal(t, FormatKryoFlux, Detect("track00.0.raw.kf", nil))
	assert.Equal(t, FormatKryoFlux, Detect("track00.0", kfBlock(0x04)))
	assert.Equal(t, FormatSCP, Detect("dump.scp", nil))

	f, err := ParseFormat("KryoFlux")
	require.NoError(t, err)
	assert.Equal(t, FormatKryoFlux, f)
	assert.Equal(t, "kf", f.String())
}

func TestLoad_KryoFlux(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track00.0")
	data := append(kfBlock(kfOOBIndex, 0, 0, 0), 0x40, 0x40)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	buf, err := Load(path, FormatAuto, DefaultSampleFreqHz)
	require.NoError(t, err)
	require.Equal(t, 3, buf.Len())
	assert.True(t, buf.At(0).IsIndex())
	assert.Equal(t, flux.Flags(0), buf.At(2).Flags)
}
