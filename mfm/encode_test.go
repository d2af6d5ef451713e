package mfm

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncode(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
		want []byte
	}{
		{"Zero", []byte{0x00}, []byte{0xAA, 0xAA}},
		{"Ones", []byte{0xFF}, []byte{0x55, 0x55}},
		{"Gap", []byte{0x4E}, []byte{0x92, 0x54}},
		// The clock bit between 0x01 and 0x00 is suppressed
		{"Boundary", []byte{0x01, 0x00}, []byte{0xAA, 0xA9, 0x2A, 0xAA}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Encode(tc.data))
		})
	}
}

func TestWriter_Sync(t *testing.T) {
	w := NewWriter(0)
	w.WriteSync()
	w.WriteByte(0xFE)

	got := w.Bytes()
	assert.Equal(t, 12*16+3*16+16, w.Len())
	for i := 0; i < 24; i++ {
		assert.Equal(t, byte(0xAA), got[i], "byte %d", i)
	}
	assert.Equal(t, []byte{0x44, 0x89, 0x44, 0x89, 0x44, 0x89}, got[24:30])
	// FE after A1: no clock before the first one
	assert.Equal(t, []byte{0x55, 0x54}, got[30:32])
}

func TestWriter_Limit(t *testing.T) {
	w := NewWriter(10)
	w.WriteByte(0xFF)
	w.WriteGap(4)
	assert.Equal(t, 10, w.Len())
	assert.Equal(t, []byte{0x55, 0x40}, w.Bytes())
}

// Helper function: unpack MSB-first bytes into one cell per entry
func unpack(data []byte, n int) []uint8 {
	cells := make([]uint8, n)
	for i := range cells {
		cells[i] = data[i/8] >> (7 - i%8) & 1
	}
	return cells
}

func TestWriter_ByteWriter(t *testing.T) {
	w := NewWriter(16)
	var bw io.ByteWriter = w
	assert.NoError(t, bw.WriteByte(0x4E))
	// Past the end of the track
	assert.NoError(t, bw.WriteByte(0xFF))
	assert.Equal(t, Encode([]byte{0x4E}), w.Bytes())
}

func TestFindSync(t *testing.T) {
	w := NewWriter(0)
	w.WriteGap(2)
	w.WriteSync()
	for _, b := range []byte{0xFE, 0x00, 0xA1, 0x4E, 0xFF} {
		w.WriteByte(b)
	}
	cells := unpack(w.Bytes(), w.Len())
	assert.Equal(t, []int{224, 240, 256}, FindSync(cells))

	// Regular encoding of A1 keeps its clock bit
	plain := Encode([]byte{0xA1, 0xA1, 0xA1})
	assert.Empty(t, FindSync(unpack(plain, len(plain)*8)))
	assert.Empty(t, FindSync(nil))
}
