package mfm

// SyncWord is the A1 byte with a missing clock bit, as seen on the disk.
const SyncWord = 0x4489

// Writer accumulates MFM bitcells, MSB-first.
type Writer struct {
	buffer      []byte // Output buffer
	bitPos      int    // Current bit position (0-based)
	lastDataBit int    // Last data bit for encoding of next zero
	maxHalfBits int    // Track length in bitcells, 0 for no limit
}

// NewWriter creates a new MFM writer. Bitcells beyond maxHalfBits are dropped.
func NewWriter(maxHalfBits int) *Writer {
	return &Writer{
		buffer:      make([]byte, 0, 1024),
		maxHalfBits: maxHalfBits,
	}
}

// Write a "half" bit, which means one MFM bit
func (w *Writer) writeHalfBit(bitValue int) {
	if w.maxHalfBits > 0 && w.bitPos >= w.maxHalfBits {
		// The track has ended.
		return
	}
	if w.bitPos/8 >= len(w.buffer) {
		w.buffer = append(w.buffer, 0)
	}
	if bitValue != 0 {
		w.buffer[w.bitPos/8] |= 1 << (7 - w.bitPos%8)
	}
	w.bitPos++
}

// WriteBit writes one data bit, which means two MFM bits.
func (w *Writer) WriteBit(dataBit int) {
	if dataBit != 0 {
		// Encoding a one.
		w.writeHalfBit(0)
		w.writeHalfBit(1)
	} else {
		// Encoding a zero.
		w.writeHalfBit(w.lastDataBit ^ 1)
		w.writeHalfBit(0)
	}
	w.lastDataBit = dataBit
}

// WriteByte encodes a data byte as 16 bitcells. It implements io.ByteWriter;
// the error is always nil, bitcells past the end of the track are dropped.
func (w *Writer) WriteByte(data byte) error {
	for i := 7; i >= 0; i-- {
		w.WriteBit(int(data>>i) & 1)
	}
	return nil
}

// WriteGap writes n bytes of the standard 4E gap filler.
func (w *Writer) WriteGap(n int) {
	for i := 0; i < n; i++ {
		w.WriteByte(0x4E)
	}
}

// WriteSync writes twelve zero bytes and three A1 sync marks.
func (w *Writer) WriteSync() {
	for i := 0; i < 12; i++ {
		w.WriteByte(0)
	}
	for i := 0; i < 3; i++ {
		for b := 15; b >= 0; b-- {
			w.writeHalfBit((SyncWord >> b) & 1)
		}
	}
	// A1 ends with a data one
	w.lastDataBit = 1
}

// Len returns the number of bitcells written.
func (w *Writer) Len() int { return w.bitPos }

// Bytes returns the MFM-encoded bitcells.
func (w *Writer) Bytes() []byte {
	return w.buffer[:(w.bitPos+7)/8]
}

// Encode returns the MFM bitcells of a data block.
func Encode(data []byte) []byte {
	w := NewWriter(0)
	for _, b := range data {
		w.WriteByte(b)
	}
	return w.Bytes()
}
