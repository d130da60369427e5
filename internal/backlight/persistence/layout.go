package persistence

import (
	"encoding/binary"
	"fmt"
)

// The saved state is a single little-endian uint32 at offset 0.
const recordSize = 4

func encodeRecord(value uint32) []byte {
	buf := make([]byte, recordSize)
	binary.LittleEndian.PutUint32(buf, value)
	return buf
}

func decodeRecord(data []byte) (uint32, error) {
	if len(data) < recordSize {
		return 0, fmt.Errorf("%w: record is %d bytes", ErrNoRecord, len(data))
	}
	return binary.LittleEndian.Uint32(data[:recordSize]), nil
}
