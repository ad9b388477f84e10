package payload

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Magic marks a valid image header ("RVBL").
const Magic uint32 = 0x5256424C

// HeaderSize is the encoded header length in bytes.
const HeaderSize = 16

// ErrBadMagic indicates a header without the RVBL magic.
var ErrBadMagic = errors.New("bad header magic")

// Header is the record the bootloader writes at the start of the application
// partition once an update has been verified. Fields are little-endian.
type Header struct {
	Magic   uint32
	Size    uint32
	CRC32   uint32
	Version uint32
}

// NewHeader returns the header describing p.
func NewHeader(p Payload, version uint32) Header {
	return Header{
		Magic:   Magic,
		Size:    uint32(len(p.Data)),
		CRC32:   p.CRC32,
		Version: version,
	}
}

// MarshalBinary encodes the header in flash layout.
func (h Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Size)
	binary.LittleEndian.PutUint32(buf[8:12], h.CRC32)
	binary.LittleEndian.PutUint32(buf[12:16], h.Version)
	return buf, nil
}

// ParseHeader decodes a header from flash layout.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("header too short: %d bytes, need %d", len(data), HeaderSize)
	}
	h := Header{
		Magic:   binary.LittleEndian.Uint32(data[0:4]),
		Size:    binary.LittleEndian.Uint32(data[4:8]),
		CRC32:   binary.LittleEndian.Uint32(data[8:12]),
		Version: binary.LittleEndian.Uint32(data[12:16]),
	}
	if h.Magic != Magic {
		return h, fmt.Errorf("%w: 0x%08X", ErrBadMagic, h.Magic)
	}
	return h, nil
}

// Matches reports whether the header describes data.
func (h Header) Matches(data []byte) bool {
	return h.Magic == Magic && int(h.Size) == len(data) && h.CRC32 == Checksum(data)
}
