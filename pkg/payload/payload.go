package payload

import (
	"errors"
	"fmt"
	"hash/crc32"
	"os"
)

// Application partition limits of the bootloader.
const (
	// MaxAppSize is the size of the application partition (448 KiB).
	MaxAppSize = 448 * 1024

	// DefaultSize is the generated payload size used when none is configured.
	DefaultSize = 512
)

// Payload errors.
var (
	// ErrInvalidSize indicates a negative payload size.
	ErrInvalidSize = errors.New("invalid payload size")

	// ErrTooLarge indicates the payload does not fit the application partition.
	ErrTooLarge = errors.New("payload exceeds application partition")

	// ErrEmpty indicates a zero-length payload.
	ErrEmpty = errors.New("payload is empty")
)

// Payload is an immutable firmware image and its checksum.
type Payload struct {
	// Data holds the image bytes. Callers must not modify it.
	Data []byte

	// CRC32 is the IEEE CRC-32 of Data.
	CRC32 uint32
}

// Len returns the payload length in bytes.
func (p Payload) Len() int {
	return len(p.Data)
}

// String returns a short description of the payload.
func (p Payload) String() string {
	return fmt.Sprintf("%d bytes, CRC32 0x%08X", len(p.Data), p.CRC32)
}

// Generate returns size bytes of the repeating 0x00..0xFF pattern and its CRC-32.
// A size of zero yields an empty payload with checksum 0.
func Generate(size int) (Payload, error) {
	if size < 0 {
		return Payload{}, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	return FromBytes(data), nil
}

// FromBytes wraps data as a payload. The slice is retained, not copied.
func FromBytes(data []byte) Payload {
	return Payload{
		Data:  data,
		CRC32: Checksum(data),
	}
}

// Load reads a firmware image from path.
func Load(path string) (Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Payload{}, fmt.Errorf("read firmware %s: %w", path, err)
	}
	return FromBytes(data), nil
}

// Checksum computes the IEEE CRC-32 used by the bootloader
// (reflected polynomial 0xEDB88320, initial value and final XOR 0xFFFFFFFF).
func Checksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// Validate checks that the payload fits the application partition.
// Empty payloads are reported with ErrEmpty so callers can apply their own policy.
func (p Payload) Validate() error {
	switch {
	case len(p.Data) == 0:
		return ErrEmpty
	case len(p.Data) > MaxAppSize:
		return fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(p.Data), MaxAppSize)
	}
	return nil
}
