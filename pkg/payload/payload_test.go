package payload

import (
	"bytes"
	"errors"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bitwiseCRC32 is the table-less CRC-32 the bootloader runs on target.
func bitwiseCRC32(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc ^= uint32(b)
		for j := 0; j < 8; j++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0xEDB88320
			} else {
				crc >>= 1
			}
		}
	}
	return ^crc
}

func TestGenerateLengthAndChecksum(t *testing.T) {
	for _, size := range []int{1, 2, 255, 256, 257, 512, 1000, 1024, 4096} {
		p, err := Generate(size)
		require.NoError(t, err)

		assert.Len(t, p.Data, size)
		assert.Equal(t, crc32.ChecksumIEEE(p.Data), p.CRC32, "size %d", size)
		assert.Equal(t, bitwiseCRC32(p.Data), p.CRC32, "size %d", size)
	}
}

func TestGeneratePattern(t *testing.T) {
	p, err := Generate(600)
	require.NoError(t, err)

	for i, b := range p.Data {
		if b != byte(i%256) {
			t.Fatalf("byte %d: got 0x%02X, want 0x%02X", i, b, byte(i%256))
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a, err := Generate(1024)
	require.NoError(t, err)
	b, err := Generate(1024)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(a.Data, b.Data))
	assert.Equal(t, a.CRC32, b.CRC32)
}

func TestGenerateKnownChecksum(t *testing.T) {
	p, err := Generate(256)
	require.NoError(t, err)

	// CRC-32 of 0x00..0xFF.
	assert.Equal(t, uint32(0x29058C73), p.CRC32)
}

func TestGenerateZero(t *testing.T) {
	p, err := Generate(0)
	require.NoError(t, err)

	assert.Equal(t, 0, p.Len())
	assert.Equal(t, uint32(0), p.CRC32)
	assert.ErrorIs(t, p.Validate(), ErrEmpty)
}

func TestGenerateNegative(t *testing.T) {
	_, err := Generate(-1)
	if !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("expected ErrInvalidSize, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	ok, _ := Generate(MaxAppSize)
	assert.NoError(t, ok.Validate())

	big, _ := Generate(MaxAppSize + 1)
	assert.ErrorIs(t, big.Validate(), ErrTooLarge)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.bin")
	data := []byte("firmware image")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, data, p.Data)
	assert.Equal(t, crc32.ChecksumIEEE(data), p.CRC32)

	_, err = Load(filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, err)
}

func TestHeaderRoundTrip(t *testing.T) {
	p, _ := Generate(1024)
	h := NewHeader(p, 3)

	raw, err := h.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, raw, HeaderSize)
	assert.Equal(t, []byte{0x4C, 0x42, 0x56, 0x52}, raw[:4], "magic is little-endian RVBL")

	got, err := ParseHeader(raw)
	require.NoError(t, err)
	assert.Equal(t, h, got)
	assert.True(t, got.Matches(p.Data))
	assert.False(t, got.Matches(p.Data[:1023]))
}

func TestParseHeaderErrors(t *testing.T) {
	_, err := ParseHeader(make([]byte, 4))
	assert.Error(t, err)

	_, err = ParseHeader(make([]byte, HeaderSize))
	assert.ErrorIs(t, err, ErrBadMagic)
}
