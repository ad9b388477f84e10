// Package payload builds the firmware images pushed through the update protocol.
//
// A test payload is deterministic: the byte values 0x00..0xFF repeated and
// truncated to the requested size, together with its IEEE CRC-32. Repeated
// runs with the same size produce identical bytes, so a failing upload can be
// reproduced byte for byte.
//
// The package also describes the image layout the bootloader stores in flash
// (Header) and the size limit of the application partition (MaxAppSize).
package payload
