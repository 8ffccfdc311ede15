// Package crcsum computes the CRC-32/IEEE checksum PNG uses for every chunk
// trailer, via the generic table-driven hasher from github.com/snksoft/crc
// rather than hand-rolling the polynomial tables stdlib-style.
package crcsum

import "github.com/snksoft/crc"

// hasher is built once from the IEEE 802.3 parameters (polynomial
// 0xEDB88320 in reflected form), the same parameters PNG's spec mandates.
// The table size (8 bits) trades a little speed for a small table.
var hasher = crc.NewHasher(crc.IEEE, 8)

// Checksum returns the CRC-32/IEEE checksum of data.
func Checksum(data []byte) uint32 {
	return uint32(hasher.CalculateCRC(data))
}

// ChunkChecksum computes the checksum over a chunk's name and payload, as
// PNG requires (CRC is taken over `name ++ data`, not the length field).
func ChunkChecksum(name [4]byte, data []byte) uint32 {
	buf := make([]byte, 0, 4+len(data))
	buf = append(buf, name[:]...)
	buf = append(buf, data...)
	return Checksum(buf)
}
