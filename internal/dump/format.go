// Package dump implements the durable on-disk snapshot format: an atomic
// writer/reader pair, CRC-32 integrity checks on every section, and the
// single-line GTID state file used to resume replication after a restart.
package dump

import "hash/crc32"

// Magic is the fixed 4-byte file identifier.
var Magic = [4]byte{'M', 'G', 'D', 'B'}

const (
	// Version1 is the only format version this package writes. Future
	// versions would extend MinSupportedVersion..MaxSupportedVersion.
	Version1            uint32 = 1
	MinSupportedVersion uint32 = 1
	MaxSupportedVersion uint32 = 1
)

// Flag bits stored in the V1 header.
const (
	FlagWithStatistics uint32 = 1 << 0
	FlagCompactMode    uint32 = 1 << 1 // rebuild index from doc store text on load
)

func crc(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}
