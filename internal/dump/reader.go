package dump

import (
	"encoding/binary"
	"os"

	"github.com/libraz/mygramdb/internal/catalog"
	"github.com/libraz/mygramdb/internal/errs"
	"github.com/libraz/mygramdb/internal/storage"
)

type v1Header struct {
	flags         uint32
	timestamp     uint64
	totalFileSize uint64
	fileCRC       uint32
	gtid          string
	headerSize    uint32
}

// parsed is everything Read/Verify/Info share after validating the header.
type parsed struct {
	header       v1Header
	bodyAfterHdr []byte // sections after the V1 header, CRC'd by fileCRC
	r            *byteReader
}

func parseFile(data []byte) (*parsed, error) {
	if len(data) < 8 {
		return nil, errs.New(errs.Corrupt, "file too small to contain a header")
	}
	if data[0] != Magic[0] || data[1] != Magic[1] || data[2] != Magic[2] || data[3] != Magic[3] {
		return nil, errs.New(errs.Corrupt, "bad magic: not a dump file")
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version < MinSupportedVersion || version > MaxSupportedVersion {
		return nil, errs.New(errs.Unsupported, "unsupported dump format version")
	}

	r := &byteReader{buf: data, pos: 8}
	headerSize, err := r.u32()
	if err != nil {
		return nil, err
	}
	headerStart := r.pos
	if headerStart+int(headerSize) > len(data) {
		return nil, errs.New(errs.Corrupt, "truncated dump: header overruns file")
	}
	hr := &byteReader{buf: data[headerStart : headerStart+int(headerSize)]}

	flags, err := hr.u32()
	if err != nil {
		return nil, err
	}
	timestamp, err := hr.u64()
	if err != nil {
		return nil, err
	}
	totalFileSize, err := hr.u64()
	if err != nil {
		return nil, err
	}
	fileCRC, err := hr.u32()
	if err != nil {
		return nil, err
	}
	gtid, err := hr.str()
	if err != nil {
		return nil, err
	}

	bodyStart := headerStart + int(headerSize)
	bodyAfterHdr := data[bodyStart:]

	if totalFileSize != uint64(len(data)) {
		return nil, errs.New(errs.Corrupt, "File size mismatch")
	}
	if crc(bodyAfterHdr) != fileCRC {
		return nil, errs.New(errs.Corrupt, "CRC32 checksum mismatch")
	}

	return &parsed{
		header: v1Header{
			flags:         flags,
			timestamp:     timestamp,
			totalFileSize: totalFileSize,
			fileCRC:       fileCRC,
			gtid:          gtid,
			headerSize:    headerSize,
		},
		bodyAfterHdr: bodyAfterHdr,
		r:            &byteReader{buf: bodyAfterHdr},
	}, nil
}

// Read validates the file and restores it into cat's pre-allocated table
// contexts, returning the GTID stored at dump time so replication can
// resume from it.
func Read(path string, cat *catalog.TableCatalog) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errs.Wrap(errs.NotFound, "reading dump file", err)
	}
	p, err := parseFile(data)
	if err != nil {
		return "", err
	}

	if _, err := readSectionFromReader(p.r); err != nil { // config section, not needed by Read
		return "", err
	}
	if p.header.flags&FlagWithStatistics != 0 {
		if _, err := readSectionFromReader(p.r); err != nil {
			return "", err
		}
	}
	tableBytes, err := readSectionFromReader(p.r)
	if err != nil {
		return "", err
	}

	if err := restoreTables(tableBytes, cat, p.header.flags&FlagCompactMode != 0); err != nil {
		return "", err
	}

	return p.header.gtid, nil
}

func readSectionFromReader(r *byteReader) ([]byte, error) {
	length, err := r.u32()
	if err != nil {
		return nil, err
	}
	wantCRC, err := r.u32()
	if err != nil {
		return nil, err
	}
	if r.pos+int(length) > len(r.buf) {
		return nil, errs.New(errs.Corrupt, "truncated dump: section overruns file")
	}
	body := r.buf[r.pos : r.pos+int(length)]
	r.pos += int(length)
	if crc(body) != wantCRC {
		return nil, errs.New(errs.Corrupt, "CRC32 checksum mismatch")
	}
	return body, nil
}

func restoreTables(tableBytes []byte, cat *catalog.TableCatalog, compact bool) error {
	r := &byteReader{buf: tableBytes}
	count, err := r.u32()
	if err != nil {
		return err
	}

	tables := cat.All()
	for i := uint32(0); i < count; i++ {
		name, err := r.str()
		if err != nil {
			return err
		}
		indexBytes, err := readSectionFromReader(r)
		if err != nil {
			return err
		}
		docBytes, err := readSectionFromReader(r)
		if err != nil {
			return err
		}

		tc, ok := tables[name]
		if !ok {
			// Table present in the dump but dropped from the running
			// config: skip its payload, nothing to restore into.
			continue
		}

		docs, err := decodeDocuments(docBytes)
		if err != nil {
			return err
		}
		tc.Docs.Restore(docs)

		if compact {
			tr := &byteReader{buf: indexBytes}
			n, err := tr.u32()
			if err != nil {
				return err
			}
			text := make(map[storage.DocId]string, n)
			for j := uint32(0); j < n; j++ {
				id, err := tr.u32()
				if err != nil {
					return err
				}
				t, err := tr.str()
				if err != nil {
					return err
				}
				text[storage.DocId(id)] = t
			}
			tc.Index.RebuildFromDocStore(text)
		} else {
			postings, err := decodeIndexPostings(indexBytes)
			if err != nil {
				return err
			}
			tc.Index.Restore(postings)
		}
	}
	return nil
}

// Verify runs the file-level validation Read does without deserialising
// section bodies into the catalog. The per-table index and doc-store CRCs
// inside the table section are checked only by Read.
func Verify(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(errs.NotFound, "reading dump file", err)
	}
	p, err := parseFile(data)
	if err != nil {
		return err
	}

	if _, err := readSectionFromReader(p.r); err != nil {
		return err
	}
	if p.header.flags&FlagWithStatistics != 0 {
		if _, err := readSectionFromReader(p.r); err != nil {
			return err
		}
	}
	if _, err := readSectionFromReader(p.r); err != nil {
		return err
	}
	return nil
}

// Info is the {version, gtid, table_count, flags, file_size, timestamp,
// has_statistics} summary returned by DUMP INFO without touching the catalog.
type Info struct {
	Version        uint32
	GTID           string
	TableCount     uint32
	Flags          uint32
	FileSizeBytes  int64
	TimestampUnix  uint64
	HasStatistics  bool
}

func ReadInfo(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, errs.Wrap(errs.NotFound, "reading dump file", err)
	}
	p, err := parseFile(data)
	if err != nil {
		return Info{}, err
	}
	version := binary.LittleEndian.Uint32(data[4:8])

	if _, err := readSectionFromReader(p.r); err != nil {
		return Info{}, err
	}
	if p.header.flags&FlagWithStatistics != 0 {
		if _, err := readSectionFromReader(p.r); err != nil {
			return Info{}, err
		}
	}
	tableBytes, err := readSectionFromReader(p.r)
	if err != nil {
		return Info{}, err
	}
	tr := &byteReader{buf: tableBytes}
	count, err := tr.u32()
	if err != nil {
		return Info{}, err
	}

	return Info{
		Version:       version,
		GTID:          p.header.gtid,
		TableCount:    count,
		Flags:         p.header.flags,
		FileSizeBytes: int64(len(data)),
		TimestampUnix: p.header.timestamp,
		HasStatistics: p.header.flags&FlagWithStatistics != 0,
	}, nil
}
