package dump

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/libraz/mygramdb/internal/catalog"
	"github.com/libraz/mygramdb/internal/config"
	"github.com/libraz/mygramdb/internal/errs"
)

// TableStats is the per-table aggregate written into the optional statistics
// section.
type TableStats struct {
	Name          string `yaml:"name"`
	DocumentCount int    `yaml:"document_count"`
	PostingCount  int    `yaml:"posting_count"`
}

// Options controls one Write call.
type Options struct {
	GTID       string
	Compact    bool // store per-document text and rebuild the index on load
	WithStats  bool
	TableStats []TableStats
}

// Write snapshots cat to path atomically. The whole file is assembled in
// memory first — a dump is bounded by the catalog it mirrors, which already
// lives in RAM — then written to a temp file, fsynced, and renamed over
// path. A crash at any point before the rename leaves the previous file, if
// any, untouched; path never observes a partial write.
func Write(path string, cat *catalog.TableCatalog, cfg *config.Config, opt Options) error {
	cfgBytes, err := yaml.Marshal(cfg)
	if err != nil {
		return errs.Wrap(errs.Internal, "marshalling config section", err)
	}

	var statsBytes []byte
	if opt.WithStats {
		statsBytes, err = yaml.Marshal(opt.TableStats)
		if err != nil {
			return errs.Wrap(errs.Internal, "marshalling statistics section", err)
		}
	}

	tableSection := encodeTableSection(cat, opt.Compact)

	var flags uint32
	if opt.Compact {
		flags |= FlagCompactMode
	}
	if opt.WithStats {
		flags |= FlagWithStatistics
	}

	// Everything after the V1 header: the config/statistics/table sections.
	// file_crc32 covers these section bytes only; the header fields, including
	// file_crc32 itself, are outside the CRC.
	bodyAfterHeader := &byteWriter{}
	appendSection(bodyAfterHeader, cfgBytes)
	if opt.WithStats {
		appendSection(bodyAfterHeader, statsBytes)
	}
	appendSection(bodyAfterHeader, tableSection)

	v1 := &byteWriter{}
	v1.u32(flags)
	v1.u64(uint64(time.Now().Unix()))
	// total_file_size and file_crc32 are patched in below once known; write
	// zero placeholders first so header_size is already final.
	totalSizeOff := len(v1.buf)
	v1.u64(0)
	crcOff := len(v1.buf)
	v1.u32(0)
	v1.str(opt.GTID)

	file := &byteWriter{}
	file.buf = append(file.buf, Magic[:]...)
	file.u32(Version1)
	file.u32(uint32(len(v1.buf)))
	file.buf = append(file.buf, v1.buf...)
	file.buf = append(file.buf, bodyAfterHeader.buf...)

	totalSize := uint32(len(file.buf))
	fileCRC := crc(bodyAfterHeader.buf)

	// Patch total_file_size and file_crc32 in place now that both are known.
	headerStart := len(Magic) + 4 /*version*/ + 4 /*header_size*/
	binary.LittleEndian.PutUint64(file.buf[headerStart+totalSizeOff:], uint64(totalSize))
	binary.LittleEndian.PutUint32(file.buf[headerStart+crcOff:], fileCRC)

	return atomicWrite(path, file.buf)
}

func appendSection(w *byteWriter, body []byte) {
	w.u32(uint32(len(body)))
	w.u32(crc(body))
	w.buf = append(w.buf, body...)
}

func encodeTableSection(cat *catalog.TableCatalog, compact bool) []byte {
	tables := cat.All()

	section := &byteWriter{}
	section.u32(uint32(len(tables)))
	for name, tc := range tables {
		section.str(name)

		var indexBytes []byte
		if compact {
			text := tc.Index.SnapshotText()
			tw := &byteWriter{}
			tw.u32(uint32(len(text)))
			for id, t := range text {
				tw.u32(uint32(id))
				tw.str(t)
			}
			indexBytes = tw.buf
		} else {
			indexBytes = encodeIndexPostings(tc.Index.Snapshot())
		}
		appendSection(section, indexBytes)

		docBytes := encodeDocuments(tc.Docs.Snapshot())
		appendSection(section, docBytes)
	}
	return section.buf
}

// atomicWrite is the O_CREAT|O_EXCL|O_NOFOLLOW temp-file-then-rename path:
// on any failure the temp file is removed and path is left untouched.
func atomicWrite(path string, content []byte) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.Wrap(errs.Internal, "creating dump directory", err)
		}
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY|syscall.O_NOFOLLOW, 0o600)
	if err != nil {
		return errs.Wrap(errs.Internal, "creating temp dump file", err)
	}
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := f.Write(content); err != nil {
		f.Close()
		return errs.Wrap(errs.Internal, "writing dump file", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errs.Wrap(errs.Internal, "fsyncing dump file", err)
	}
	if err := f.Close(); err != nil {
		return errs.Wrap(errs.Internal, "closing dump file", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errs.Wrap(errs.Internal, "renaming dump file into place", err)
	}
	return nil
}
