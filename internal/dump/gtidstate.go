package dump

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/libraz/mygramdb/internal/errs"
)

// GtidStateFile is the single-line text file recording the last applied
// GTID, so a restart resumes replication instead of re-scanning the binlog.
type GtidStateFile struct {
	Path string
}

// Write atomically replaces the file's contents with gtid plus a newline.
func (f GtidStateFile) Write(gtid string) error {
	dir := filepath.Dir(f.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.Wrap(errs.Internal, "creating gtid state directory", err)
		}
	}

	tmpPath := f.Path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(gtid+"\n"), 0o644); err != nil {
		return errs.Wrap(errs.Internal, "writing gtid state temp file", err)
	}
	if err := os.Rename(tmpPath, f.Path); err != nil {
		os.Remove(tmpPath)
		return errs.Wrap(errs.Internal, "renaming gtid state file into place", err)
	}
	return nil
}

// Read returns the stored GTID, trimmed. An empty file is rejected.
func (f GtidStateFile) Read() (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", errs.Wrap(errs.NotFound, "reading gtid state file", err)
	}
	gtid := strings.TrimSpace(string(data))
	if gtid == "" {
		return "", errs.New(errs.Corrupt, "gtid state file is empty")
	}
	return gtid, nil
}

// Exists reports whether the state file is present.
func (f GtidStateFile) Exists() bool {
	_, err := os.Stat(f.Path)
	return err == nil
}

// Delete removes the state file, if present.
func (f GtidStateFile) Delete() error {
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return errs.Wrap(errs.Internal, "deleting gtid state file", err)
	}
	return nil
}
