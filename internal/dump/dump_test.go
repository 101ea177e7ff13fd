package dump

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/libraz/mygramdb/internal/catalog"
	"github.com/libraz/mygramdb/internal/config"
	"github.com/libraz/mygramdb/internal/storage"
)

func testCatalog(t *testing.T) *catalog.TableCatalog {
	t.Helper()
	cat := catalog.New([]config.TableConfig{
		{Name: "places", PrimaryKey: "id", NgramSize: 2},
	})
	tc, err := cat.Get("places")
	if err != nil {
		t.Fatalf("Get(%q) error = %v", "places", err)
	}
	tc.Docs.AddDocument("1", map[string]storage.FilterValue{"status": {Kind: storage.FilterInt, Int: 1}})
	tc.Docs.AddDocument("2", map[string]storage.FilterValue{"status": {Kind: storage.FilterInt, Int: 2}})
	tc.Index.AddDocument(1, "tokyo station")
	tc.Index.AddDocument(2, "osaka castle")
	return cat
}

func TestDumpWriteReadRoundTrip(t *testing.T) {
	cat := testCatalog(t)
	cfg := &config.Config{Tables: []config.TableConfig{{Name: "places", PrimaryKey: "id"}}}
	path := filepath.Join(t.TempDir(), "snapshot.mgdb")

	if err := Write(path, cat, cfg, Options{GTID: "uuid:1-5"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	restored := catalog.New([]config.TableConfig{{Name: "places", PrimaryKey: "id", NgramSize: 2}})
	gtid, err := Read(path, restored)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if gtid != "uuid:1-5" {
		t.Errorf("Read() gtid = %q, want %q", gtid, "uuid:1-5")
	}

	tc, _ := restored.Get("places")
	if tc.Docs.Count() != 2 {
		t.Errorf("restored Docs.Count() = %d, want 2", tc.Docs.Count())
	}
	got := tc.Index.SearchAnd(tc.Index.GenerateQueryNgrams("tokyo"))
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("restored SearchAnd(tokyo) = %v, want [1]", got)
	}
}

func TestDumpWriteReadCompactMode(t *testing.T) {
	cat := testCatalog(t)
	cfg := &config.Config{Tables: []config.TableConfig{{Name: "places", PrimaryKey: "id"}}}
	path := filepath.Join(t.TempDir(), "snapshot.mgdb")

	if err := Write(path, cat, cfg, Options{GTID: "uuid:1-5", Compact: true}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	restored := catalog.New([]config.TableConfig{{Name: "places", PrimaryKey: "id", NgramSize: 2}})
	if _, err := Read(path, restored); err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	tc, _ := restored.Get("places")
	got := tc.Index.SearchAnd(tc.Index.GenerateQueryNgrams("osaka"))
	if len(got) != 1 || got[0] != 2 {
		t.Errorf("restored compact-mode SearchAnd(osaka) = %v, want [2]", got)
	}
}

func TestDumpWriteWithStatistics(t *testing.T) {
	cat := testCatalog(t)
	cfg := &config.Config{Tables: []config.TableConfig{{Name: "places", PrimaryKey: "id"}}}
	path := filepath.Join(t.TempDir(), "snapshot.mgdb")

	opt := Options{
		GTID:       "uuid:1-5",
		WithStats:  true,
		TableStats: []TableStats{{Name: "places", DocumentCount: 2, PostingCount: 4}},
	}
	if err := Write(path, cat, cfg, opt); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	info, err := ReadInfo(path)
	if err != nil {
		t.Fatalf("ReadInfo() error = %v", err)
	}
	if !info.HasStatistics {
		t.Errorf("ReadInfo().HasStatistics = false, want true")
	}
	if info.TableCount != 1 {
		t.Errorf("ReadInfo().TableCount = %d, want 1", info.TableCount)
	}
	if info.GTID != "uuid:1-5" {
		t.Errorf("ReadInfo().GTID = %q, want %q", info.GTID, "uuid:1-5")
	}

	if err := Verify(path); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestDumpReadDetectsTruncatedFileSize(t *testing.T) {
	cat := testCatalog(t)
	cfg := &config.Config{Tables: []config.TableConfig{{Name: "places", PrimaryKey: "id"}}}
	path := filepath.Join(t.TempDir(), "snapshot.mgdb")
	if err := Write(path, cat, cfg, Options{GTID: "uuid:1-5"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if err := os.WriteFile(path, data[:len(data)-1], 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := Verify(path); err == nil {
		t.Fatalf("Verify() on truncated file returned nil error")
	} else if got := err.Error(); !strings.Contains(got, "File size mismatch") {
		t.Errorf("Verify() error = %q, want it to mention %q", got, "File size mismatch")
	}
}

func TestDumpReadDetectsCorruptedBody(t *testing.T) {
	cat := testCatalog(t)
	cfg := &config.Config{Tables: []config.TableConfig{{Name: "places", PrimaryKey: "id"}}}
	path := filepath.Join(t.TempDir(), "snapshot.mgdb")
	if err := Write(path, cat, cfg, Options{GTID: "uuid:1-5"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	// Flip a byte well past the header, inside the body covered by file_crc32,
	// without changing the file's length so the size check still passes.
	data[len(data)-1] ^= 0xFF
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := Verify(path); err == nil {
		t.Fatalf("Verify() on corrupted file returned nil error")
	} else if got := err.Error(); !strings.Contains(got, "CRC32 checksum mismatch") {
		t.Errorf("Verify() error = %q, want it to mention %q", got, "CRC32 checksum mismatch")
	}
}

func TestDumpReadRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.mgdb")
	if err := os.WriteFile(path, []byte("XXXXnotadump"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := Verify(path); err == nil {
		t.Errorf("Verify() on a non-dump file returned nil error")
	}
}

func TestGtidStateFileRoundTrip(t *testing.T) {
	f := GtidStateFile{Path: filepath.Join(t.TempDir(), "state", "gtid.state")}

	if f.Exists() {
		t.Fatalf("Exists() = true before Write")
	}

	if err := f.Write("uuid:1-42"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !f.Exists() {
		t.Fatalf("Exists() = false after Write")
	}

	got, err := f.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got != "uuid:1-42" {
		t.Errorf("Read() = %q, want %q", got, "uuid:1-42")
	}

	if err := f.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if f.Exists() {
		t.Errorf("Exists() = true after Delete")
	}
	// Deleting an already-missing file must not error.
	if err := f.Delete(); err != nil {
		t.Errorf("Delete() on a missing file error = %v", err)
	}
}

func TestGtidStateFileRejectsEmptyContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gtid.state")
	if err := os.WriteFile(path, []byte("  \n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	f := GtidStateFile{Path: path}
	if _, err := f.Read(); err == nil {
		t.Errorf("Read() on a blank state file returned nil error")
	}
}

