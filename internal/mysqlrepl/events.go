// Package mysqlrepl drives the upstream MySQL binlog subscription and turns
// it into a typed Event stream the rest of the core consumes. It leans on
// github.com/go-mysql-org/go-mysql/replication for wire-level event decoding
// and layers table routing, required filter gating, and GTID cursor tracking
// on top.
package mysqlrepl

import (
	"strconv"

	"github.com/libraz/mygramdb/internal/storage"
)

// Gtid identifies the transaction that produced a BinlogEvent.
type Gtid struct {
	UUID string
	GNO  uint64
}

func (g Gtid) String() string {
	if g.UUID == "" {
		return ""
	}
	return g.UUID + ":" + strconv.FormatUint(g.GNO, 10)
}

// Kind discriminates which fields of Event are populated: exactly one of
// insert/update/delete/ddl shape applies to a given instance.
type Kind int

const (
	KindInsert Kind = iota
	KindUpdate
	KindDelete
	KindDdl
)

// Event is the concrete carrier for every BinlogEvent variant. Unused fields
// for a given Kind are zero.
type Event struct {
	Kind  Kind
	Table string
	Gtid  Gtid

	PrimaryKey string
	Text       string // Insert/Delete
	NewText    string // Update
	OldText    string // Update
	Filters    map[string]storage.FilterValue

	SQLUpper string // Ddl
	DdlVerb  string // "TRUNCATE", "DROP", "ALTER"
}
