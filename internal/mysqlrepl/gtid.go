package mysqlrepl

import (
	"encoding/binary"
	"fmt"
	"sort"

	gomysql "github.com/go-mysql-org/go-mysql/mysql"
	"github.com/google/uuid"

	"github.com/libraz/mygramdb/internal/errs"
)

// GtidCodec encodes a canonical GTID-set string into the upstream's binary
// subscription format and decodes inbound GTID_LOG_EVENT fields back to
// canonical form. The wire layout: u64 n_sids, then per source a 16-byte
// UUID, u64 n_intervals, and n_intervals × (u64 start, u64 end_exclusive),
// all little-endian.
type GtidCodec struct{}

// Encode parses s (the canonical "uuid:lo-hi[:lo-hi]...[,uuid:...]" form, via
// the go-mysql-org/go-mysql parser) and produces the binary subscription
// payload. An empty set encodes as eight zero bytes.
func (GtidCodec) Encode(s string) ([]byte, error) {
	if s == "" {
		return make([]byte, 8), nil
	}

	set, err := gomysql.ParseMysqlGTIDSet(s)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidInput, "parsing GTID set", err)
	}
	mset, ok := set.(*gomysql.MysqlGTIDSet)
	if !ok {
		return nil, errs.New(errs.InvalidInput, "not a MySQL GTID set")
	}

	// Deterministic order so Encode is reproducible for a given input.
	uuids := make([]string, 0, len(mset.Sets))
	for u := range mset.Sets {
		uuids = append(uuids, u)
	}
	sort.Strings(uuids)

	buf := make([]byte, 8, 64)
	binary.LittleEndian.PutUint64(buf, uint64(len(uuids)))

	for _, u := range uuids {
		us := mset.Sets[u]
		parsed, err := uuid.Parse(u)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidInput, "parsing source UUID", err)
		}
		buf = append(buf, parsed[:]...)

		n := len(us.Intervals)
		head := make([]byte, 8)
		binary.LittleEndian.PutUint64(head, uint64(n))
		buf = append(buf, head...)

		for _, iv := range us.Intervals {
			if iv.Start <= 0 || iv.Stop <= iv.Start {
				return nil, errs.New(errs.InvalidInput, "malformed GTID interval")
			}
			startEnd := make([]byte, 16)
			binary.LittleEndian.PutUint64(startEnd[0:8], uint64(iv.Start))
			binary.LittleEndian.PutUint64(startEnd[8:16], uint64(iv.Stop))
			buf = append(buf, startEnd...)
		}
	}

	return buf, nil
}

// DecodeEvent reformats a GTID_LOG_EVENT's raw 16-byte source id as an
// 8-4-4-4-12 lowercase hex UUID and appends ":GNO", the canonical per-
// transaction string form.
func (GtidCodec) DecodeEvent(sid [16]byte, gno uint64) string {
	return fmt.Sprintf("%s:%d", FormatSourceUUID(sid), gno)
}

// FormatSourceUUID reformats a raw 16-byte source id as an 8-4-4-4-12
// lowercase hex UUID string, with no trailing GNO.
func FormatSourceUUID(sid [16]byte) string {
	return uuid.UUID(sid).String()
}
