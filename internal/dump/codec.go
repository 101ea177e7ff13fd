package dump

import (
	"encoding/binary"
	"math"

	"github.com/libraz/mygramdb/internal/errs"
	"github.com/libraz/mygramdb/internal/storage"
)

// byteWriter accumulates a section's bytes so its length and CRC can be
// computed before anything is written to the real file.
type byteWriter struct {
	buf []byte
}

func (w *byteWriter) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *byteWriter) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *byteWriter) bytes(b []byte) {
	w.u32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}
func (w *byteWriter) str(s string) { w.bytes([]byte(s)) }

type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) u32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, errs.New(errs.Corrupt, "truncated dump: expected u32")
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *byteReader) u64() (uint64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, errs.New(errs.Corrupt, "truncated dump: expected u64")
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *byteReader) bytes() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if r.pos+int(n) > len(r.buf) {
		return nil, errs.New(errs.Corrupt, "truncated dump: expected byte slice")
	}
	b := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

func (r *byteReader) str() (string, error) {
	b, err := r.bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// encodeIndexPostings serialises a term -> sorted DocId list map.
func encodeIndexPostings(postings map[string][]storage.DocId) []byte {
	w := &byteWriter{}
	w.u32(uint32(len(postings)))
	for term, ids := range postings {
		w.str(term)
		w.u32(uint32(len(ids)))
		for _, id := range ids {
			w.u32(uint32(id))
		}
	}
	return w.buf
}

func decodeIndexPostings(body []byte) (map[string][]storage.DocId, error) {
	r := &byteReader{buf: body}
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]storage.DocId, n)
	for i := uint32(0); i < n; i++ {
		term, err := r.str()
		if err != nil {
			return nil, err
		}
		count, err := r.u32()
		if err != nil {
			return nil, err
		}
		ids := make([]storage.DocId, count)
		for j := range ids {
			v, err := r.u32()
			if err != nil {
				return nil, err
			}
			ids[j] = storage.DocId(v)
		}
		out[term] = ids
	}
	return out, nil
}

// encodeDocuments serialises the full document set of one table.
func encodeDocuments(docs []*storage.Document) []byte {
	w := &byteWriter{}
	w.u32(uint32(len(docs)))
	for _, d := range docs {
		w.str(d.PrimaryKey)
		w.u32(uint32(d.Id))
		w.u32(uint32(len(d.Filters)))
		for name, v := range d.Filters {
			w.str(name)
			encodeFilterValue(w, v)
		}
	}
	return w.buf
}

func decodeDocuments(body []byte) ([]*storage.Document, error) {
	r := &byteReader{buf: body}
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]*storage.Document, 0, n)
	for i := uint32(0); i < n; i++ {
		pk, err := r.str()
		if err != nil {
			return nil, err
		}
		id, err := r.u32()
		if err != nil {
			return nil, err
		}
		fcount, err := r.u32()
		if err != nil {
			return nil, err
		}
		filters := make(map[string]storage.FilterValue, fcount)
		for j := uint32(0); j < fcount; j++ {
			name, err := r.str()
			if err != nil {
				return nil, err
			}
			v, err := decodeFilterValue(r)
			if err != nil {
				return nil, err
			}
			filters[name] = v
		}
		out = append(out, &storage.Document{PrimaryKey: pk, Id: storage.DocId(id), Filters: filters})
	}
	return out, nil
}

func encodeFilterValue(w *byteWriter, v storage.FilterValue) {
	w.buf = append(w.buf, byte(v.Kind))
	switch v.Kind {
	case storage.FilterNull:
	case storage.FilterBool:
		if v.Bool {
			w.buf = append(w.buf, 1)
		} else {
			w.buf = append(w.buf, 0)
		}
	case storage.FilterInt, storage.FilterTimeOfDay:
		w.u64(uint64(v.Int))
	case storage.FilterUint, storage.FilterEpoch:
		w.u64(v.Uint)
	case storage.FilterDouble:
		w.u64(math.Float64bits(v.Double))
	case storage.FilterString:
		w.str(v.Str)
	}
}

func decodeFilterValue(r *byteReader) (storage.FilterValue, error) {
	if r.pos+1 > len(r.buf) {
		return storage.FilterValue{}, errs.New(errs.Corrupt, "truncated dump: expected filter kind")
	}
	kind := storage.FilterKind(r.buf[r.pos])
	r.pos++
	switch kind {
	case storage.FilterNull:
		return storage.FilterValue{Kind: kind}, nil
	case storage.FilterBool:
		if r.pos+1 > len(r.buf) {
			return storage.FilterValue{}, errs.New(errs.Corrupt, "truncated dump: expected bool")
		}
		b := r.buf[r.pos] != 0
		r.pos++
		return storage.FilterValue{Kind: kind, Bool: b}, nil
	case storage.FilterInt, storage.FilterTimeOfDay:
		v, err := r.u64()
		if err != nil {
			return storage.FilterValue{}, err
		}
		return storage.FilterValue{Kind: kind, Int: int64(v)}, nil
	case storage.FilterUint, storage.FilterEpoch:
		v, err := r.u64()
		if err != nil {
			return storage.FilterValue{}, err
		}
		return storage.FilterValue{Kind: kind, Uint: v}, nil
	case storage.FilterDouble:
		v, err := r.u64()
		if err != nil {
			return storage.FilterValue{}, err
		}
		return storage.FilterValue{Kind: kind, Double: math.Float64frombits(v)}, nil
	case storage.FilterString:
		s, err := r.str()
		if err != nil {
			return storage.FilterValue{}, err
		}
		return storage.FilterValue{Kind: kind, Str: s}, nil
	default:
		return storage.FilterValue{}, errs.New(errs.Unsupported, "unknown filter value kind in dump")
	}
}
