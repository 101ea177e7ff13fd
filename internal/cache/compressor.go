package cache

import (
	"encoding/binary"

	"github.com/klauspost/compress/zstd"

	"github.com/libraz/mygramdb/internal/errs"
	"github.com/libraz/mygramdb/internal/storage"
)

// ResultCompressor compresses/decompresses a cache entry's payload: the
// pre-pagination list of DocIds. Grounded on klauspost/compress, already a
// dependency of the go-mysql stack, used here directly for the
// compressed-result-bytes backing a cache entry.
type ResultCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewResultCompressor builds a reusable encoder/decoder pair.
func NewResultCompressor() (*ResultCompressor, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "constructing zstd encoder", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "constructing zstd decoder", err)
	}
	return &ResultCompressor{enc: enc, dec: dec}, nil
}

// Compress serialises ids as little-endian u32s and zstd-compresses them.
func (c *ResultCompressor) Compress(ids []storage.DocId) []byte {
	raw := make([]byte, 4*len(ids))
	for i, id := range ids {
		binary.LittleEndian.PutUint32(raw[i*4:], uint32(id))
	}
	return c.enc.EncodeAll(raw, nil)
}

// Decompress reverses Compress. A corrupt payload is reported as a Corrupt
// error so the caller can treat the hit as a miss rather than fail the query.
func (c *ResultCompressor) Decompress(compressed []byte, count int) ([]storage.DocId, error) {
	raw, err := c.dec.DecodeAll(compressed, make([]byte, 0, count*4))
	if err != nil {
		return nil, errs.Wrap(errs.Corrupt, "decompressing cache entry", err)
	}
	if len(raw)%4 != 0 {
		return nil, errs.New(errs.Corrupt, "cache entry payload not a multiple of 4 bytes")
	}
	ids := make([]storage.DocId, len(raw)/4)
	for i := range ids {
		ids[i] = storage.DocId(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return ids, nil
}
