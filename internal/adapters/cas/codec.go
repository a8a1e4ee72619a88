// Package cas implements the content-addressed cache store: a sharded memory
// tier, a disk tier with an optional SQLite index, and an optional remote tier.
package cas

import (
	"encoding/json"
	"sync"

	"github.com/klauspost/compress/zstd"
	"go.trai.ch/synapse/internal/core/domain"
	"go.trai.ch/zerr"
)

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

// codec returns the shared zstd encoder and decoder. Both are safe for
// concurrent EncodeAll and DecodeAll calls.
func codec() (*zstd.Encoder, *zstd.Decoder, error) {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			return
		}
		decoder, codecErr = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	return encoder, decoder, codecErr
}

// Encode serializes an entry as zstd-compressed JSON. Disk and remote tiers
// share the encoding.
func Encode(e *domain.CacheEntry) ([]byte, error) {
	enc, _, err := codec()
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrCacheWriteFailed.Error())
	}
	return enc.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
}

// Decode parses data produced by Encode and checks that it holds want.
func Decode(data []byte, want domain.CacheKey) (*domain.CacheEntry, error) {
	_, dec, err := codec()
	if err != nil {
		return nil, zerr.Wrap(err, domain.ErrCacheReadFailed.Error())
	}
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheCorrupt.Error()), "key", want.Hex())
	}
	var e domain.CacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheCorrupt.Error()), "key", want.Hex())
	}
	if e.Key != want {
		return nil, zerr.With(zerr.With(domain.ErrCacheCorrupt, "key", want.Hex()), "found", e.Key.Hex())
	}
	return &e, nil
}
