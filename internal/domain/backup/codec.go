package backup

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"retailledger/internal/core/apperror"
)

// Compression names the encoding of a serialized snapshot.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
)

// maxDecodedBytes bounds a decompressed snapshot.
const maxDecodedBytes = 256 << 20

// Codec serializes snapshots as JSON, optionally zstd-compressed.
// A Codec is safe for concurrent use.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec creates the zstd encoder and decoder once.
func NewCodec() (*Codec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedBytes))
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Codec{encoder: encoder, decoder: decoder}, nil
}

// Encode marshals snap and compresses it when algo is zstd.
func (c *Codec) Encode(snap *Snapshot, algo Compression) ([]byte, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	if algo == CompressionZstd {
		return c.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
	}
	return raw, nil
}

// Decode reverses Encode. Malformed input is a validation error.
func (c *Codec) Decode(data []byte, algo Compression) (*Snapshot, error) {
	if algo == CompressionZstd {
		raw, err := c.decoder.DecodeAll(data, nil)
		if err != nil {
			return nil, apperror.NewValidation("invalid zstd payload").WithDetail("error", err.Error())
		}
		data = raw
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, apperror.NewValidation("invalid backup snapshot").WithDetail("error", err.Error())
	}
	return &snap, nil
}
