package crypto

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the compression applied before encryption.
// The id is persisted in the boot header.
type Compression uint8

const (
	CompressionNone   Compression = 0
	CompressionZstd   Compression = 1
	CompressionBrotli Compression = 2
	CompressionLZ4    Compression = 3
)

// String returns the configuration name of the compression.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionBrotli:
		return "brotli"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression resolves a configuration name to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch s {
	case "none", "":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "brotli", "br":
		return CompressionBrotli, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("%w: compression %q", ErrUnknownAlgorithm, s)
	}
}

// Valid reports whether c is a known compression.
func (c Compression) Valid() bool {
	return c <= CompressionLZ4
}

func compress(c Compression, d []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return d, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("crypto: zstd encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(d, make([]byte, 0, len(d))), nil
	case CompressionBrotli:
		var dst bytes.Buffer
		w := brotli.NewWriterLevel(&dst, brotli.DefaultCompression)
		if _, err := w.Write(d); err != nil {
			return nil, fmt.Errorf("crypto: brotli compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("crypto: brotli compress: %w", err)
		}
		return dst.Bytes(), nil
	case CompressionLZ4:
		var dst bytes.Buffer
		w := lz4.NewWriter(&dst)
		if _, err := w.Write(d); err != nil {
			return nil, fmt.Errorf("crypto: lz4 compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("crypto: lz4 compress: %w", err)
		}
		return dst.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: compression id %d", ErrUnknownAlgorithm, uint8(c))
	}
}

func decompress(c Compression, d []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return d, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxPlaintextSize))
		if err != nil {
			return nil, fmt.Errorf("crypto: zstd decoder: %w", err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(d, nil)
		if err != nil {
			return nil, fmt.Errorf("crypto: zstd decompress: %w", err)
		}
		return out, nil
	case CompressionBrotli:
		return readAllLimited(brotli.NewReader(bytes.NewReader(d)))
	case CompressionLZ4:
		return readAllLimited(lz4.NewReader(bytes.NewReader(d)))
	default:
		return nil, fmt.Errorf("%w: compression id %d", ErrUnknownAlgorithm, uint8(c))
	}
}

func readAllLimited(r io.Reader) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, MaxPlaintextSize+1))
	if err != nil {
		return nil, fmt.Errorf("crypto: decompress: %w", err)
	}
	if len(out) > MaxPlaintextSize {
		return nil, ErrPlaintextTooLarge
	}
	return out, nil
}
