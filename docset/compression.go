package docset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression defines the algorithm applied to a serialized set payload.
type Compression uint8

const (
	// CompressionNone stores the roaring payload as is.
	CompressionNone Compression = 0
	// CompressionLZ4 uses LZ4 block compression (fast, good for hot data).
	CompressionLZ4 Compression = 1
	// CompressionZSTD uses ZSTD (better ratio, good for cold data).
	CompressionZSTD Compression = 2
)

// String returns the configuration name of the compression.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression maps a configuration name to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZSTD, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression %q", name)
	}
}

const (
	// minSavings is the ratio a compressed payload must stay under to be kept.
	minSavings = 0.9

	// maxLZ4Ratio is the largest expansion an LZ4 block can encode.
	maxLZ4Ratio = 255
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	// Synchronous decoding keeps a pooled decoder free of background goroutines.
	dec, _ := zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(maxRawLen(maxUniverse, maxUniverse)),
	)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// compress returns the compressed payload and the compression actually used.
// Payloads that do not shrink below minSavings are kept uncompressed.
func compress(data []byte, c Compression) ([]byte, Compression, error) {
	if c == CompressionNone || len(data) == 0 {
		return data, CompressionNone, nil
	}

	var (
		out []byte
		err error
	)

	switch c {
	case CompressionLZ4:
		out, err = compressLZ4(data)
	case CompressionZSTD:
		out = compressZSTD(data)
	default:
		return nil, CompressionNone, fmt.Errorf("unsupported compression %d", c)
	}
	if err != nil {
		return nil, CompressionNone, err
	}

	if len(out) == 0 || float64(len(out)) > float64(len(data))*minSavings {
		return data, CompressionNone, nil
	}
	return out, c, nil
}

func compressLZ4(data []byte) ([]byte, error) {
	buf := make([]byte, lz4.CompressBlockBound(len(data)))

	n, err := lz4.CompressBlock(data, buf, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil // Incompressible
	}
	return buf[:n], nil
}

func compressZSTD(data []byte) []byte {
	enc := getZstdEncoder()
	defer putZstdEncoder(enc)

	return enc.EncodeAll(data, nil)
}

// decompress inflates a payload to exactly rawLen bytes. It never holds more
// than rawLen+1 decoded bytes, so callers bound rawLen before calling.
func decompress(data []byte, c Compression, rawLen int) ([]byte, error) {
	switch c {
	case CompressionNone:
		if len(data) != rawLen {
			return nil, errors.New("payload size mismatch")
		}
		return data, nil

	case CompressionLZ4:
		if rawLen > len(data)*maxLZ4Ratio {
			return nil, fmt.Errorf("raw length %d exceeds lz4 expansion of %d bytes", rawLen, len(data))
		}
		out := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, err
		}
		if n != rawLen {
			return nil, errors.New("decompressed size mismatch")
		}
		return out, nil

	case CompressionZSTD:
		dec := getZstdDecoder()
		if err := dec.Reset(bytes.NewReader(data)); err != nil {
			return nil, err
		}
		defer putZstdDecoder(dec)

		out, err := io.ReadAll(io.LimitReader(dec, int64(rawLen)+1))
		if err != nil {
			return nil, err
		}
		if len(out) != rawLen {
			return nil, errors.New("decompressed size mismatch")
		}
		return out, nil

	default:
		return nil, fmt.Errorf("unsupported compression %d", c)
	}
}
