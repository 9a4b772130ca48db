package docset

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
)

// Binary layout:
//
//	magic "FDS" | version | compression | uvarint universe | uvarint cardinality |
//	uvarint raw length | uvarint payload length | payload
//
// The payload is the roaring portable serialization, compressed when that
// saves at least 10%.
const (
	formatVersion = 1
	maxPayloadLen = math.MaxInt32
	maxUniverse   = math.MaxUint32

	// Portable roaring layout: an 8 byte cookie header, a run flag bit and 8
	// header bytes per container, and at most 8194 bytes of container data
	// (a bitmap container, or an array or run container that is smaller).
	containerSpan     = 1 << 16
	containerHeader   = 8
	maxContainerBytes = 8194
)

// maxRawLen bounds the portable roaring size of a set with the given
// universe and cardinality.
func maxRawLen(universe, cardinality uint64) uint64 {
	cardinality = min(cardinality, universe)
	containers := min((universe+containerSpan-1)/containerSpan, cardinality)
	data := min(4*cardinality+2*containers, containers*maxContainerBytes)
	return 16 + (containers+7)/8 + containers*containerHeader + data
}

var magic = [3]byte{'F', 'D', 'S'}

// ErrCorrupt is returned when a serialized set cannot be decoded.
var ErrCorrupt = errors.New("corrupt document set")

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}

// MarshalBinary encodes the set without compression.
func (s *Set) MarshalBinary() ([]byte, error) {
	return s.MarshalBinaryWith(CompressionNone)
}

// MarshalBinaryWith encodes the set with the requested compression.
// The set is not modified.
func (s *Set) MarshalBinaryWith(c Compression) ([]byte, error) {
	raw, err := s.rb.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("serialize bitmap: %w", err)
	}

	payload, used, err := compress(raw, c)
	if err != nil {
		return nil, fmt.Errorf("compress bitmap: %w", err)
	}

	buf := make([]byte, 0, len(magic)+2+4*binary.MaxVarintLen64+len(payload))
	buf = append(buf, magic[:]...)
	buf = append(buf, formatVersion, byte(used))
	buf = binary.AppendUvarint(buf, uint64(s.universe))
	buf = binary.AppendUvarint(buf, s.rb.GetCardinality())
	buf = binary.AppendUvarint(buf, uint64(len(raw)))
	buf = binary.AppendUvarint(buf, uint64(len(payload)))
	buf = append(buf, payload...)
	return buf, nil
}

// UnmarshalBinary replaces the contents of s with the decoded set.
func (s *Set) UnmarshalBinary(data []byte) error {
	decoded, err := Unmarshal(data)
	if err != nil {
		return err
	}
	*s = *decoded
	return nil
}

// Unmarshal decodes a set produced by MarshalBinary or MarshalBinaryWith.
// No external context is needed: the universe travels with the data.
func Unmarshal(data []byte) (*Set, error) {
	if len(data) < len(magic)+2 {
		return nil, corrupt("truncated header (%d bytes)", len(data))
	}
	if [3]byte(data[:3]) != magic {
		return nil, corrupt("bad magic %q", data[:3])
	}
	if v := data[3]; v != formatVersion {
		return nil, corrupt("unsupported version %d", v)
	}
	c := Compression(data[4])

	rest := data[5:]
	var fields [4]uint64
	for i := range fields {
		v, n := binary.Uvarint(rest)
		if n <= 0 {
			return nil, corrupt("truncated header field %d", i)
		}
		fields[i] = v
		rest = rest[n:]
	}
	universe, cardinality, rawLen, payloadLen := fields[0], fields[1], fields[2], fields[3]

	if universe > maxUniverse {
		return nil, corrupt("universe %d overflows uint32", universe)
	}
	if cardinality > universe {
		return nil, corrupt("cardinality %d exceeds universe %d", cardinality, universe)
	}
	if rawLen > maxPayloadLen || payloadLen > maxPayloadLen {
		return nil, corrupt("payload too large")
	}
	if limit := maxRawLen(universe, cardinality); rawLen > limit {
		return nil, corrupt("raw length %d exceeds %d for %d ids in universe %d", rawLen, limit, cardinality, universe)
	}
	if uint64(len(rest)) != payloadLen {
		return nil, corrupt("payload length %d, want %d", len(rest), payloadLen)
	}

	raw, err := decompress(rest, c, int(rawLen))
	if err != nil {
		return nil, corrupt("%v", err)
	}

	rb := roaring.New()
	if err := rb.UnmarshalBinary(raw); err != nil {
		return nil, corrupt("decode bitmap: %v", err)
	}

	if got := rb.GetCardinality(); got != cardinality {
		return nil, corrupt("cardinality %d, want %d", got, cardinality)
	}
	if !rb.IsEmpty() && uint64(rb.Maximum()) >= universe {
		return nil, corrupt("id %d outside universe %d", rb.Maximum(), universe)
	}

	return &Set{rb: rb, universe: uint32(universe)}, nil
}

// EncodeBase64 encodes the set and returns it as standard padded Base64.
func (s *Set) EncodeBase64(c Compression) (string, error) {
	data, err := s.MarshalBinaryWith(c)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeBase64 is the inverse of EncodeBase64.
func DecodeBase64(text string) (*Set, error) {
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, corrupt("base64: %v", err)
	}
	return Unmarshal(data)
}
