// Package catalogue persists the cycle catalogue as a single opaque blob on
// disk, in object storage, or in Redis.
package catalogue

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/alanyoungcy/triarb/internal/domain"
)

// Field numbers of the wire message:
//
//	message Catalogue { int64 built_at_unix_nano = 1; repeated Cycle cycles = 2; }
//	message Cycle     { repeated string legs = 1; }
const (
	fieldBuiltAt protowire.Number = 1
	fieldCycle   protowire.Number = 2
	fieldLeg     protowire.Number = 1
)

// ContentType is the MIME type used when the blob is uploaded.
const ContentType = "application/x-protobuf"

// Marshal encodes cat in protobuf wire format.
func Marshal(cat *domain.Catalogue) []byte {
	var b []byte
	if t := cat.BuiltAt(); !t.IsZero() {
		b = protowire.AppendTag(b, fieldBuiltAt, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(t.UnixNano()))
	}

	for _, c := range cat.Cycles() {
		var inner []byte
		for _, leg := range c {
			inner = protowire.AppendTag(inner, fieldLeg, protowire.BytesType)
			inner = protowire.AppendString(inner, leg)
		}
		b = protowire.AppendTag(b, fieldCycle, protowire.BytesType)
		b = protowire.AppendBytes(b, inner)
	}
	return b
}

// Unmarshal decodes a blob produced by Marshal. Every cycle must carry
// exactly three legs; anything else yields domain.ErrInvalidCatalogue.
// Unknown fields are skipped.
func Unmarshal(b []byte) (*domain.Catalogue, error) {
	var (
		builtAt time.Time
		cycles  []domain.Cycle
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("catalogue: decode tag: %w: %v", domain.ErrInvalidCatalogue, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldBuiltAt && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("catalogue: decode built_at: %w: %v", domain.ErrInvalidCatalogue, protowire.ParseError(n))
			}
			builtAt = time.Unix(0, int64(v))
			b = b[n:]
		case num == fieldCycle && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("catalogue: decode cycle: %w: %v", domain.ErrInvalidCatalogue, protowire.ParseError(n))
			}
			c, err := unmarshalCycle(raw)
			if err != nil {
				return nil, fmt.Errorf("catalogue: decode cycle %d: %w", len(cycles), err)
			}
			cycles = append(cycles, c)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("catalogue: skip field %d: %w: %v", num, domain.ErrInvalidCatalogue, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return domain.NewCatalogue(cycles, builtAt), nil
}

func unmarshalCycle(b []byte) (domain.Cycle, error) {
	var (
		c    domain.Cycle
		legs int
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return c, fmt.Errorf("%w: %v", domain.ErrInvalidCatalogue, protowire.ParseError(n))
		}
		b = b[n:]
		if num != fieldLeg || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return c, fmt.Errorf("%w: %v", domain.ErrInvalidCatalogue, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		leg, n := protowire.ConsumeString(b)
		if n < 0 {
			return c, fmt.Errorf("%w: %v", domain.ErrInvalidCatalogue, protowire.ParseError(n))
		}
		b = b[n:]
		if legs == len(c) {
			return c, fmt.Errorf("%w: more than %d legs", domain.ErrInvalidCatalogue, len(c))
		}
		if _, ok := domain.ParsePair(leg); !ok {
			return c, fmt.Errorf("%w: malformed leg %q", domain.ErrInvalidCatalogue, leg)
		}
		c[legs] = leg
		legs++
	}
	if legs != len(c) {
		return c, fmt.Errorf("%w: %d legs", domain.ErrInvalidCatalogue, legs)
	}
	return c, nil
}
