// Package der provides the shared ASN.1 traversal primitives used by the
// Android Key and TPM certificate-extension decoders (androidkey, tpm).
//
// Neither decoder uses encoding/asn1's struct-tag unmarshaling for the
// vendor extensions. Each extension is walked one top-level element at a
// time with Cursor. The "SEQUENCE of OPTIONAL [n] EXPLICIT field" grammar of
// Android's AuthorizationList (fields 1..719, ascending, with gaps) is
// handled here via WalkOptionalExplicitTags; the TPM subjectAltName walk
// uses Cursor alone.
package der

import (
	"encoding/asn1"
	"fmt"
)

// Element is one decoded top-level ASN.1 value, still holding its raw
// content octets for further, targeted unmarshaling by the caller.
type Element struct {
	Tag      int
	Class    int
	Compound bool
	Bytes    []byte // content octets (for EXPLICIT context tags, this is the inner TLV)
}

// Cursor walks a sequence of concatenated top-level ASN.1 elements,
// decoding one at a time and tracking how much of the buffer remains.
type Cursor struct {
	rest []byte
}

// NewCursor returns a Cursor over the given buffer of concatenated ASN.1 elements.
func NewCursor(b []byte) *Cursor {
	return &Cursor{rest: b}
}

// AtEnd reports whether every byte has been consumed.
func (c *Cursor) AtEnd() bool {
	return len(c.rest) == 0
}

// Next decodes and consumes the next top-level element.
func (c *Cursor) Next() (Element, error) {
	if len(c.rest) == 0 {
		return Element{}, fmt.Errorf("der: unexpected end of input")
	}
	var raw asn1.RawValue
	rest, err := asn1.Unmarshal(c.rest, &raw)
	if err != nil {
		return Element{}, fmt.Errorf("der: %w", err)
	}
	c.rest = rest
	return Element{Tag: raw.Tag, Class: raw.Class, Compound: raw.IsCompound, Bytes: raw.Bytes}, nil
}

// Done fails unless every byte handed to the Cursor has been consumed; callers
// use this to enforce the "fully consumed, no trailing bytes" invariant.
func (c *Cursor) Done() error {
	if len(c.rest) != 0 {
		return fmt.Errorf("der: %d trailing byte(s) after last element", len(c.rest))
	}
	return nil
}

// EnterSequence decodes b as exactly one universal SEQUENCE and returns a
// Cursor over its content bytes for further traversal. It fails if b
// contains anything other than a single top-level SEQUENCE.
func EnterSequence(b []byte) (*Cursor, error) {
	var raw asn1.RawValue
	rest, err := asn1.Unmarshal(b, &raw)
	if err != nil {
		return nil, fmt.Errorf("der: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("der: trailing data after top-level sequence")
	}
	if !raw.IsCompound || raw.Tag != asn1.TagSequence || raw.Class != asn1.ClassUniversal {
		return nil, fmt.Errorf("der: expected SEQUENCE, got class %d tag %d", raw.Class, raw.Tag)
	}
	return NewCursor(raw.Bytes), nil
}

// WalkOptionalExplicitTags walks the elements of a "SEQUENCE of OPTIONAL [n]
// EXPLICIT ..." field list, where ascendingTags is the complete grammar's
// list of declared tags in ascending order. Each element present in content
// is matched against the next declared tag strictly greater than the
// previous match, so a repeated or out-of-order tag is rejected; handle is invoked with the element's tag and its
// EXPLICIT-unwrapped content bytes. An element whose tag is not present
// anywhere in the remaining declared grammar is a hard error — spec section
// 4.3 requires tolerating only tags the grammar actually declares.
func WalkOptionalExplicitTags(content []byte, ascendingTags []int, handle func(tag int, contentBytes []byte) error) error {
	cur := NewCursor(content)
	tagIdx := 0
	for !cur.AtEnd() {
		el, err := cur.Next()
		if err != nil {
			return err
		}
		if el.Class != asn1.ClassContextSpecific {
			return fmt.Errorf("der: expected context-specific [n] EXPLICIT field, got class %d tag %d", el.Class, el.Tag)
		}
		for tagIdx < len(ascendingTags) && ascendingTags[tagIdx] != el.Tag {
			tagIdx++
		}
		if tagIdx >= len(ascendingTags) {
			return fmt.Errorf("der: tag [%d] is not declared anywhere in this grammar at this position", el.Tag)
		}
		if err := handle(el.Tag, el.Bytes); err != nil {
			return err
		}
		tagIdx++
	}
	return nil
}
