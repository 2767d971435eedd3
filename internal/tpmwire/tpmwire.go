// Package tpmwire provides the fallible big-endian readers shared by the
// TPMS_ATTEST and TPMT_PUBLIC decoders: fixed-width integers and the TPM2B
// length-prefixed byte blob (a big-endian uint16 length followed by exactly
// that many bytes). Every reader is position-advancing and bounds-checked
// against the bytes remaining in the buffer, per spec section 4.1/5 ("parsers
// must bound allocations by the length prefixes they have already validated
// against remaining input").
//
// This generalizes the teacher's (fxamacker/webauthn's tpm package)
// getTPM2bData/getTPM2bName helper functions into a reusable cursor so the
// same bounds-checking logic isn't duplicated across TPMS_ATTEST and
// TPMT_PUBLIC parsing.
package tpmwire

import (
	"encoding/binary"
	"fmt"
)

// Reader is a bounds-checked, position-advancing cursor over a TPM wire buffer.
type Reader struct {
	buf []byte
	pos int
}

// NewReader returns a Reader over buf, starting at position 0.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// AtEnd reports whether every byte has been consumed.
func (r *Reader) AtEnd() bool {
	return r.Remaining() == 0
}

func (r *Reader) need(n int) error {
	if r.Remaining() < n {
		return fmt.Errorf("tpmwire: unexpected EOF, need %d byte(s), have %d", n, r.Remaining())
	}
	return nil
}

// U8 reads one byte.
func (r *Reader) U8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// U16 reads a big-endian uint16.
func (r *Reader) U16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos : r.pos+2])
	r.pos += 2
	return v, nil
}

// U32 reads a big-endian uint32.
func (r *Reader) U32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

// U64 reads a big-endian uint64.
func (r *Reader) U64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

// Bytes reads exactly n raw bytes.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

// TPM2B reads a TPM2B_* style length-prefixed blob: a big-endian uint16
// length, then exactly that many bytes. The returned slice never outruns
// the enclosing buffer.
func (r *Reader) TPM2B() ([]byte, error) {
	n, err := r.U16()
	if err != nil {
		return nil, err
	}
	return r.Bytes(int(n))
}

// Done fails unless every byte in the buffer has been consumed, enforcing
// the "fully consumed, no trailing bytes" invariant spec section 3 requires
// of TPMS_ATTEST and TPMT_PUBLIC.
func (r *Reader) Done() error {
	if !r.AtEnd() {
		return fmt.Errorf("tpmwire: %d trailing byte(s)", r.Remaining())
	}
	return nil
}
