// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package psbt

import (
	"encoding/binary"
	"errors"

	"github.com/aaron-recompile/taproot/internal/sequencereader"
)

// ErrTruncated is returned when a PSBT buffer ends before a required
// field has been fully read (CodecError::Truncated, spec §7).
var ErrTruncated = errors.New("psbt: truncated")

// byteCursor is internal/sequencereader.SequenceReader[byte] generalized
// with the multi-byte and compact-size reads a binary map format needs.
type byteCursor struct {
	sr *sequencereader.SequenceReader[byte]
}

func newByteCursor(data []byte) *byteCursor {
	return &byteCursor{sr: sequencereader.New(data)}
}

func (c *byteCursor) remaining() int {
	return c.sr.Len()
}

func (c *byteCursor) readN(n int) ([]byte, error) {
	if n < 0 || c.sr.Len() < n {
		return nil, ErrTruncated
	}

	out := make([]byte, n)
	for i := 0; i < n; i++ {
		b, err := c.sr.Next()
		if err != nil {
			return nil, ErrTruncated
		}
		out[i] = b
	}

	return out, nil
}

func (c *byteCursor) readByte() (byte, error) {
	b, err := c.sr.Next()
	if err != nil {
		return 0, ErrTruncated
	}
	return b, nil
}

func (c *byteCursor) readUint32() (uint32, error) {
	b, err := c.readN(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *byteCursor) readInt64() (int64, error) {
	b, err := c.readN(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

// readCompactSize decodes a Bitcoin compact-size varint. It returns
// ErrTruncated when the buffer ends inside the value; non-minimal
// encodings are accepted.
func (c *byteCursor) readCompactSize() (uint64, error) {
	first, err := c.readByte()
	if err != nil {
		return 0, err
	}

	switch {
	case first < 0xfd:
		return uint64(first), nil
	case first == 0xfd:
		b, err := c.readN(2)
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint16(b)), nil
	case first == 0xfe:
		b, err := c.readN(4)
		if err != nil {
			return 0, err
		}
		return uint64(binary.LittleEndian.Uint32(b)), nil
	default:
		b, err := c.readN(8)
		if err != nil {
			return 0, err
		}
		return binary.LittleEndian.Uint64(b), nil
	}
}
