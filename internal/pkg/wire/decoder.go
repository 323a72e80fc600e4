package wire

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultMaxSequenceLen bounds sequence counts accepted by a Decoder.
const DefaultMaxSequenceLen uint32 = 1 << 16

// byteChunk caps a single allocation when reading byte sequences.
const byteChunk = 64 * 1024

// Option configures a Decoder.
type Option func(*Decoder)

// WithMaxSequenceLen caps the element count of any decoded sequence.
// Zero disables the check.
func WithMaxSequenceLen(n uint32) Option {
	return func(d *Decoder) {
		d.maxSeq = n
	}
}

// Decoder reads wire values from an ordered byte stream.
type Decoder struct {
	r       io.Reader
	maxSeq  uint32
	scratch [16]byte
}

func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	d := &Decoder{r: r, maxSeq: DefaultMaxSequenceLen}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Decoder) readFull(buf []byte) error {
	if _, err := io.ReadFull(d.r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrUnexpectedEnd
		}
		return err
	}
	return nil
}

func (d *Decoder) fixed(n int) ([]byte, error) {
	buf := d.scratch[:n]
	if err := d.readFull(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *Decoder) Uint8() (uint8, error) {
	buf, err := d.fixed(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (d *Decoder) Uint16() (uint16, error) {
	buf, err := d.fixed(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf), nil
}

func (d *Decoder) Uint32() (uint32, error) {
	buf, err := d.fixed(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf), nil
}

func (d *Decoder) Uint64() (uint64, error) {
	buf, err := d.fixed(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf), nil
}

func (d *Decoder) Int8() (int8, error) {
	v, err := d.Uint8()
	return int8(v), err
}

func (d *Decoder) Int16() (int16, error) {
	v, err := d.Uint16()
	return int16(v), err
}

func (d *Decoder) Int32() (int32, error) {
	v, err := d.Uint32()
	return int32(v), err
}

func (d *Decoder) Int64() (int64, error) {
	v, err := d.Uint64()
	return int64(v), err
}

func (d *Decoder) Float32() (float32, error) {
	v, err := d.Uint32()
	return math.Float32frombits(v), err
}

func (d *Decoder) Float64() (float64, error) {
	v, err := d.Uint64()
	return math.Float64frombits(v), err
}

func (d *Decoder) Bool() (bool, error) {
	v, err := d.Uint8()
	return v == 0x01, err
}

// String reads a u16-prefixed UTF-8 string.
func (d *Decoder) String() (string, error) {
	n, err := d.Uint16()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if err := d.readFull(buf); err != nil {
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", ErrInvalidEncoding
	}
	return string(buf), nil
}

func (d *Decoder) UUID() (uuid.UUID, error) {
	var id uuid.UUID
	if err := d.readFull(id[:]); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// Present reads an optional-value flag. Only 0x01 means present.
func (d *Decoder) Present() (bool, error) {
	flag, err := d.Uint8()
	if err != nil {
		return false, err
	}
	return flag == 0x01, nil
}

// SequenceLen reads a u32 element count and checks it against the cap.
func (d *Decoder) SequenceLen() (int, error) {
	n, err := d.Uint32()
	if err != nil {
		return 0, err
	}
	if d.maxSeq != 0 && n > d.maxSeq {
		return 0, ErrSequenceTooLong
	}
	if uint64(n) > uint64(math.MaxInt) {
		return 0, ErrSequenceTooLong
	}
	return int(n), nil
}

// Bytes reads a u32-prefixed byte sequence.
func (d *Decoder) Bytes() ([]byte, error) {
	n, err := d.SequenceLen()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]byte, 0, min(n, byteChunk))
	for len(out) < n {
		chunk := min(n-len(out), byteChunk)
		start := len(out)
		out = append(out, make([]byte, chunk)...)
		if err := d.readFull(out[start:]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
