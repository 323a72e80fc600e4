package wire

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/google/uuid"
)

// MaxStringLen is the largest string the u16 length prefix can describe.
const MaxStringLen = math.MaxUint16

// Encoder writes wire values to an ordered byte stream.
type Encoder struct {
	w       io.Writer
	scratch [8]byte
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

func (e *Encoder) write(buf []byte) error {
	_, err := e.w.Write(buf)
	return err
}

func (e *Encoder) WriteUint8(v uint8) error {
	e.scratch[0] = v
	return e.write(e.scratch[:1])
}

func (e *Encoder) WriteUint16(v uint16) error {
	binary.BigEndian.PutUint16(e.scratch[:2], v)
	return e.write(e.scratch[:2])
}

func (e *Encoder) WriteUint32(v uint32) error {
	binary.BigEndian.PutUint32(e.scratch[:4], v)
	return e.write(e.scratch[:4])
}

func (e *Encoder) WriteUint64(v uint64) error {
	binary.BigEndian.PutUint64(e.scratch[:8], v)
	return e.write(e.scratch[:8])
}

func (e *Encoder) WriteInt8(v int8) error {
	return e.WriteUint8(uint8(v))
}

func (e *Encoder) WriteInt16(v int16) error {
	return e.WriteUint16(uint16(v))
}

func (e *Encoder) WriteInt32(v int32) error {
	return e.WriteUint32(uint32(v))
}

func (e *Encoder) WriteInt64(v int64) error {
	return e.WriteUint64(uint64(v))
}

func (e *Encoder) WriteFloat32(v float32) error {
	return e.WriteUint32(math.Float32bits(v))
}

func (e *Encoder) WriteFloat64(v float64) error {
	return e.WriteUint64(math.Float64bits(v))
}

func (e *Encoder) WriteBool(v bool) error {
	if v {
		return e.WriteUint8(0x01)
	}
	return e.WriteUint8(0x00)
}

// WriteString writes a u16-prefixed string. Strings over MaxStringLen bytes
// fail with ErrValueTooLarge before anything is written.
func (e *Encoder) WriteString(v string) error {
	if len(v) > MaxStringLen {
		return ErrValueTooLarge
	}
	if err := e.WriteUint16(uint16(len(v))); err != nil {
		return err
	}
	if len(v) == 0 {
		return nil
	}
	_, err := io.WriteString(e.w, v)
	return err
}

func (e *Encoder) WriteUUID(id uuid.UUID) error {
	return e.write(id[:])
}

func (e *Encoder) WritePresent(present bool) error {
	return e.WriteBool(present)
}

func (e *Encoder) WriteSequenceLen(n int) error {
	if n < 0 || uint64(n) > math.MaxUint32 {
		return ErrValueTooLarge
	}
	return e.WriteUint32(uint32(n))
}

// WriteBytes writes a u32-prefixed byte sequence.
func (e *Encoder) WriteBytes(v []byte) error {
	if err := e.WriteSequenceLen(len(v)); err != nil {
		return err
	}
	if len(v) == 0 {
		return nil
	}
	return e.write(v)
}
