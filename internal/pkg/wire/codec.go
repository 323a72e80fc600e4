package wire

import (
	"bytes"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
)

// sequenceChunk caps the initial capacity of decoded slices.
const sequenceChunk = 1024

var uuidType = reflect.TypeOf(uuid.UUID{})

type encodeFunc func(*Encoder, reflect.Value) error

type decodeFunc func(*Decoder, reflect.Value) error

type codec struct {
	encode encodeFunc
	decode decodeFunc
}

// codecs caches one codec per reflect.Type.
var codecs sync.Map

// Encode writes v. A top-level pointer is followed; pointers nested inside v
// are encoded as optional values.
func (e *Encoder) Encode(v any) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return fmt.Errorf("%w: nil value", ErrUnsupportedType)
	}
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return fmt.Errorf("%w: nil %s", ErrUnsupportedType, rv.Type())
		}
		rv = rv.Elem()
	}
	c, err := codecFor(rv.Type())
	if err != nil {
		return err
	}
	return c.encode(e, rv)
}

// Decode reads into the value v points to.
func (d *Decoder) Decode(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: decode target must be a non-nil pointer", ErrUnsupportedType)
	}
	c, err := codecFor(rv.Elem().Type())
	if err != nil {
		return err
	}
	return c.decode(d, rv.Elem())
}

// Marshal returns the wire encoding of v.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data into v. Bytes after the value are ignored.
func Unmarshal(data []byte, v any, opts ...Option) error {
	return NewDecoder(bytes.NewReader(data), opts...).Decode(v)
}

func codecFor(t reflect.Type) (*codec, error) {
	if c, ok := codecs.Load(t); ok {
		return c.(*codec), nil
	}
	c, err := buildCodec(t)
	if err != nil {
		return nil, err
	}
	actual, _ := codecs.LoadOrStore(t, c)
	return actual.(*codec), nil
}

func buildCodec(t reflect.Type) (*codec, error) {
	if t == uuidType {
		return &codec{
			encode: func(e *Encoder, v reflect.Value) error {
				return e.WriteUUID(v.Interface().(uuid.UUID))
			},
			decode: func(d *Decoder, v reflect.Value) error {
				id, err := d.UUID()
				if err != nil {
					return err
				}
				v.Set(reflect.ValueOf(id))
				return nil
			},
		}, nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return &codec{
			encode: func(e *Encoder, v reflect.Value) error { return e.WriteBool(v.Bool()) },
			decode: func(d *Decoder, v reflect.Value) error {
				b, err := d.Bool()
				if err != nil {
					return err
				}
				v.SetBool(b)
				return nil
			},
		}, nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return unsignedCodec(t.Kind()), nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return signedCodec(t.Kind()), nil
	case reflect.Float32:
		return &codec{
			encode: func(e *Encoder, v reflect.Value) error { return e.WriteFloat32(float32(v.Float())) },
			decode: func(d *Decoder, v reflect.Value) error {
				f, err := d.Float32()
				if err != nil {
					return err
				}
				v.SetFloat(float64(f))
				return nil
			},
		}, nil
	case reflect.Float64:
		return &codec{
			encode: func(e *Encoder, v reflect.Value) error { return e.WriteFloat64(v.Float()) },
			decode: func(d *Decoder, v reflect.Value) error {
				f, err := d.Float64()
				if err != nil {
					return err
				}
				v.SetFloat(f)
				return nil
			},
		}, nil
	case reflect.String:
		return &codec{
			encode: func(e *Encoder, v reflect.Value) error { return e.WriteString(v.String()) },
			decode: func(d *Decoder, v reflect.Value) error {
				s, err := d.String()
				if err != nil {
					return err
				}
				v.SetString(s)
				return nil
			},
		}, nil
	case reflect.Pointer:
		return optionalCodec(t), nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return bytesCodec(), nil
		}
		return sequenceCodec(t), nil
	case reflect.Struct:
		return structCodec(t)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
}

func unsignedCodec(kind reflect.Kind) *codec {
	return &codec{
		encode: func(e *Encoder, v reflect.Value) error {
			switch kind {
			case reflect.Uint8:
				return e.WriteUint8(uint8(v.Uint()))
			case reflect.Uint16:
				return e.WriteUint16(uint16(v.Uint()))
			case reflect.Uint32:
				return e.WriteUint32(uint32(v.Uint()))
			default:
				return e.WriteUint64(v.Uint())
			}
		},
		decode: func(d *Decoder, v reflect.Value) error {
			var (
				n   uint64
				err error
			)
			switch kind {
			case reflect.Uint8:
				var x uint8
				x, err = d.Uint8()
				n = uint64(x)
			case reflect.Uint16:
				var x uint16
				x, err = d.Uint16()
				n = uint64(x)
			case reflect.Uint32:
				var x uint32
				x, err = d.Uint32()
				n = uint64(x)
			default:
				n, err = d.Uint64()
			}
			if err != nil {
				return err
			}
			v.SetUint(n)
			return nil
		},
	}
}

func signedCodec(kind reflect.Kind) *codec {
	return &codec{
		encode: func(e *Encoder, v reflect.Value) error {
			switch kind {
			case reflect.Int8:
				return e.WriteInt8(int8(v.Int()))
			case reflect.Int16:
				return e.WriteInt16(int16(v.Int()))
			case reflect.Int32:
				return e.WriteInt32(int32(v.Int()))
			default:
				return e.WriteInt64(v.Int())
			}
		},
		decode: func(d *Decoder, v reflect.Value) error {
			var (
				n   int64
				err error
			)
			switch kind {
			case reflect.Int8:
				var x int8
				x, err = d.Int8()
				n = int64(x)
			case reflect.Int16:
				var x int16
				x, err = d.Int16()
				n = int64(x)
			case reflect.Int32:
				var x int32
				x, err = d.Int32()
				n = int64(x)
			default:
				n, err = d.Int64()
			}
			if err != nil {
				return err
			}
			v.SetInt(n)
			return nil
		},
	}
}

// optionalCodec resolves the element codec on use so self-referencing types
// do not recurse while the codec is being built.
func optionalCodec(t reflect.Type) *codec {
	return &codec{
		encode: func(e *Encoder, v reflect.Value) error {
			if v.IsNil() {
				return e.WritePresent(false)
			}
			elem, err := codecFor(t.Elem())
			if err != nil {
				return err
			}
			if err := e.WritePresent(true); err != nil {
				return err
			}
			return elem.encode(e, v.Elem())
		},
		decode: func(d *Decoder, v reflect.Value) error {
			present, err := d.Present()
			if err != nil {
				return err
			}
			if !present {
				v.Set(reflect.Zero(t))
				return nil
			}
			elem, err := codecFor(t.Elem())
			if err != nil {
				return err
			}
			ptr := reflect.New(t.Elem())
			if err := elem.decode(d, ptr.Elem()); err != nil {
				return err
			}
			v.Set(ptr)
			return nil
		},
	}
}

func bytesCodec() *codec {
	return &codec{
		encode: func(e *Encoder, v reflect.Value) error { return e.WriteBytes(v.Bytes()) },
		decode: func(d *Decoder, v reflect.Value) error {
			b, err := d.Bytes()
			if err != nil {
				return err
			}
			v.SetBytes(b)
			return nil
		},
	}
}

func sequenceCodec(t reflect.Type) *codec {
	return &codec{
		encode: func(e *Encoder, v reflect.Value) error {
			elem, err := codecFor(t.Elem())
			if err != nil {
				return err
			}
			if err := e.WriteSequenceLen(v.Len()); err != nil {
				return err
			}
			for i := 0; i < v.Len(); i++ {
				if err := elem.encode(e, v.Index(i)); err != nil {
					return err
				}
			}
			return nil
		},
		decode: func(d *Decoder, v reflect.Value) error {
			elem, err := codecFor(t.Elem())
			if err != nil {
				return err
			}
			n, err := d.SequenceLen()
			if err != nil {
				return err
			}
			if n == 0 {
				v.Set(reflect.Zero(t))
				return nil
			}
			out := reflect.MakeSlice(t, 0, min(n, sequenceChunk))
			for i := 0; i < n; i++ {
				item := reflect.New(t.Elem()).Elem()
				if err := elem.decode(d, item); err != nil {
					return err
				}
				out = reflect.Append(out, item)
			}
			v.Set(out)
			return nil
		},
	}
}

type structField struct {
	index int
	name  string
	codec *codec
}

func structCodec(t reflect.Type) (*codec, error) {
	fields := make([]structField, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("wire") == "-" {
			continue
		}
		fc, err := codecFor(f.Type)
		if err != nil {
			return nil, &FieldError{Type: t.Name(), Field: f.Name, Err: err}
		}
		fields = append(fields, structField{index: i, name: f.Name, codec: fc})
	}

	return &codec{
		encode: func(e *Encoder, v reflect.Value) error {
			for _, f := range fields {
				if err := f.codec.encode(e, v.Field(f.index)); err != nil {
					return &FieldError{Type: t.Name(), Field: f.name, Err: err}
				}
			}
			return nil
		},
		decode: func(d *Decoder, v reflect.Value) error {
			for _, f := range fields {
				if err := f.codec.decode(d, v.Field(f.index)); err != nil {
					return &FieldError{Type: t.Name(), Field: f.name, Err: err}
				}
			}
			return nil
		},
	}, nil
}
