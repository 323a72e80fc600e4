// Package wire owns the binary value encoding used on every stream.
//
// Layout rules:
// - fixed-width integers and floats are big-endian
// - strings are a u16 byte length followed by UTF-8 bytes
// - optional values (pointers) are a 0x01/0x00 presence flag, then the value
// - uuid.UUID is 16 raw bytes
// - slices are a u32 element count followed by each element
// - structs are their exported fields in declaration order, with no prefix
package wire
