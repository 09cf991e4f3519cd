package elfbee

import (
	"encoding/binary"
	"fmt"
)

// RelocType is one of the nine Bee ELF relocation types.
type RelocType int

const (
	RBeeNone     RelocType = 0
	RBee8        RelocType = 1
	RBee32       RelocType = 2
	RBee30       RelocType = 3
	RBeePCRel30  RelocType = 4
	RBeePCRel28  RelocType = 5
	RBee64       RelocType = 6
	RBee61       RelocType = 7
	RBeePCRel61  RelocType = 8
)

func (t RelocType) String() string {
	switch t {
	case RBeeNone:
		return "R_BEE_NONE"
	case RBee8:
		return "R_BEE_8"
	case RBee32:
		return "R_BEE_32"
	case RBee30:
		return "R_BEE_30"
	case RBeePCRel30:
		return "R_BEE_PCREL30"
	case RBeePCRel28:
		return "R_BEE_PCREL28"
	case RBee64:
		return "R_BEE_64"
	case RBee61:
		return "R_BEE_61"
	case RBeePCRel61:
		return "R_BEE_PCREL61"
	default:
		return fmt.Sprintf("R_BEE_UNKNOWN(%d)", int(t))
	}
}

// layout describes how one relocation type packs its value into a
// field: the field's size in bytes, how many low bits of the
// (possibly PC-relative, possibly shifted) value are kept, where those
// bits land within the field, whether the value is PC-relative, and how
// far the value is shifted right before being packed (equivalently, how
// many low zero bits its alignment guarantees).
type layout struct {
	fieldBytes int
	bits       uint
	bitOffset  uint
	shift      uint
	pcRelative bool
}

var layouts = map[RelocType]layout{
	RBeeNone:    {fieldBytes: 0},
	RBee8:       {fieldBytes: 1, bits: 8, bitOffset: 0, shift: 0},
	RBee32:      {fieldBytes: 4, bits: 32, bitOffset: 0, shift: 0},
	RBee30:      {fieldBytes: 4, bits: 30, bitOffset: 2, shift: 2},
	RBeePCRel30: {fieldBytes: 4, bits: 30, bitOffset: 2, shift: 2, pcRelative: true},
	RBeePCRel28: {fieldBytes: 4, bits: 28, bitOffset: 4, shift: 2, pcRelative: true},
	RBee64:      {fieldBytes: 8, bits: 64, bitOffset: 0, shift: 0},
	RBee61:      {fieldBytes: 8, bits: 61, bitOffset: 3, shift: 3},
	RBeePCRel61: {fieldBytes: 8, bits: 61, bitOffset: 3, shift: 3, pcRelative: true},
}

// Apply patches value into the relocation field at the start of buf,
// using byte order to read and write the field. fieldAddr is the
// address of the field itself, used as old_pc for the PC-relative
// types. buf must have at least layout.fieldBytes bytes available.
func Apply(t RelocType, order binary.ByteOrder, fieldAddr uint64, buf []byte, value int64) error {
	l, ok := layouts[t]
	if !ok {
		return fmt.Errorf("elfbee: unknown relocation type %d", int(t))
	}
	if t == RBeeNone {
		return nil
	}
	if len(buf) < l.fieldBytes {
		return fmt.Errorf("elfbee: %s needs %d bytes, got %d", t, l.fieldBytes, len(buf))
	}

	v := value
	if l.pcRelative {
		v -= int64(fieldAddr)
	}
	if l.shift > 0 && v&((1<<l.shift)-1) != 0 {
		return fmt.Errorf("elfbee: %s value %d is not aligned to %d bits", t, value, l.shift)
	}
	shifted := v >> l.shift

	mask := fieldMask(l.bits) << l.bitOffset
	old := readField(order, buf, l.fieldBytes)
	packed := (uint64(shifted) << l.bitOffset) & mask
	writeField(order, buf, l.fieldBytes, (old &^ mask) | packed)
	return nil
}

// Read extracts the value a prior Apply call packed into buf's
// relocation field. The field is sign-extended from its bit width, so
// the round trip returns the applied value exactly when that value (or,
// for PC-relative types, its offset from fieldAddr) fits the field as a
// signed number; a larger unsigned value comes back negative.
func Read(t RelocType, order binary.ByteOrder, fieldAddr uint64, buf []byte) (int64, error) {
	l, ok := layouts[t]
	if !ok {
		return 0, fmt.Errorf("elfbee: unknown relocation type %d", int(t))
	}
	if t == RBeeNone {
		return 0, nil
	}
	if len(buf) < l.fieldBytes {
		return 0, fmt.Errorf("elfbee: %s needs %d bytes, got %d", t, l.fieldBytes, len(buf))
	}

	mask := fieldMask(l.bits)
	field := (readField(order, buf, l.fieldBytes) >> l.bitOffset) & mask
	v := signExtend(field, l.bits) << l.shift
	if l.pcRelative {
		v += int64(fieldAddr)
	}
	return v, nil
}

func fieldMask(bits uint) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << bits) - 1
}

func signExtend(v uint64, bits uint) int64 {
	if bits == 0 || bits >= 64 {
		return int64(v)
	}
	shift := 64 - bits
	return int64(v<<shift) >> shift
}

func readField(order binary.ByteOrder, buf []byte, size int) uint64 {
	switch size {
	case 1:
		return uint64(buf[0])
	case 4:
		return uint64(order.Uint32(buf))
	case 8:
		return order.Uint64(buf)
	default:
		return 0
	}
}

func writeField(order binary.ByteOrder, buf []byte, size int, v uint64) {
	switch size {
	case 1:
		buf[0] = byte(v)
	case 4:
		order.PutUint32(buf, uint32(v))
	case 8:
		order.PutUint64(buf, v)
	}
}
