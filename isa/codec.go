package isa

import "encoding/binary"

// ByteOrder is the materialization endianness for instruction and data
// words on disk and in the VM's linear memory. Stack cells live in that
// linear memory too, so they use the same order, and everything that
// crosses the VM/disk or VM/debugger boundary funnels through one of
// these two.
func ByteOrder(bigEndian bool) binary.ByteOrder {
	if bigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// PutWord writes v (truncated to w bits) into buf using the given byte
// order, using either 4 or 8 bytes depending on w.
func PutWord(order binary.ByteOrder, w Width, buf []byte, v uint64) {
	switch w {
	case Width32:
		order.PutUint32(buf, uint32(v))
	default:
		order.PutUint64(buf, v)
	}
}

// GetWord reads one W-wide word from buf using the given byte order.
func GetWord(order binary.ByteOrder, w Width, buf []byte) uint64 {
	switch w {
	case Width32:
		return uint64(order.Uint32(buf))
	default:
		return order.Uint64(buf)
	}
}
