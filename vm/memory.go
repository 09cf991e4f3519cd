package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/beevm/bee/isa"
)

// Region is one backing store mapped into the VM's linear address
// space: the main memory image, or the high-address argv region. §9's
// design note generalizes the source's "compare against a high
// sentinel" address-translation trick into a lookup over an ordered
// list of regions; this is that list's element type.
type Region struct {
	Base uint64
	Size uint64
	Data []byte
	Name string
}

func (r *Region) contains(addr uint64) bool {
	return addr >= r.Base && addr < r.Base+r.Size
}

// Memory is the VM's flat byte-addressed linear memory, materialized as
// a small ordered set of regions. Multi-byte accesses are translated
// through a single configurable byte order so the same in-memory layout
// can be produced little- or big-endian for ELF compatibility.
type Memory struct {
	Width Width
	Order binary.ByteOrder

	regions []*Region
}

// Width is a local alias so memory.go does not need to import isa in
// every signature; it is identical to isa.Width.
type Width = isa.Width

// NewMemory creates an empty memory with no backing regions.
func NewMemory(width Width, bigEndian bool) *Memory {
	return &Memory{
		Width: width,
		Order: isa.ByteOrder(bigEndian),
	}
}

// AddRegion maps a new backing store at [base, base+size). Regions must
// not overlap; overlap is a loader bug, not a runtime fault, so it
// panics rather than returning an error (mirrors invariant 4 of §3,
// which the loader — not the interpreter — is responsible for upholding).
func (m *Memory) AddRegion(name string, base, size uint64) *Region {
	for _, r := range m.regions {
		if base < r.Base+r.Size && r.Base < base+size {
			panic(fmt.Sprintf("bee: region %q overlaps existing region %q", name, r.Name))
		}
	}
	r := &Region{Base: base, Size: size, Data: make([]byte, size), Name: name}
	m.regions = append(m.regions, r)
	return r
}

func (m *Memory) find(addr uint64, length uint64) (*Region, uint64, error) {
	for _, r := range m.regions {
		if r.contains(addr) {
			if addr+length > r.Base+r.Size {
				return nil, 0, fmt.Errorf("bee: access at 0x%x length %d crosses end of region %q", addr, length, r.Name)
			}
			return r, addr - r.Base, nil
		}
	}
	return nil, 0, fmt.Errorf("bee: address 0x%x is not mapped", addr)
}

// aligned reports whether addr meets the alignment required for a
// size-byte access.
func aligned(addr uint64, size int) bool {
	return addr%uint64(size) == 0
}

// ReadBytes reads size bytes (1, 2, 4, or 8) at addr with no alignment
// check; used internally once the interpreter has already validated
// alignment at the opcode level, per C1's contract.
func (m *Memory) ReadBytes(addr uint64, size int) ([]byte, error) {
	r, off, err := m.find(addr, uint64(size))
	if err != nil {
		return nil, err
	}
	return r.Data[off : off+uint64(size)], nil
}

// WriteBytes writes data at addr with no alignment check.
func (m *Memory) WriteBytes(addr uint64, data []byte) error {
	r, off, err := m.find(addr, uint64(len(data)))
	if err != nil {
		return err
	}
	copy(r.Data[off:off+uint64(len(data))], data)
	return nil
}

// Load reads an unsigned value of the given byte size (1, 2, 4, 8) at
// addr, checking alignment for sizes > 1.
func (m *Memory) Load(addr uint64, size int) (uint64, error) {
	if size > 1 && !aligned(addr, size) {
		return 0, fmt.Errorf("bee: unaligned %d-byte load at 0x%x", size, addr)
	}
	buf, err := m.ReadBytes(addr, size)
	if err != nil {
		return 0, err
	}
	switch size {
	case 1:
		return uint64(buf[0]), nil
	case 2:
		return uint64(m.Order.Uint16(buf)), nil
	case 4:
		return uint64(m.Order.Uint32(buf)), nil
	case 8:
		return m.Order.Uint64(buf), nil
	default:
		return 0, fmt.Errorf("bee: invalid load size %d", size)
	}
}

// Store writes an unsigned value of the given byte size at addr,
// checking alignment for sizes > 1.
func (m *Memory) Store(addr uint64, size int, v uint64) error {
	if size > 1 && !aligned(addr, size) {
		return fmt.Errorf("bee: unaligned %d-byte store at 0x%x", size, addr)
	}
	buf := make([]byte, size)
	switch size {
	case 1:
		buf[0] = byte(v)
	case 2:
		m.Order.PutUint16(buf, uint16(v))
	case 4:
		m.Order.PutUint32(buf, uint32(v))
	case 8:
		m.Order.PutUint64(buf, v)
	default:
		return fmt.Errorf("bee: invalid store size %d", size)
	}
	return m.WriteBytes(addr, buf)
}

// LoadWord reads one W-wide word (4 or 8 bytes depending on m.Width).
func (m *Memory) LoadWord(addr uint64) (uint64, error) {
	return m.Load(addr, m.Width.Bytes())
}

// StoreWord writes one W-wide word.
func (m *Memory) StoreWord(addr uint64, v uint64) error {
	return m.Store(addr, m.Width.Bytes(), v)
}
