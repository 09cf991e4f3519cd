package vm

// PopData, PushData, and PeekData expose the data-stack primitives to
// packages outside vm — chiefly the trap bridge (package trap), which
// marshals TRAP_LIBC arguments and results through the data stack
// exactly as a core instruction would (§4.5). The interpreter itself
// uses the unexported popD/pushD/peekD directly.
func (m *VM) PopData() (uint64, error)        { return m.popD() }
func (m *VM) PushData(v uint64) error         { return m.pushD(v) }
func (m *VM) PeekData(n uint64) (uint64, error) { return m.peekD(n) }

// PopDuword and PushDuword marshal a two-word ("duword") value for the
// trap bridge's off_t-sized arguments and results (§4.5: "passed as two
// words: low first, high second (on push), with symmetric pop").
func (m *VM) PopDuword() (int64, error) {
	high, err := m.popD()
	if err != nil {
		return 0, err
	}
	low, err := m.popD()
	if err != nil {
		return 0, err
	}
	return joinDuword(m.Width, low, high), nil
}

func (m *VM) PushDuword(v int64) error {
	low, high := splitDuword(m.Width, v)
	if err := m.pushD(low); err != nil {
		return err
	}
	return m.pushD(high)
}

// joinDuword and splitDuword implement the low/high split against a
// Width-bit word. A 64-bit VM's single word already covers the full
// range any realistic file offset needs, so the high word there is
// pure sign-extension; a 32-bit VM needs both halves.
func joinDuword(w Width, low, high uint64) int64 {
	if w == Width64 {
		return int64(low)
	}
	return int64(uint64(uint32(low)) | uint64(uint32(high))<<32)
}

func splitDuword(w Width, v int64) (low, high uint64) {
	if w == Width64 {
		hi := uint64(0)
		if v < 0 {
			hi = ^uint64(0)
		}
		return uint64(v), hi
	}
	u := uint64(v)
	return w.Truncate(u), w.Truncate(u >> 32)
}
