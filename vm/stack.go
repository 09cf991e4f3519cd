package vm

// pushD pushes v onto the data stack. Fails with ErrStackOverflow when
// the stack is already at capacity (§4.2).
func (m *VM) pushD(v uint64) error {
	if m.Reg.DP == m.Reg.Dsize {
		return m.fault(ErrStackOverflow)
	}
	if err := m.writeCell(m.Reg.D0, m.Reg.DP, v); err != nil {
		return err
	}
	m.Reg.DP++
	return nil
}

// popD pops and returns the top of the data stack. Fails with
// ErrStackUnderflow on an empty stack, or ErrStackOverflow if depth has
// somehow exceeded capacity (corrupted state, per §4.2).
func (m *VM) popD() (uint64, error) {
	if m.Reg.DP == 0 {
		return 0, m.fault(ErrStackUnderflow)
	}
	if m.Reg.DP > m.Reg.Dsize {
		return 0, m.fault(ErrStackOverflow)
	}
	v, err := m.readCell(m.Reg.D0, m.Reg.DP-1)
	if err != nil {
		return 0, err
	}
	m.Reg.DP--
	return v, nil
}

// peekD reads the data-stack cell n deep (0 = top) without popping.
func (m *VM) peekD(n uint64) (uint64, error) {
	if n >= m.Reg.DP {
		return 0, m.fault(ErrStackUnderflow)
	}
	return m.readCell(m.Reg.D0, m.Reg.DP-1-n)
}

// setD overwrites the data-stack cell n deep without changing depth.
func (m *VM) setD(n uint64, v uint64) error {
	if n >= m.Reg.DP {
		return m.fault(ErrStackUnderflow)
	}
	return m.writeCell(m.Reg.D0, m.Reg.DP-1-n, v)
}

// pushS pushes v onto the return stack; symmetric with pushD.
func (m *VM) pushS(v uint64) error {
	if m.Reg.SP == m.Reg.Ssize {
		return m.fault(ErrStackOverflow)
	}
	if err := m.writeCell(m.Reg.S0, m.Reg.SP, v); err != nil {
		return err
	}
	m.Reg.SP++
	return nil
}

// popS pops and returns the top of the return stack; symmetric with popD.
func (m *VM) popS() (uint64, error) {
	if m.Reg.SP == 0 {
		return 0, m.fault(ErrStackUnderflow)
	}
	if m.Reg.SP > m.Reg.Ssize {
		return 0, m.fault(ErrStackOverflow)
	}
	v, err := m.readCell(m.Reg.S0, m.Reg.SP-1)
	if err != nil {
		return 0, err
	}
	m.Reg.SP--
	return v, nil
}

// peekS reads the return-stack cell n deep (0 = top) without popping.
func (m *VM) peekS(n uint64) (uint64, error) {
	if n >= m.Reg.SP {
		return 0, m.fault(ErrStackUnderflow)
	}
	return m.readCell(m.Reg.S0, m.Reg.SP-1-n)
}

// cellAddr computes the byte address of stack cell i relative to base b.
func (m *VM) cellAddr(base, i uint64) uint64 {
	return base + i*uint64(m.Width.Bytes())
}

func (m *VM) readCell(base, i uint64) (uint64, error) {
	return m.Memory.LoadWord(m.cellAddr(base, i))
}

func (m *VM) writeCell(base, i uint64, v uint64) error {
	return m.Memory.StoreWord(m.cellAddr(base, i), v)
}
