package debugger

import (
	"fmt"
	"sync"

	"github.com/beevm/bee/isa"
)

// Breakpoint is either a pause point at a specific address (matched
// against the PC before each instruction runs; no break instruction is
// written into the program) or an opcode breakpoint that fires each
// time a given core Opcode is about to execute anywhere in the program, which is
// useful for "stop at the next THROW" without knowing where it will
// happen. Address breakpoints key a map by address; opcode breakpoints
// key a second map by Opcode, so the two never collide even though
// both share the same ID sequence. Grounded on the teacher's
// Breakpoint/BreakpointManager, widened from uint32 to uint64
// addresses for Bee's dual-width model.
type Breakpoint struct {
	ID        int
	Address   uint64
	OnOpcode  bool
	Op        isa.Opcode
	Enabled   bool
	Temporary bool   // Auto-delete after first hit
	Condition string // Optional condition expression
	HitCount  int
}

// BreakpointManager manages both address and opcode breakpoints.
type BreakpointManager struct {
	mu                sync.RWMutex
	breakpoints       map[uint64]*Breakpoint
	opcodeBreakpoints map[isa.Opcode]*Breakpoint
	nextID            int
}

// NewBreakpointManager creates a new breakpoint manager.
func NewBreakpointManager() *BreakpointManager {
	return &BreakpointManager{
		breakpoints:       make(map[uint64]*Breakpoint),
		opcodeBreakpoints: make(map[isa.Opcode]*Breakpoint),
		nextID:            1,
	}
}

// AddBreakpoint adds a new breakpoint at the specified address, or
// updates one already there.
func (bm *BreakpointManager) AddBreakpoint(address uint64, temporary bool, condition string) *Breakpoint {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bp, exists := bm.breakpoints[address]; exists {
		bp.Enabled = true
		bp.Temporary = temporary
		bp.Condition = condition
		return bp
	}

	bp := &Breakpoint{
		ID:        bm.nextID,
		Address:   address,
		Enabled:   true,
		Temporary: temporary,
		Condition: condition,
	}

	bm.breakpoints[address] = bp
	bm.nextID++

	return bp
}

// AddOpcodeBreakpoint adds a breakpoint that fires whenever op next
// decodes at the current PC, regardless of address, or updates the one
// already watching op.
func (bm *BreakpointManager) AddOpcodeBreakpoint(op isa.Opcode, temporary bool, condition string) *Breakpoint {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bp, exists := bm.opcodeBreakpoints[op]; exists {
		bp.Enabled = true
		bp.Temporary = temporary
		bp.Condition = condition
		return bp
	}

	bp := &Breakpoint{
		ID:        bm.nextID,
		OnOpcode:  true,
		Op:        op,
		Enabled:   true,
		Temporary: temporary,
		Condition: condition,
	}

	bm.opcodeBreakpoints[op] = bp
	bm.nextID++

	return bp
}

// DeleteBreakpoint removes a breakpoint by ID, address or opcode form.
func (bm *BreakpointManager) DeleteBreakpoint(id int) error {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	for addr, bp := range bm.breakpoints {
		if bp.ID == id {
			delete(bm.breakpoints, addr)
			return nil
		}
	}
	for op, bp := range bm.opcodeBreakpoints {
		if bp.ID == id {
			delete(bm.opcodeBreakpoints, op)
			return nil
		}
	}

	return fmt.Errorf("breakpoint %d not found", id)
}

// DeleteBreakpointAt removes a breakpoint at a specific address.
func (bm *BreakpointManager) DeleteBreakpointAt(address uint64) error {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if _, exists := bm.breakpoints[address]; !exists {
		return fmt.Errorf("no breakpoint at address 0x%x", address)
	}

	delete(bm.breakpoints, address)
	return nil
}

// EnableBreakpoint enables a breakpoint by ID.
func (bm *BreakpointManager) EnableBreakpoint(id int) error {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	for _, bp := range bm.breakpoints {
		if bp.ID == id {
			bp.Enabled = true
			return nil
		}
	}
	for _, bp := range bm.opcodeBreakpoints {
		if bp.ID == id {
			bp.Enabled = true
			return nil
		}
	}

	return fmt.Errorf("breakpoint %d not found", id)
}

// DisableBreakpoint disables a breakpoint by ID.
func (bm *BreakpointManager) DisableBreakpoint(id int) error {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	for _, bp := range bm.breakpoints {
		if bp.ID == id {
			bp.Enabled = false
			return nil
		}
	}
	for _, bp := range bm.opcodeBreakpoints {
		if bp.ID == id {
			bp.Enabled = false
			return nil
		}
	}

	return fmt.Errorf("breakpoint %d not found", id)
}

// GetBreakpoint gets an address breakpoint at a specific address.
func (bm *BreakpointManager) GetBreakpoint(address uint64) *Breakpoint {
	bm.mu.RLock()
	defer bm.mu.RUnlock()

	return bm.breakpoints[address]
}

// GetBreakpointByID gets a breakpoint (address or opcode form) by ID.
func (bm *BreakpointManager) GetBreakpointByID(id int) *Breakpoint {
	bm.mu.RLock()
	defer bm.mu.RUnlock()

	for _, bp := range bm.breakpoints {
		if bp.ID == id {
			return bp
		}
	}
	for _, bp := range bm.opcodeBreakpoints {
		if bp.ID == id {
			return bp
		}
	}

	return nil
}

// GetAllBreakpoints returns every breakpoint, address and opcode form.
func (bm *BreakpointManager) GetAllBreakpoints() []*Breakpoint {
	bm.mu.RLock()
	defer bm.mu.RUnlock()

	result := make([]*Breakpoint, 0, len(bm.breakpoints)+len(bm.opcodeBreakpoints))
	for _, bp := range bm.breakpoints {
		result = append(result, bp)
	}
	for _, bp := range bm.opcodeBreakpoints {
		result = append(result, bp)
	}
	return result
}

// MatchOpcode returns the enabled opcode breakpoint watching op, or nil.
func (bm *BreakpointManager) MatchOpcode(op isa.Opcode) *Breakpoint {
	bm.mu.RLock()
	defer bm.mu.RUnlock()

	if bp, exists := bm.opcodeBreakpoints[op]; exists && bp.Enabled {
		return bp
	}
	return nil
}

// Clear removes every breakpoint, address and opcode form.
func (bm *BreakpointManager) Clear() {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	bm.breakpoints = make(map[uint64]*Breakpoint)
	bm.opcodeBreakpoints = make(map[isa.Opcode]*Breakpoint)
}

// HasBreakpoint checks if an address breakpoint exists at address.
func (bm *BreakpointManager) HasBreakpoint(address uint64) bool {
	bm.mu.RLock()
	defer bm.mu.RUnlock()

	_, exists := bm.breakpoints[address]
	return exists
}

// Count returns the total number of breakpoints, address and opcode form.
func (bm *BreakpointManager) Count() int {
	bm.mu.RLock()
	defer bm.mu.RUnlock()

	return len(bm.breakpoints) + len(bm.opcodeBreakpoints)
}

// ProcessHit atomically increments hit count and handles temporary
// breakpoint deletion, returning a copy safe to use after the lock is
// released.
func (bm *BreakpointManager) ProcessHit(address uint64) *Breakpoint {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	bp, exists := bm.breakpoints[address]
	if !exists {
		return nil
	}

	bp.HitCount++
	result := *bp

	if bp.Temporary {
		delete(bm.breakpoints, address)
	}

	return &result
}

// ProcessOpcodeHit atomically increments hit count and handles
// temporary opcode-breakpoint deletion, returning a copy safe to use
// after the lock is released.
func (bm *BreakpointManager) ProcessOpcodeHit(op isa.Opcode) *Breakpoint {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	bp, exists := bm.opcodeBreakpoints[op]
	if !exists {
		return nil
	}

	bp.HitCount++
	result := *bp

	if bp.Temporary {
		delete(bm.opcodeBreakpoints, op)
	}

	return &result
}
