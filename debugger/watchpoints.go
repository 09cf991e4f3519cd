package debugger

import (
	"fmt"
	"sync"

	"github.com/beevm/bee/vm"
)

// WatchType records the access a watchpoint claims to monitor. All
// three currently trigger on the same value-change check — true
// read-only tracking would need hooks into the interpreter's load/store
// path, which the VM core deliberately keeps free of debugger
// awareness (§9's "nothing here is process-global" design note applies
// equally to not wiring observer callbacks into the hot path).
type WatchType int

const (
	WatchWrite WatchType = iota
	WatchRead
	WatchReadWrite
)

// Watchpoint monitors a register or memory word for a change in value.
type Watchpoint struct {
	ID         int
	Type       WatchType
	Expression string
	Address    uint64
	IsRegister bool
	Register   vm.RegisterIndex
	Enabled    bool
	LastValue  uint64
	HitCount   int
}

// WatchpointManager manages all watchpoints by ID.
type WatchpointManager struct {
	mu          sync.RWMutex
	watchpoints map[int]*Watchpoint
	nextID      int
}

func NewWatchpointManager() *WatchpointManager {
	return &WatchpointManager{
		watchpoints: make(map[int]*Watchpoint),
		nextID:      1,
	}
}

func (wm *WatchpointManager) AddWatchpoint(wpType WatchType, expression string, address uint64, isRegister bool, register vm.RegisterIndex) *Watchpoint {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	wp := &Watchpoint{
		ID:         wm.nextID,
		Type:       wpType,
		Expression: expression,
		Address:    address,
		IsRegister: isRegister,
		Register:   register,
		Enabled:    true,
	}

	wm.watchpoints[wp.ID] = wp
	wm.nextID++

	return wp
}

func (wm *WatchpointManager) DeleteWatchpoint(id int) error {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	if _, exists := wm.watchpoints[id]; !exists {
		return fmt.Errorf("watchpoint %d not found", id)
	}
	delete(wm.watchpoints, id)
	return nil
}

func (wm *WatchpointManager) EnableWatchpoint(id int) error {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	wp, exists := wm.watchpoints[id]
	if !exists {
		return fmt.Errorf("watchpoint %d not found", id)
	}
	wp.Enabled = true
	return nil
}

func (wm *WatchpointManager) DisableWatchpoint(id int) error {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	wp, exists := wm.watchpoints[id]
	if !exists {
		return fmt.Errorf("watchpoint %d not found", id)
	}
	wp.Enabled = false
	return nil
}

func (wm *WatchpointManager) GetWatchpoint(id int) *Watchpoint {
	wm.mu.RLock()
	defer wm.mu.RUnlock()

	return wm.watchpoints[id]
}

func (wm *WatchpointManager) GetAllWatchpoints() []*Watchpoint {
	wm.mu.RLock()
	defer wm.mu.RUnlock()

	result := make([]*Watchpoint, 0, len(wm.watchpoints))
	for _, wp := range wm.watchpoints {
		result = append(result, wp)
	}
	return result
}

// CheckWatchpoints scans every enabled watchpoint and returns the first
// whose value differs from what was last observed.
func (wm *WatchpointManager) CheckWatchpoints(machine *vm.VM) (*Watchpoint, bool) {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	for _, wp := range wm.watchpoints {
		if !wp.Enabled {
			continue
		}

		var currentValue uint64
		if wp.IsRegister {
			currentValue = machine.Reg.Get(wp.Register)
		} else {
			v, err := machine.Memory.LoadWord(wp.Address)
			if err != nil {
				continue
			}
			currentValue = v
		}

		if currentValue != wp.LastValue {
			wp.HitCount++
			wp.LastValue = currentValue
			return wp, true
		}
	}

	return nil, false
}

// InitializeWatchpoint records the current value of a just-added
// watchpoint so the first CheckWatchpoints call doesn't fire
// spuriously against its zero value.
func (wm *WatchpointManager) InitializeWatchpoint(id int, machine *vm.VM) error {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	wp, exists := wm.watchpoints[id]
	if !exists {
		return fmt.Errorf("watchpoint %d not found", id)
	}

	if wp.IsRegister {
		wp.LastValue = machine.Reg.Get(wp.Register)
		return nil
	}

	value, err := machine.Memory.LoadWord(wp.Address)
	if err != nil {
		return fmt.Errorf("failed to initialize watchpoint: %w", err)
	}
	wp.LastValue = value
	return nil
}

func (wm *WatchpointManager) Clear() {
	wm.mu.Lock()
	defer wm.mu.Unlock()

	wm.watchpoints = make(map[int]*Watchpoint)
}

func (wm *WatchpointManager) Count() int {
	wm.mu.RLock()
	defer wm.mu.RUnlock()

	return len(wm.watchpoints)
}
