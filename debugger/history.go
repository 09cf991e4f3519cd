package debugger

import "sync"

// HistoryEntry pairs a previously executed command line with the VM
// program counter it ran at, so a transcript of a session shows not
// just what was typed but where execution stood at the time — useful
// for correlating "step" spam in a replay with the PCs it actually
// visited.
type HistoryEntry struct {
	Command string
	PC      uint64
}

// CommandHistory is a ring buffer of previously executed debugger
// command lines, used both for the empty-input-repeats-last convention
// and for up/down navigation in the interactive front end.
type CommandHistory struct {
	mu       sync.RWMutex
	commands []string
	pcs      []uint64
	maxSize  int
	position int
}

func NewCommandHistory() *CommandHistory {
	return &CommandHistory{
		commands: make([]string, 0, 100),
		pcs:      make([]uint64, 0, 100),
		maxSize:  1000,
	}
}

// Add appends cmd to history at PC 0, for callers with no VM state
// handy (tests, or a command issued before anything is loaded). Most
// production call sites should use AddAt.
func (h *CommandHistory) Add(cmd string) {
	h.AddAt(cmd, 0)
}

// AddAt appends cmd to history tagged with the PC it ran at, collapsing
// immediate repeats and resetting the navigation cursor to the end.
func (h *CommandHistory) AddAt(cmd string, pc uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cmd == "" {
		return
	}
	if n := len(h.commands); n > 0 && h.commands[n-1] == cmd {
		h.position = n
		return
	}

	h.commands = append(h.commands, cmd)
	h.pcs = append(h.pcs, pc)
	if len(h.commands) > h.maxSize {
		h.commands = h.commands[len(h.commands)-h.maxSize:]
		h.pcs = h.pcs[len(h.pcs)-h.maxSize:]
	}
	h.position = len(h.commands)
}

// Previous moves the cursor back one entry and returns it, or "" at
// the start of history.
func (h *CommandHistory) Previous() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.commands) == 0 || h.position == 0 {
		return ""
	}
	h.position--
	return h.commands[h.position]
}

// Next moves the cursor forward one entry, returning "" once past the
// last recorded command.
func (h *CommandHistory) Next() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.commands) == 0 {
		return ""
	}
	if h.position >= len(h.commands)-1 {
		h.position = len(h.commands)
		return ""
	}
	h.position++
	return h.commands[h.position]
}

func (h *CommandHistory) GetLast() string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.commands) == 0 {
		return ""
	}
	return h.commands[len(h.commands)-1]
}

func (h *CommandHistory) GetAll() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]string, len(h.commands))
	copy(result, h.commands)
	return result
}

// GetAllWithPC returns every recorded command paired with the PC it
// ran at, oldest first.
func (h *CommandHistory) GetAllWithPC() []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]HistoryEntry, len(h.commands))
	for i, cmd := range h.commands {
		result[i] = HistoryEntry{Command: cmd, PC: h.pcs[i]}
	}
	return result
}

func (h *CommandHistory) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.commands = h.commands[:0]
	h.pcs = h.pcs[:0]
	h.position = 0
}

func (h *CommandHistory) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.commands)
}

// Search returns the text of every recorded command with the given
// prefix, most recent last; the PCs are not included.
func (h *CommandHistory) Search(prefix string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var results []string
	for _, cmd := range h.commands {
		if len(cmd) >= len(prefix) && cmd[:len(prefix)] == prefix {
			results = append(results, cmd)
		}
	}
	return results
}
