package api

import (
	"time"

	"github.com/beevm/bee/service"
)

// SessionCreateRequest configures a new session's VM instance shape.
type SessionCreateRequest struct {
	Width32   bool   `json:"width32,omitempty"` // false (default) selects 64-bit
	BigEndian bool   `json:"bigEndian,omitempty"`
	FSRoot    string `json:"fsRoot,omitempty"`
}

// SessionCreateResponse is returned when a session is created.
type SessionCreateResponse struct {
	SessionID string    `json:"sessionId"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionStatusResponse is a session's current status.
type SessionStatusResponse struct {
	SessionID string `json:"sessionId"`
	State     string `json:"state"`
	PC        uint64 `json:"pc"`
	Steps     uint64 `json:"steps"`
	Error     string `json:"error,omitempty"`
}

// LoadProgramRequest carries assembly source text to load.
type LoadProgramRequest struct {
	Source string   `json:"source"`
	Argv   []string `json:"argv,omitempty"`
}

// LoadProgramResponse reports the result of assembling/loading.
type LoadProgramResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error,omitempty"`
	Symbols map[string]uint64 `json:"symbols,omitempty"`
}

// RegistersResponse is the full named-register snapshot.
type RegistersResponse struct {
	Registers map[string]uint64 `json:"registers"`
	PC        uint64            `json:"pc"`
	Steps     uint64            `json:"steps"`
}

// MemoryRequest asks for a byte range.
type MemoryRequest struct {
	Address uint64 `json:"address"`
	Length  uint64 `json:"length"`
}

// MemoryResponse is a byte range's content.
type MemoryResponse struct {
	Address uint64 `json:"address"`
	Data    []byte `json:"data"`
}

// DisassemblyResponse is a run of disassembled instructions.
type DisassemblyResponse struct {
	Lines []service.DisassemblyLine `json:"lines"`
}

// BreakpointRequest adds or removes a breakpoint.
type BreakpointRequest struct {
	Address uint64 `json:"address"`
}

// BreakpointsResponse lists every breakpoint.
type BreakpointsResponse struct {
	Breakpoints []service.BreakpointInfo `json:"breakpoints"`
}

// WatchpointRequest adds a watchpoint.
type WatchpointRequest struct {
	Address uint64 `json:"address"`
	Type    string `json:"type"` // "read", "write", "readwrite"
}

// WatchpointsResponse lists every watchpoint.
type WatchpointsResponse struct {
	Watchpoints []service.WatchpointInfo `json:"watchpoints"`
}

// ErrorResponse reports a request-level failure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// SuccessResponse is a bare-acknowledgement response.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ConfigResponse mirrors the subset of config.Config the API exposes
// for client-side display (instance shape and debugger defaults).
type ConfigResponse struct {
	Width          int    `json:"width"`
	BigEndian      bool   `json:"bigEndian"`
	StackSize      uint   `json:"stackSize"`
	RStackSize     uint   `json:"rstackSize"`
	MaxCycles      uint64 `json:"maxCycles"`
	HistorySize    int    `json:"historySize"`
	DisasmContext  int    `json:"disasmContext"`
	NumberFormat   string `json:"numberFormat"`
}
