package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/beevm/bee/config"
	"github.com/beevm/bee/service"
	"github.com/beevm/bee/vm"
)

// handleCreateSession handles POST /api/v1/session
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req SessionCreateRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := s.sessions.CreateSession(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to create session: %v", err))
		return
	}

	writeJSON(w, http.StatusCreated, SessionCreateResponse{
		SessionID: session.ID,
		CreatedAt: session.CreatedAt,
	})
}

// handleListSessions handles GET /api/v1/session
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	ids := s.sessions.ListSessions()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": ids,
		"count":    len(ids),
	})
}

// handleGetSessionStatus handles GET /api/v1/session/{id}
func (s *Server) handleGetSessionStatus(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	regs, err := session.Service.GetRegisterState()
	state := string(service.StateIdle)
	errMsg := ""
	if err != nil {
		state = string(service.StateError)
		errMsg = err.Error()
	} else if session.Service.IsRunning() {
		state = string(service.StateRunning)
	}

	writeJSON(w, http.StatusOK, SessionStatusResponse{
		SessionID: sessionID,
		State:     state,
		PC:        regs.PC,
		Steps:     regs.Steps,
		Error:     errMsg,
	})
}

// handleDestroySession handles DELETE /api/v1/session/{id}
func (s *Server) handleDestroySession(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := s.sessions.DestroySession(sessionID); err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "session destroyed"})
}

// handleLoadProgram handles POST /api/v1/session/{id}/load
func (s *Server) handleLoadProgram(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var req LoadProgramRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := session.Service.LoadProgram(req.Source, req.Argv); err != nil {
		writeJSON(w, http.StatusBadRequest, LoadProgramResponse{Success: false, Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, LoadProgramResponse{Success: true, Symbols: session.Service.Symbols()})
}

// handleRun handles POST /api/v1/session/{id}/run
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	session.Service.Continue()

	go func() {
		state, err := session.Service.RunUntilHalt()
		if fault, ok := err.(*vm.Fault); ok {
			debugLog("session %s faulted: %v", sessionID, fault)
			if s.broadcaster != nil {
				s.broadcaster.BroadcastFault(sessionID, fault)
			}
		}
		if state == service.StateBreak && s.broadcaster != nil {
			s.broadcastBreakpointHit(sessionID, session.Service)
		}
		s.broadcastStateChange(sessionID, session.Service, state)
	}()

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "program started"})
}

// handleStop handles POST /api/v1/session/{id}/stop
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	session.Service.Pause()
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "program stopped"})
}

// handleStep handles POST /api/v1/session/{id}/step
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	if _, _, err := session.Service.Step(); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("step failed: %v", err))
		return
	}

	s.broadcastStateChange(sessionID, session.Service, service.StateBreak)

	regs, _ := session.Service.GetRegisterState()
	writeJSON(w, http.StatusOK, RegistersResponse{Registers: regs.Registers, PC: regs.PC, Steps: regs.Steps})
}

// handleReset handles POST /api/v1/session/{id}/reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	if err := session.Service.Reload(); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("reset failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "vm reset"})
}

// handleGetRegisters handles GET /api/v1/session/{id}/registers
func (s *Server) handleGetRegisters(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	regs, err := session.Service.GetRegisterState()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, RegistersResponse{Registers: regs.Registers, PC: regs.PC, Steps: regs.Steps})
}

const maxMemoryRead = 1024 * 1024

// handleGetMemory handles GET /api/v1/session/{id}/memory
func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	query := r.URL.Query()
	address, err := parseHexOrDec(query.Get("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address parameter")
		return
	}

	length, err := strconv.ParseUint(query.Get("length"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid length parameter")
		return
	}
	if length > maxMemoryRead {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("length too large (max %d bytes)", maxMemoryRead))
		return
	}

	data := session.Service.GetMemory(address, length)
	writeJSON(w, http.StatusOK, MemoryResponse{Address: address, Data: data})
}

const maxDisassembly = 1000

// handleGetDisassembly handles GET /api/v1/session/{id}/disassembly
func (s *Server) handleGetDisassembly(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	query := r.URL.Query()
	address, err := parseHexOrDec(query.Get("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid address parameter")
		return
	}

	count, err := strconv.ParseUint(query.Get("count"), 10, 32)
	if err != nil || count == 0 {
		count = 10
	}
	if count > maxDisassembly {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("count too large (max %d)", maxDisassembly))
		return
	}

	lines := session.Service.GetDisassembly(address, int(count))
	writeJSON(w, http.StatusOK, DisassemblyResponse{Lines: lines})
}

const maxStackRead = 1000

// handleGetStack handles GET /api/v1/session/{id}/stack
func (s *Server) handleGetStack(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	query := r.URL.Query()
	offset, _ := strconv.Atoi(query.Get("offset"))
	count, err := strconv.Atoi(query.Get("count"))
	if err != nil || count == 0 {
		count = 16
	}
	if count > maxStackRead {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("count too large (max %d)", maxStackRead))
		return
	}

	entries := session.Service.GetStack(offset, count)
	writeJSON(w, http.StatusOK, map[string]interface{}{"stack": entries})
}

// handleBreakpoint handles POST/DELETE /api/v1/session/{id}/breakpoint
func (s *Server) handleBreakpoint(w http.ResponseWriter, r *http.Request, sessionID string) {
	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var req BreakpointRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch r.Method {
	case http.MethodPost:
		session.Service.AddBreakpoint(req.Address)
		writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "breakpoint added"})

	case http.MethodDelete:
		if err := session.Service.RemoveBreakpoint(req.Address); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to remove breakpoint: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "breakpoint removed"})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleListBreakpoints handles GET /api/v1/session/{id}/breakpoints
func (s *Server) handleListBreakpoints(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, BreakpointsResponse{Breakpoints: session.Service.GetBreakpoints()})
}

func parseHexOrDec(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}
	if len(s) > 2 && s[:2] == "0x" {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}

// handleWatchpoint handles POST /api/v1/session/{id}/watchpoint
func (s *Server) handleWatchpoint(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var req WatchpointRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	watchType := req.Type
	if watchType == "" {
		watchType = "readwrite"
	}
	if err := session.Service.AddWatchpoint(req.Address, watchType); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "watchpoint added"})
}

// handleDeleteWatchpoint handles DELETE /api/v1/session/{id}/watchpoint/{id}
func (s *Server) handleDeleteWatchpoint(w http.ResponseWriter, r *http.Request, sessionID string, watchpointID int) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	if err := session.Service.RemoveWatchpoint(watchpointID); err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("failed to remove watchpoint: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "watchpoint removed"})
}

// handleListWatchpoints handles GET /api/v1/session/{id}/watchpoints
func (s *Server) handleListWatchpoints(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, WatchpointsResponse{Watchpoints: session.Service.GetWatchpoints()})
}

// handleExecuteCommand handles POST /api/v1/session/{id}/command, running
// an arbitrary debugger command line (e.g. "print dp", "x/4 0x1000") through
// the same command interpreter the CLI and TUI front ends use.
func (s *Server) handleExecuteCommand(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	var req struct {
		Command string `json:"command"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	output, cmdErr := session.Service.ExecuteCommand(req.Command)
	s.broadcaster.BroadcastOutput(sessionID, "debugger", output)

	resp := map[string]interface{}{"output": output}
	if cmdErr != nil {
		resp["error"] = cmdErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetConfig handles GET /api/v1/config
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		cfg = config.DefaultConfig()
	}

	writeJSON(w, http.StatusOK, ConfigResponse{
		Width:         cfg.Instance.Width,
		BigEndian:     cfg.Instance.BigEndian,
		StackSize:     cfg.Instance.StackSize,
		RStackSize:    cfg.Instance.RStackSize,
		MaxCycles:     cfg.Execution.MaxCycles,
		HistorySize:   cfg.Debugger.HistorySize,
		DisasmContext: cfg.Display.DisasmContext,
		NumberFormat:  cfg.Display.NumberFormat,
	})
}

// handleUpdateConfig handles PUT /api/v1/config
func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ConfigResponse
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg := config.DefaultConfig()
	cfg.Instance.Width = req.Width
	cfg.Instance.BigEndian = req.BigEndian
	cfg.Instance.StackSize = req.StackSize
	cfg.Instance.RStackSize = req.RStackSize
	cfg.Execution.MaxCycles = req.MaxCycles
	cfg.Debugger.HistorySize = req.HistorySize
	cfg.Display.DisasmContext = req.DisasmContext
	cfg.Display.NumberFormat = req.NumberFormat

	if err := cfg.Save(); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to save config: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "configuration updated"})
}

// broadcastBreakpointHit looks up whichever breakpoint (address or
// opcode form) matches the PC execution just stopped at and broadcasts
// it, so a subscribed client learns which breakpoint fired rather than
// just that execution paused.
func (s *Server) broadcastBreakpointHit(sessionID string, svc *service.DebuggerService) {
	dbg := svc.Debugger()
	pc := dbg.VM.Reg.PC
	if bp := dbg.Breakpoints.GetBreakpoint(pc); bp != nil {
		s.broadcaster.BroadcastBreakpointHit(sessionID, bp.Address, false, "", bp.HitCount)
		return
	}
	if op, ok := dbg.DecodedOpcodeAt(pc); ok {
		if bp := dbg.Breakpoints.MatchOpcode(op); bp != nil {
			s.broadcaster.BroadcastBreakpointHit(sessionID, 0, true, bp.Op.String(), bp.HitCount)
		}
	}
}

// broadcastStateChange pushes a state-event snapshot to WebSocket clients
// subscribed to this session.
func (s *Server) broadcastStateChange(sessionID string, svc *service.DebuggerService, state service.ExecutionState) {
	if s.broadcaster == nil {
		return
	}

	regs, err := svc.GetRegisterState()
	data := map[string]interface{}{"status": string(state)}
	if err == nil {
		data["pc"] = regs.PC
		data["steps"] = regs.Steps
		data["registers"] = regs.Registers
	}
	s.broadcaster.BroadcastState(sessionID, data)
}
