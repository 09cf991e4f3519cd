package debugger

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/beevm/bee/disasm"
	"github.com/beevm/bee/isa"
	"github.com/beevm/bee/vm"
)

// cmdRun (re)starts execution from the program's initial state.
func (d *Debugger) cmdRun(args []string) error {
	if d.Reload == nil {
		return fmt.Errorf("run: no loaded program to restart")
	}
	if err := d.Reload(); err != nil {
		return err
	}
	d.Running = true
	d.StepMode = StepNone
	d.Println("Starting program execution...")
	return nil
}

// cmdContinue resumes execution from wherever it currently stopped.
func (d *Debugger) cmdContinue(args []string) error {
	d.Running = true
	d.StepMode = StepNone
	d.Println("Continuing...")
	return nil
}

func (d *Debugger) cmdStep(args []string) error {
	d.StepMode = StepSingle
	d.Running = true
	return nil
}

// cmdNext steps over a call instruction at the current PC.
func (d *Debugger) cmdNext(args []string) error {
	d.SetStepOver()
	return nil
}

func (d *Debugger) cmdFinish(args []string) error {
	d.SetStepOut()
	return nil
}

func (d *Debugger) cmdBreak(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: break <address|label> [if <condition>] | break op <mnemonic> [if <condition>]")
	}

	if strings.ToLower(args[0]) == "op" {
		return d.breakOnOpcode(args[1:], false)
	}

	address, err := d.ResolveAddress(args[0])
	if err != nil {
		return err
	}

	var condition string
	if len(args) > 1 && strings.ToLower(args[1]) == "if" {
		condition = strings.Join(args[2:], " ")
	}

	bp := d.Breakpoints.AddBreakpoint(address, false, condition)

	if condition != "" {
		d.Printf("Breakpoint %d at 0x%x (condition: %s)\n", bp.ID, address, condition)
	} else {
		d.Printf("Breakpoint %d at 0x%x\n", bp.ID, address)
	}
	return nil
}

func (d *Debugger) cmdTBreak(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: tbreak <address|label> | tbreak op <mnemonic>")
	}

	if strings.ToLower(args[0]) == "op" {
		return d.breakOnOpcode(args[1:], true)
	}

	address, err := d.ResolveAddress(args[0])
	if err != nil {
		return err
	}

	bp := d.Breakpoints.AddBreakpoint(address, true, "")
	d.Printf("Temporary breakpoint %d at 0x%x\n", bp.ID, address)
	return nil
}

// breakOnOpcode implements the "break op <mnemonic>" / "tbreak op
// <mnemonic>" forms: a breakpoint that fires the next time the named
// core opcode decodes at the current PC, anywhere in the program,
// instead of at one fixed address.
func (d *Debugger) breakOnOpcode(args []string, temporary bool) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: break op <mnemonic> [if <condition>]")
	}

	op, ok := isa.LookupMnemonic(args[0])
	if !ok {
		return fmt.Errorf("unknown opcode mnemonic: %s", args[0])
	}

	var condition string
	if len(args) > 2 && strings.ToLower(args[1]) == "if" {
		condition = strings.Join(args[2:], " ")
	}

	bp := d.Breakpoints.AddOpcodeBreakpoint(op, temporary, condition)
	if condition != "" {
		d.Printf("Breakpoint %d on opcode %s (condition: %s)\n", bp.ID, op, condition)
	} else {
		d.Printf("Breakpoint %d on opcode %s\n", bp.ID, op)
	}
	return nil
}

func (d *Debugger) cmdDelete(args []string) error {
	if len(args) == 0 {
		d.Breakpoints.Clear()
		d.Println("All breakpoints deleted")
		return nil
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint ID: %s", args[0])
	}

	if err := d.Breakpoints.DeleteBreakpoint(id); err != nil {
		return err
	}
	d.Printf("Breakpoint %d deleted\n", id)
	return nil
}

func (d *Debugger) cmdEnable(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: enable <breakpoint-id>")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint ID: %s", args[0])
	}
	if err := d.Breakpoints.EnableBreakpoint(id); err != nil {
		return err
	}
	d.Printf("Breakpoint %d enabled\n", id)
	return nil
}

func (d *Debugger) cmdDisable(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: disable <breakpoint-id>")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid breakpoint ID: %s", args[0])
	}
	if err := d.Breakpoints.DisableBreakpoint(id); err != nil {
		return err
	}
	d.Printf("Breakpoint %d disabled\n", id)
	return nil
}

func (d *Debugger) cmdWatch(args []string) error {
	return d.addWatch(args, WatchWrite, "Watchpoint")
}

func (d *Debugger) cmdRWatch(args []string) error {
	return d.addWatch(args, WatchRead, "Read watchpoint")
}

func (d *Debugger) cmdAWatch(args []string) error {
	return d.addWatch(args, WatchReadWrite, "Access watchpoint")
}

func (d *Debugger) addWatch(args []string, wpType WatchType, label string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: watch <expression>")
	}

	expression := strings.Join(args, " ")
	isRegister, register, address, err := d.parseWatchExpression(expression)
	if err != nil {
		return err
	}

	wp := d.Watchpoints.AddWatchpoint(wpType, expression, address, isRegister, register)
	if err := d.Watchpoints.InitializeWatchpoint(wp.ID, d.VM); err != nil {
		_ = d.Watchpoints.DeleteWatchpoint(wp.ID)
		return err
	}

	d.Printf("%s %d: %s\n", label, wp.ID, expression)
	return nil
}

// parseWatchExpression classifies an expression as one of the ten
// named registers, a bracketed/symbolic memory address, or a plain
// address literal.
func (d *Debugger) parseWatchExpression(expr string) (isRegister bool, register vm.RegisterIndex, address uint64, err error) {
	expr = strings.ToLower(strings.TrimSpace(expr))

	for i := vm.RegisterIndex(0); i.String() != "invalid"; i++ {
		if i.String() == expr {
			return true, i, 0, nil
		}
	}

	if strings.HasPrefix(expr, "[") && strings.HasSuffix(expr, "]") {
		addrStr := strings.TrimSuffix(strings.TrimPrefix(expr, "["), "]")
		addr, err := d.ResolveAddress(addrStr)
		if err != nil {
			return false, 0, 0, err
		}
		return false, 0, addr, nil
	}

	addr, err := d.ResolveAddress(expr)
	if err != nil {
		return false, 0, 0, fmt.Errorf("invalid watch expression: %s", expr)
	}
	return false, 0, addr, nil
}

func (d *Debugger) cmdPrint(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: print <expression>")
	}

	expression := strings.Join(args, " ")
	result, err := d.Evaluator.EvaluateExpression(expression, d.VM, d.Symbols)
	if err != nil {
		return err
	}

	if result > uint64(math.MaxInt64) {
		d.Printf("$%d = 0x%x (%d)\n", d.Evaluator.GetValueNumber(), result, result)
	} else {
		d.Printf("$%d = 0x%x (%d)\n", d.Evaluator.GetValueNumber(), result, int64(result))
	}
	return nil
}

// cmdExamine implements x[/nfu] <address>: n = count, f = format
// (x hex, d signed, u unsigned, o octal, t binary), u = unit size
// (b=1, h=2, w=4, g=8 bytes).
func (d *Debugger) cmdExamine(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: x[/nfu] <address>\n  n: count, f: format (x/d/u/o/t), u: unit size (b/h/w/g)")
	}

	count := 1
	format := 'x'
	unit := 'w'
	addrArg := args[0]

	if strings.HasPrefix(args[0], "/") {
		formatStr := args[0][1:]
		if len(args) < 2 {
			return fmt.Errorf("missing address")
		}
		addrArg = args[1]

		i := 0
		for i < len(formatStr) && formatStr[i] >= '0' && formatStr[i] <= '9' {
			i++
		}
		if i > 0 {
			if n, err := strconv.Atoi(formatStr[:i]); err == nil {
				count = n
			}
			formatStr = formatStr[i:]
		}
		if len(formatStr) > 0 {
			format = rune(formatStr[0])
			formatStr = formatStr[1:]
		}
		if len(formatStr) > 0 {
			unit = rune(formatStr[0])
		}
	}

	address, err := d.ResolveAddress(addrArg)
	if err != nil {
		return err
	}

	size := 4
	switch unit {
	case 'b':
		size = 1
	case 'h':
		size = 2
	case 'g':
		size = 8
	}

	d.Printf("0x%x:", address)
	for i := 0; i < count; i++ {
		value, readErr := d.VM.Memory.Load(address, size)
		if readErr != nil {
			return readErr
		}
		address += uint64(size)

		switch format {
		case 'd':
			d.Printf(" %d", int64(value))
		case 'u':
			d.Printf(" %d", value)
		case 'o':
			d.Printf(" %o", value)
		case 't':
			d.Printf(" %b", value)
		default:
			d.Printf(" 0x%x", value)
		}
	}
	d.Println()
	return nil
}

func (d *Debugger) cmdInfo(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: info <registers|breakpoints|watchpoints|stack>")
	}

	switch strings.ToLower(args[0]) {
	case "registers", "reg", "r":
		return d.showRegisters()
	case "breakpoints", "break", "b":
		return d.showBreakpoints()
	case "watchpoints", "watch", "w":
		return d.showWatchpoints()
	case "stack", "s":
		return d.showStack()
	default:
		return fmt.Errorf("unknown info command: %s", args[0])
	}
}

// showRegisters reads through vm.Snapshot() rather than d.VM.Reg
// directly, so the debugger never duplicates the register-layout
// knowledge that lives in vm.RegisterIndex/Registers.Get.
func (d *Debugger) showRegisters() error {
	d.Println("Registers:")
	snap := d.VM.Snapshot()
	for i := vm.RegisterIndex(0); i.String() != "invalid"; i++ {
		v := snap.Get(i)
		d.Printf("  %-10s = 0x%x (%d)\n", i.String(), v, int64(v))
	}
	return nil
}

func (d *Debugger) showBreakpoints() error {
	breakpoints := d.Breakpoints.GetAllBreakpoints()
	if len(breakpoints) == 0 {
		d.Println("No breakpoints")
		return nil
	}

	d.Println("Breakpoints:")
	for _, bp := range breakpoints {
		status := "enabled"
		if !bp.Enabled {
			status = "disabled"
		}
		temp := ""
		if bp.Temporary {
			temp = " (temporary)"
		}
		condition := ""
		if bp.Condition != "" {
			condition = fmt.Sprintf(" if %s", bp.Condition)
		}
		if bp.OnOpcode {
			d.Printf("  %d: opcode %s %s%s%s (hit %d times)\n",
				bp.ID, bp.Op, status, temp, condition, bp.HitCount)
			continue
		}
		d.Printf("  %d: 0x%x %s%s%s (hit %d times)\n",
			bp.ID, bp.Address, status, temp, condition, bp.HitCount)
	}
	return nil
}

// cmdHistory implements "history [search <prefix>]", printing every
// recorded command paired with the PC it ran at so a session
// transcript can be correlated with what the VM was actually doing.
func (d *Debugger) cmdHistory(args []string) error {
	if len(args) >= 2 && strings.ToLower(args[0]) == "search" {
		prefix := strings.Join(args[1:], " ")
		for _, cmd := range d.History.Search(prefix) {
			d.Println(cmd)
		}
		return nil
	}

	entries := d.History.GetAllWithPC()
	if len(entries) == 0 {
		d.Println("No command history")
		return nil
	}
	for i, e := range entries {
		d.Printf("%4d  pc=0x%x  %s\n", i+1, e.PC, e.Command)
	}
	return nil
}

func (d *Debugger) showWatchpoints() error {
	watchpoints := d.Watchpoints.GetAllWatchpoints()
	if len(watchpoints) == 0 {
		d.Println("No watchpoints")
		return nil
	}

	d.Println("Watchpoints:")
	for _, wp := range watchpoints {
		status := "enabled"
		if !wp.Enabled {
			status = "disabled"
		}
		wpType := "write"
		if wp.Type == WatchRead {
			wpType = "read"
		} else if wp.Type == WatchReadWrite {
			wpType = "access"
		}
		d.Printf("  %d: %s %s %s (hit %d times, last value: 0x%x)\n",
			wp.ID, wp.Expression, wpType, status, wp.HitCount, wp.LastValue)
	}
	return nil
}

// showStack displays the top of both stacks: data first, then return.
func (d *Debugger) showStack() error {
	wordBytes := uint64(d.VM.Width.Bytes())

	d.Printf("Data stack (dp=%d):\n", d.VM.Reg.DP)
	for i := uint64(0); i < d.VM.Reg.DP && i < 8; i++ {
		addr := d.VM.Reg.D0 + (d.VM.Reg.DP-1-i)*wordBytes
		value, err := d.VM.Memory.LoadWord(addr)
		if err != nil {
			break
		}
		d.Printf("  [%d] 0x%x: 0x%x (%d)\n", d.VM.Reg.DP-1-i, addr, value, int64(value))
	}

	d.Printf("Return stack (sp=%d):\n", d.VM.Reg.SP)
	for i := uint64(0); i < d.VM.Reg.SP && i < 8; i++ {
		addr := d.VM.Reg.S0 + (d.VM.Reg.SP-1-i)*wordBytes
		value, err := d.VM.Memory.LoadWord(addr)
		if err != nil {
			break
		}
		d.Printf("  [%d] 0x%x: 0x%x\n", d.VM.Reg.SP-1-i, addr, value)
	}
	return nil
}

// cmdBacktrace walks the return stack, which holds a call chain's
// return addresses (§4.4's call/ret convention).
func (d *Debugger) cmdBacktrace(args []string) error {
	wordBytes := uint64(d.VM.Width.Bytes())

	d.Println("Call stack:")
	d.Printf("  #0  pc=0x%x\n", d.VM.Reg.PC)

	for i := uint64(0); i < d.VM.Reg.SP; i++ {
		addr := d.VM.Reg.S0 + (d.VM.Reg.SP-1-i)*wordBytes
		ra, err := d.VM.Memory.LoadWord(addr)
		if err != nil {
			break
		}
		d.Printf("  #%d  return=0x%x\n", i+1, ra)
	}
	return nil
}

// cmdList disassembles a window of instructions around the current PC
// by reading live memory, rather than any separately recorded source
// map — Bee programs are assembled straight to a flat code image, so
// the disassembly itself is the most faithful "source" view available.
func (d *Debugger) cmdList(args []string) error {
	pc := d.VM.Reg.PC
	wordBytes := uint64(d.VM.Width.Bytes())

	lookup := func(addr uint64) (string, bool) {
		for name, symAddr := range d.Symbols {
			if symAddr == addr {
				return name, true
			}
		}
		return "", false
	}

	read := func(addr uint64) (uint64, error) { return d.VM.Memory.LoadWord(addr) }

	const before, after = 4, 8
	start := pc
	if start > before*wordBytes {
		start -= before * wordBytes
	} else {
		start = 0
	}

	lines := disasm.Range(d.VM.Width, start, before+after, read, lookup)
	for _, line := range lines {
		marker := "  "
		if line.Addr == pc {
			marker = "=>"
		}
		d.Printf("%s 0x%x: %s\n", marker, line.Addr, line.Text)
	}
	return nil
}

// cmdSet modifies a register (by name) or a memory word (via *address).
func (d *Debugger) cmdSet(args []string) error {
	if len(args) < 3 || args[1] != "=" {
		return fmt.Errorf("usage: set <register|*address> = <value>")
	}

	target := strings.ToLower(args[0])
	value, err := d.Evaluator.EvaluateExpression(args[2], d.VM, d.Symbols)
	if err != nil {
		return err
	}

	if strings.HasPrefix(target, "*") {
		address, err := d.ResolveAddress(target[1:])
		if err != nil {
			return err
		}
		if err := d.VM.Memory.StoreWord(address, value); err != nil {
			return err
		}
		d.Printf("Memory 0x%x set to 0x%x\n", address, value)
		return nil
	}

	for i := vm.RegisterIndex(0); i.String() != "invalid"; i++ {
		if i.String() == target {
			d.VM.Reg.Set(i, value)
			d.Printf("Register %s set to 0x%x\n", target, value)
			return nil
		}
	}

	return fmt.Errorf("invalid target: %s", target)
}

func (d *Debugger) cmdLoad(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: load <filename>")
	}
	if d.LoadFile == nil {
		return fmt.Errorf("load: not supported in this session")
	}
	if err := d.LoadFile(args[0]); err != nil {
		return err
	}
	d.Printf("Loaded %s\n", args[0])
	return nil
}

func (d *Debugger) cmdReset(args []string) error {
	if d.Reload == nil {
		return fmt.Errorf("reset: no loaded program to reset to")
	}
	if err := d.Reload(); err != nil {
		return err
	}
	d.Println("VM reset")
	return nil
}

func (d *Debugger) cmdHelp(args []string) error {
	if len(args) > 0 {
		return d.showCommandHelp(args[0])
	}

	d.Println("Bee Debugger Commands:")
	d.Println()
	d.Println("Execution Control:")
	d.Println("  run (r)           - Start program execution")
	d.Println("  continue (c)      - Continue execution")
	d.Println("  step (s, si)      - Execute single instruction")
	d.Println("  next (n)          - Step over call instructions")
	d.Println("  finish (fin)      - Step out of current function")
	d.Println()
	d.Println("Breakpoints:")
	d.Println("  break (b) <addr>  - Set breakpoint (or 'break op <mnemonic>')")
	d.Println("  tbreak (tb) <addr>- Set temporary breakpoint")
	d.Println("  delete (d) [id]   - Delete breakpoint(s)")
	d.Println("  enable <id>       - Enable breakpoint")
	d.Println("  disable <id>      - Disable breakpoint")
	d.Println()
	d.Println("Watchpoints:")
	d.Println("  watch (w) <expr>  - Watch for writes")
	d.Println("  rwatch <expr>     - Watch for reads")
	d.Println("  awatch <expr>     - Watch for access")
	d.Println()
	d.Println("Inspection:")
	d.Println("  print (p) <expr>  - Evaluate expression")
	d.Println("  x[/nfu] <addr>    - Examine memory")
	d.Println("  info (i) <what>   - Show information")
	d.Println("  backtrace (bt)    - Show return-stack call chain")
	d.Println("  list (l)          - Disassemble around PC")
	d.Println()
	d.Println("Modification:")
	d.Println("  set <var> = <val> - Modify register/memory")
	d.Println()
	d.Println("Control:")
	d.Println("  load <file>       - Load a new program")
	d.Println("  reset             - Reset VM to its initial state")
	d.Println("  record <cmd>      - start/stop/show an execution recording")
	d.Println("  history [search p]- Show command history, paired with the PC at the time")
	d.Println("  help (h, ?)       - Show this help")
	d.Println()
	d.Println("Type 'help <command>' for detailed help on a specific command.")
	return nil
}

func (d *Debugger) showCommandHelp(cmd string) error {
	helpText := map[string]string{
		"break": "break <address|label> [if <condition>]\n  Set a breakpoint at the specified address or label.\n  Optional condition will be evaluated each time.\nbreak op <mnemonic> [if <condition>]\n  Set a breakpoint that fires the next time the named core opcode\n  (e.g. throw, call) decodes at the current PC, regardless of address.",
		"step":  "step\n  Execute a single instruction.",
		"next":  "next\n  Step over a call instruction (execute until the instruction after it).",
		"print": "print <expression>\n  Evaluate and print an expression.\n  Expressions can include registers, memory, symbols, and arithmetic.",
		"x":     "x[/nfu] <address>\n  Examine memory.\n  n: count, f: format (x/d/u/o/t), u: unit (b/h/w/g)",
		"info":  "info <registers|breakpoints|watchpoints|stack>\n  Display information about program state.",
		"record":  "record <start|stop|show>\n  start: begin capturing (pc, op, stack-delta) per instruction.\n  stop: detach the recorder and report how many instructions were captured.\n  show: print every captured entry without re-running the program.",
		"history": "history [search <prefix>]\n  With no arguments, print every command run this session paired with\n  the PC it ran at. 'history search <prefix>' lists just the matches.",
	}

	if help, exists := helpText[cmd]; exists {
		d.Println(help)
		return nil
	}
	return fmt.Errorf("no help available for command: %s", cmd)
}
