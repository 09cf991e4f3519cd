package debugger

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/beevm/bee/disasm"
	"github.com/beevm/bee/vm"
)

// TUI is the tview-based full-screen front end: a disassembly/register
// view on top, a stack and breakpoint/watchpoint panel alongside, and
// an output log and command line below.
type TUI struct {
	Debugger *Debugger
	App      *tview.Application
	Pages    *tview.Pages

	MainLayout *tview.Flex
	LeftPanel  *tview.Flex
	RightPanel *tview.Flex

	DisassemblyView *tview.TextView
	RegisterView    *tview.TextView
	MemoryView      *tview.TextView
	StackView       *tview.TextView
	BreakpointsView *tview.TextView
	OutputView      *tview.TextView
	CommandInput    *tview.InputField

	MemoryAddress uint64
}

func NewTUI(debugger *Debugger) *TUI {
	return newTUI(debugger, tview.NewApplication())
}

// NewTUIWithScreen builds a TUI against a caller-supplied tcell screen,
// so tests can drive it with tcell.NewSimulationScreen instead of a
// real terminal.
func NewTUIWithScreen(debugger *Debugger, screen tcell.Screen) *TUI {
	return newTUI(debugger, tview.NewApplication().SetScreen(screen))
}

func newTUI(debugger *Debugger, app *tview.Application) *TUI {
	tui := &TUI{
		Debugger: debugger,
		App:      app,
	}

	tui.initializeViews()
	tui.buildLayout()
	tui.setupKeyBindings()

	return tui
}

func (t *TUI) initializeViews() {
	t.DisassemblyView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.DisassemblyView.SetBorder(true).SetTitle(" Disassembly ")

	t.RegisterView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	t.RegisterView.SetBorder(true).SetTitle(" Registers ")

	t.MemoryView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.MemoryView.SetBorder(true).SetTitle(" Memory ")

	t.StackView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.StackView.SetBorder(true).SetTitle(" Stacks ")

	t.BreakpointsView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	t.BreakpointsView.SetBorder(true).SetTitle(" Breakpoints/Watchpoints ")

	t.OutputView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(true)
	t.OutputView.SetBorder(true).SetTitle(" Output ")

	t.CommandInput = tview.NewInputField().
		SetLabel("> ").
		SetFieldWidth(0)
	t.CommandInput.SetBorder(true).SetTitle(" Command ")
	t.CommandInput.SetDoneFunc(t.handleCommand)
}

func (t *TUI) buildLayout() {
	t.LeftPanel = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.DisassemblyView, 0, 1, false)

	rightTop := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(t.RegisterView, 12, 0, false).
		AddItem(t.MemoryView, 0, 1, false).
		AddItem(t.StackView, 0, 1, false)

	t.RightPanel = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(rightTop, 0, 3, false).
		AddItem(t.BreakpointsView, 8, 0, false)

	mainContent := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(t.LeftPanel, 0, 2, false).
		AddItem(t.RightPanel, 0, 1, false)

	t.MainLayout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(mainContent, 0, 4, false).
		AddItem(t.OutputView, 8, 0, false).
		AddItem(t.CommandInput, 3, 0, true)

	t.Pages = tview.NewPages().
		AddPage("main", t.MainLayout, true, true)
}

func (t *TUI) setupKeyBindings() {
	t.App.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyF1:
			go t.executeCommand("help")
			return nil
		case tcell.KeyF5:
			go t.executeCommand("continue")
			return nil
		case tcell.KeyF9:
			go t.executeCommand("break")
			return nil
		case tcell.KeyF10:
			go t.executeCommand("next")
			return nil
		case tcell.KeyF11:
			go t.executeCommand("step")
			return nil
		case tcell.KeyCtrlC:
			t.App.Stop()
			return nil
		case tcell.KeyCtrlL:
			t.RefreshAll()
			return nil
		case tcell.KeyUp:
			if t.App.GetFocus() == t.CommandInput {
				if prev := t.Debugger.History.Previous(); prev != "" {
					t.CommandInput.SetText(prev)
				}
				return nil
			}
		case tcell.KeyDown:
			if t.App.GetFocus() == t.CommandInput {
				t.CommandInput.SetText(t.Debugger.History.Next())
				return nil
			}
		}
		return event
	})
}

// handleCommand is the input field's done-func. It must return
// immediately regardless of how long the command takes to run, so the
// actual work happens on a separate goroutine; the UI update at the
// end is marshaled back onto the event loop via QueueUpdateDraw.
func (t *TUI) handleCommand(key tcell.Key) {
	if key != tcell.KeyEnter {
		return
	}
	cmd := t.CommandInput.GetText()
	if cmd == "" {
		return
	}
	t.CommandInput.SetText("")
	go t.executeCommand(cmd)
}

func (t *TUI) executeCommand(cmd string) {
	t.Debugger.Output.Reset()

	err := t.Debugger.ExecuteCommand(cmd)
	output := t.Debugger.GetOutput()

	if t.Debugger.Running {
		runUntilStop(t.Debugger)
		if out := t.Debugger.GetOutput(); out != "" {
			output += out
		}
	}

	t.App.QueueUpdateDraw(func() {
		if err != nil {
			t.WriteOutput(fmt.Sprintf("[red]Error:[white] %v\n", err))
		}
		if output != "" {
			t.WriteOutput(output)
		}
		t.RefreshAll()
	})
}

func (t *TUI) WriteOutput(text string) {
	_, _ = t.OutputView.Write([]byte(text))
	t.OutputView.ScrollToEnd()
}

func (t *TUI) RefreshAll() {
	t.UpdateRegisterView()
	t.UpdateMemoryView()
	t.UpdateStackView()
	t.UpdateDisassemblyView()
	t.UpdateBreakpointsView()
	t.App.Draw()
}

func (t *TUI) UpdateRegisterView() {
	t.RegisterView.Clear()

	reg := &t.Debugger.VM.Reg
	var lines []string

	names := []vm.RegisterIndex{
		vm.RegPC, vm.RegM0, vm.RegMsize, vm.RegS0, vm.RegSsize,
		vm.RegSP, vm.RegD0, vm.RegDsize, vm.RegDP, vm.RegHandlerSP,
	}
	for i := 0; i < len(names); i += 2 {
		left := fmt.Sprintf("%-10s: 0x%x", names[i].String(), reg.Get(names[i]))
		if i+1 < len(names) {
			right := fmt.Sprintf("%-10s: 0x%x", names[i+1].String(), reg.Get(names[i+1]))
			lines = append(lines, left+"  "+right)
		} else {
			lines = append(lines, left)
		}
	}

	t.RegisterView.SetText(strings.Join(lines, "\n"))
}

func (t *TUI) UpdateMemoryView() {
	t.MemoryView.Clear()

	addr := t.MemoryAddress
	if addr == 0 {
		addr = t.Debugger.VM.Reg.PC
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("[yellow]Address: 0x%x[white]", addr))

	for row := 0; row < MemoryDisplayRows; row++ {
		rowAddr := addr + uint64(row*MemoryDisplayBytesPerRow)
		line := fmt.Sprintf("0x%x: ", rowAddr)

		var hexBytes []string
		var asciiBytes []byte
		for col := 0; col < MemoryDisplayColumns; col++ {
			byteAddr := rowAddr + uint64(col)
			b, err := t.Debugger.VM.Memory.ReadBytes(byteAddr, 1)
			if err != nil {
				hexBytes = append(hexBytes, "??")
				asciiBytes = append(asciiBytes, '.')
				continue
			}
			hexBytes = append(hexBytes, fmt.Sprintf("%02x", b[0]))
			if b[0] >= 32 && b[0] < 127 {
				asciiBytes = append(asciiBytes, b[0])
			} else {
				asciiBytes = append(asciiBytes, '.')
			}
		}

		line += strings.Join(hexBytes, " ") + "  " + string(asciiBytes)
		lines = append(lines, line)
	}

	t.MemoryView.SetText(strings.Join(lines, "\n"))
}

func (t *TUI) UpdateStackView() {
	t.StackView.Clear()

	reg := &t.Debugger.VM.Reg
	wordBytes := uint64(t.Debugger.VM.Width.Bytes())

	var lines []string
	lines = append(lines, fmt.Sprintf("[yellow]Data stack (dp=%d):[white]", reg.DP))
	for i := uint64(0); i < reg.DP && i < StackDisplayWords; i++ {
		addr := reg.D0 + (reg.DP-1-i)*wordBytes
		word, err := t.Debugger.VM.Memory.LoadWord(addr)
		if err != nil {
			break
		}
		lines = append(lines, fmt.Sprintf("  0x%x: 0x%x", addr, word))
	}

	lines = append(lines, fmt.Sprintf("[yellow]Return stack (sp=%d):[white]", reg.SP))
	for i := uint64(0); i < reg.SP && i < StackDisplayWords; i++ {
		addr := reg.S0 + (reg.SP-1-i)*wordBytes
		word, err := t.Debugger.VM.Memory.LoadWord(addr)
		if err != nil {
			break
		}
		line := fmt.Sprintf("  0x%x: 0x%x", addr, word)
		if sym := t.findSymbolForAddress(word); sym != "" {
			line += fmt.Sprintf(" <%s>", sym)
		}
		lines = append(lines, line)
	}

	t.StackView.SetText(strings.Join(lines, "\n"))
}

// UpdateDisassemblyView renders a window of decoded instructions
// around PC using the shared disasm renderer, rather than the raw hex
// dump a source-mapless front end would otherwise be stuck with.
func (t *TUI) UpdateDisassemblyView() {
	t.DisassemblyView.Clear()

	pc := t.Debugger.VM.Reg.PC
	wordBytes := uint64(t.Debugger.VM.Width.Bytes())

	lookup := func(addr uint64) (string, bool) { return t.findSymbolForAddressOK(addr) }
	read := func(addr uint64) (uint64, error) { return t.Debugger.VM.Memory.LoadWord(addr) }

	start := pc
	if start > 8*wordBytes {
		start -= 8 * wordBytes
	} else {
		start = 0
	}

	decoded := disasm.Range(t.Debugger.VM.Width, start, 16, read, lookup)

	var lines []string
	for _, line := range decoded {
		marker := "  "
		color := "white"
		if line.Addr == pc {
			marker = "->"
			color = "yellow"
		}
		if t.Debugger.Breakpoints.GetBreakpoint(line.Addr) != nil {
			marker = "* "
		}
		lines = append(lines, fmt.Sprintf("[%s]%s 0x%x: %s[white]", color, marker, line.Addr, line.Text))
	}

	t.DisassemblyView.SetText(strings.Join(lines, "\n"))
}

func (t *TUI) UpdateBreakpointsView() {
	t.BreakpointsView.Clear()

	var lines []string

	bps := t.Debugger.Breakpoints.GetAllBreakpoints()
	if len(bps) > 0 {
		lines = append(lines, "[yellow]Breakpoints:[white]")
		for _, bp := range bps {
			status, color := "enabled", "green"
			if !bp.Enabled {
				status, color = "disabled", "red"
			}

			line := fmt.Sprintf("  %d: [%s]%s[white] 0x%x", bp.ID, color, status, bp.Address)
			if sym := t.findSymbolForAddress(bp.Address); sym != "" {
				line += fmt.Sprintf(" <%s>", sym)
			}
			if bp.Condition != "" {
				line += fmt.Sprintf(" if %s", bp.Condition)
			}
			line += fmt.Sprintf(" (hits: %d)", bp.HitCount)
			lines = append(lines, line)
		}
	} else {
		lines = append(lines, "[yellow]No breakpoints set[white]")
	}

	lines = append(lines, "")

	wps := t.Debugger.Watchpoints.GetAllWatchpoints()
	if len(wps) > 0 {
		lines = append(lines, "[yellow]Watchpoints:[white]")
		for _, wp := range wps {
			typeStr := "watch"
			if wp.Type == WatchRead {
				typeStr = "rwatch"
			} else if wp.Type == WatchReadWrite {
				typeStr = "awatch"
			}
			lines = append(lines, fmt.Sprintf("  %d: %s %s = 0x%x", wp.ID, typeStr, wp.Expression, wp.LastValue))
		}
	}

	t.BreakpointsView.SetText(strings.Join(lines, "\n"))
}

func (t *TUI) findSymbolForAddress(addr uint64) string {
	name, _ := t.findSymbolForAddressOK(addr)
	return name
}

func (t *TUI) findSymbolForAddressOK(addr uint64) (string, bool) {
	for sym, symAddr := range t.Debugger.Symbols {
		if symAddr == addr {
			return sym, true
		}
	}
	return "", false
}

func (t *TUI) Run() error {
	t.RefreshAll()

	t.WriteOutput("[green]Bee Debugger TUI[white]\n")
	t.WriteOutput("Press F1 for help, F5 to continue, F10 to step over, F11 to step\n")
	t.WriteOutput("Type 'help' for command list\n\n")

	return t.App.SetRoot(t.Pages, true).SetFocus(t.CommandInput).Run()
}

func (t *TUI) Stop() {
	t.App.Stop()
}
