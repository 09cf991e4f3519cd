// Package trap implements the host-service bridge invoked by TRAP
// instructions (C5): TRAP_LIBC, the single registered trap library,
// exposing POSIX-style file and string primitives to the guest program.
// Dispatch, argument/result marshaling, and path confinement follow the
// teacher's vm/syscall.go file-operation dispatcher, adapted from
// register-indexed ARM syscalls to the Bee convention of popping
// arguments and pushing results on the data stack (§4.5).
package trap

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevm/bee/vm"
)

// Library is the only trap library code the bridge accepts; every other
// code fails with INVALID_LIBRARY (§4.5).
const Library uint64 = 0

// Function codes dispatched from the word popped at the top of the data
// stack when Library == Library (TRAP_LIBC), in the order §4.5 lists
// them.
const (
	FuncStrlen Func = iota
	FuncStrncpy
	FuncOpen
	FuncClose
	FuncRead
	FuncWrite
	FuncLseek
	FuncFdatasync
	FuncRename
	FuncRemove
	FuncFileSize
	FuncResizeFile
	FuncFileStatus
	FuncArgc
	FuncArgv

	funcCount
)

// Func is a TRAP_LIBC function code.
type Func uint64

func (f Func) Valid() bool { return f < funcCount }

// Standard file descriptor numbers, documented here for assemblers and
// tests; they are ordinary integer literals on the guest side, not
// separately dispatched functions.
const (
	FDStdin  uint64 = 0
	FDStdout uint64 = 1
	FDStderr uint64 = 2
)

// open() flag bits, using the numeric values of the Linux syscall ABI
// so object files built against this bridge match a real libc's
// expectations.
const (
	ORDONLY uint64 = 0x0
	OWRONLY uint64 = 0x1
	ORDWR   uint64 = 0x2
	OCREAT  uint64 = 0x40
	OTRUNC  uint64 = 0x200
)

// lseek() whence values, matching io.SeekStart/Current/End numerically.
const (
	SeekSet uint64 = 0
	SeekCur uint64 = 1
	SeekEnd uint64 = 2
)

const statusError = ^uint64(0) // all bits set, i.e. -1 in the VM's width

// Libc is a vm.TrapHandler implementing TRAP_LIBC. One Libc instance is
// bound to exactly one VM's lifetime; it is not safe to share between
// concurrently-running VMs because it owns an open-file table.
type Libc struct {
	// FSRoot confines every path the guest supplies to this directory
	// (§9's "fsroot confinement"); absolute guest paths are treated as
	// relative to it and ".." components are rejected outright, mirroring
	// the teacher's ValidatePath.
	FSRoot string

	// Argv holds the host-supplied command-line arguments, used by
	// FuncArgc and FuncArgv. ArgvBase is the fixed VM address at which
	// the loader has already materialized the argv table (§6's memory
	// layout); FuncArgv simply returns it.
	Argv     []string
	ArgvBase uint64

	// Stdout is where FuncWrite sends bytes written to fd 1. Defaults
	// to os.Stdout; a host embedding the VM (the API server's session
	// layer) can point it at its own io.Writer to capture or stream
	// guest output instead of letting it go straight to the process's
	// real stdout.
	Stdout io.Writer

	files  map[uint64]*os.File
	nextFD uint64
}

// NewLibc creates a trap bridge confined to fsroot, exposing argv (and
// the address the loader wrote it at) through FuncArgc/FuncArgv.
func NewLibc(fsroot string, argv []string, argvBase uint64) *Libc {
	return &Libc{
		FSRoot:   fsroot,
		Argv:     argv,
		ArgvBase: argvBase,
		Stdout:   os.Stdout,
		files:    make(map[uint64]*os.File),
		nextFD:   3,
	}
}

// Invoke implements vm.TrapHandler.
func (h *Libc) Invoke(m *vm.VM, library uint64) error {
	if library != Library {
		return m.Fault(vm.ErrInvalidLibrary)
	}
	code, err := m.PopData()
	if err != nil {
		return err
	}
	f := Func(code)
	if !f.Valid() {
		return m.Fault(vm.ErrInvalidFunc)
	}
	switch f {
	case FuncStrlen:
		return h.strlen(m)
	case FuncStrncpy:
		return h.strncpy(m)
	case FuncOpen:
		return h.open(m)
	case FuncClose:
		return h.close(m)
	case FuncRead:
		return h.read(m)
	case FuncWrite:
		return h.write(m)
	case FuncLseek:
		return h.lseek(m)
	case FuncFdatasync:
		return h.fdatasync(m)
	case FuncRename:
		return h.rename(m)
	case FuncRemove:
		return h.remove(m)
	case FuncFileSize:
		return h.fileSize(m)
	case FuncResizeFile:
		return h.resizeFile(m)
	case FuncFileStatus:
		return h.fileStatus(m)
	case FuncArgc:
		return m.PushData(uint64(len(h.Argv)))
	case FuncArgv:
		return m.PushData(h.ArgvBase)
	default:
		return m.Fault(vm.ErrInvalidFunc)
	}
}

// readCString reads a NUL-terminated string at addr. There is no length
// limit other than the memory region's own bounds, matching how a real
// strlen would walk off the end of an unmapped buffer: that case
// surfaces as a memory fault from the VM, not a libc error code.
func readCString(m *vm.VM, addr uint64) (string, error) {
	var b strings.Builder
	for {
		v, err := m.Memory.Load(addr, 1)
		if err != nil {
			return "", m.Fault(vm.ErrUnaligned)
		}
		if v == 0 {
			return b.String(), nil
		}
		b.WriteByte(byte(v))
		addr++
	}
}

func (h *Libc) strlen(m *vm.VM) error {
	addr, err := m.PopData()
	if err != nil {
		return err
	}
	s, err := readCString(m, addr)
	if err != nil {
		return err
	}
	return m.PushData(uint64(len(s)))
}

func (h *Libc) strncpy(m *vm.VM) error {
	n, err := m.PopData()
	if err != nil {
		return err
	}
	srcAddr, err := m.PopData()
	if err != nil {
		return err
	}
	dstAddr, err := m.PopData()
	if err != nil {
		return err
	}
	src, err := readCString(m, srcAddr)
	if err != nil {
		return err
	}
	nInt, convErr := vm.SafeUint64ToInt(n)
	if convErr != nil {
		return m.Fault(vm.ErrUnaligned)
	}
	for i := 0; i < nInt; i++ {
		var b byte
		if i < len(src) {
			b = src[i]
		}
		if err := m.Memory.Store(dstAddr+uint64(i), 1, uint64(b)); err != nil {
			return m.Fault(vm.ErrUnaligned)
		}
	}
	return m.PushData(dstAddr)
}

// resolvePath confines path to FSRoot exactly like the teacher's
// ValidatePath: absolute guest paths are rebased under FSRoot, and any
// ".." component is rejected rather than resolved, so a guest cannot
// escape the sandbox by construction.
func (h *Libc) resolvePath(path string) (string, error) {
	if h.FSRoot == "" {
		return "", errors.New("trap: filesystem root not configured")
	}
	if strings.Contains(path, "..") {
		return "", errors.New("trap: path contains '..' component")
	}
	path = strings.TrimPrefix(path, "/")
	return filepath.Clean(filepath.Join(h.FSRoot, path)), nil
}

func (h *Libc) allocFD(f *os.File) uint64 {
	fd := h.nextFD
	h.nextFD++
	h.files[fd] = f
	return fd
}

func (h *Libc) getFile(fd uint64) (*os.File, bool) {
	switch fd {
	case FDStdin:
		return os.Stdin, true
	case FDStdout:
		return os.Stdout, true
	case FDStderr:
		return os.Stderr, true
	}
	f, ok := h.files[fd]
	return f, ok
}

func hostOpenFlags(flags uint64) int {
	out := 0
	if flags&OWRONLY != 0 {
		out |= os.O_WRONLY
	} else if flags&ORDWR != 0 {
		out |= os.O_RDWR
	} else {
		out |= os.O_RDONLY
	}
	if flags&OCREAT != 0 {
		out |= os.O_CREATE
	}
	if flags&OTRUNC != 0 {
		out |= os.O_TRUNC
	}
	return out
}

func (h *Libc) open(m *vm.VM) error {
	flags, err := m.PopData()
	if err != nil {
		return err
	}
	pathAddr, err := m.PopData()
	if err != nil {
		return err
	}
	path, err := readCString(m, pathAddr)
	if err != nil {
		return err
	}
	full, rerr := h.resolvePath(path)
	if rerr != nil {
		return m.PushData(statusError)
	}
	f, oerr := os.OpenFile(full, hostOpenFlags(flags), 0o644)
	if oerr != nil {
		return m.PushData(statusError)
	}
	return m.PushData(h.allocFD(f))
}

func (h *Libc) close(m *vm.VM) error {
	fd, err := m.PopData()
	if err != nil {
		return err
	}
	f, ok := h.getFile(fd)
	if !ok || fd < 3 {
		return m.PushData(statusError)
	}
	delete(h.files, fd)
	if cerr := f.Close(); cerr != nil {
		return m.PushData(statusError)
	}
	return m.PushData(0)
}

func (h *Libc) read(m *vm.VM) error {
	fd, err := m.PopData()
	if err != nil {
		return err
	}
	n, err := m.PopData()
	if err != nil {
		return err
	}
	bufAddr, err := m.PopData()
	if err != nil {
		return err
	}
	f, ok := h.getFile(fd)
	if !ok {
		return m.PushData(statusError)
	}
	nInt, convErr := vm.SafeUint64ToInt(n)
	if convErr != nil {
		return m.Fault(vm.ErrUnaligned)
	}
	buf := make([]byte, nInt)
	read, rerr := f.Read(buf)
	if rerr != nil && rerr != io.EOF {
		return m.PushData(statusError)
	}
	for i := 0; i < read; i++ {
		if serr := m.Memory.Store(bufAddr+uint64(i), 1, uint64(buf[i])); serr != nil {
			return m.Fault(vm.ErrUnaligned)
		}
	}
	return m.PushData(uint64(read))
}

func (h *Libc) write(m *vm.VM) error {
	fd, err := m.PopData()
	if err != nil {
		return err
	}
	n, err := m.PopData()
	if err != nil {
		return err
	}
	bufAddr, err := m.PopData()
	if err != nil {
		return err
	}
	var w io.Writer
	if fd == FDStdout && h.Stdout != nil {
		w = h.Stdout
	} else {
		f, ok := h.getFile(fd)
		if !ok {
			return m.PushData(statusError)
		}
		w = f
	}
	nInt, convErr := vm.SafeUint64ToInt(n)
	if convErr != nil {
		return m.Fault(vm.ErrUnaligned)
	}
	buf := make([]byte, nInt)
	for i := 0; i < nInt; i++ {
		v, lerr := m.Memory.Load(bufAddr+uint64(i), 1)
		if lerr != nil {
			return m.Fault(vm.ErrUnaligned)
		}
		buf[i] = byte(v)
	}
	written, werr := w.Write(buf)
	if werr != nil {
		return m.PushData(statusError)
	}
	return m.PushData(uint64(written))
}

func (h *Libc) lseek(m *vm.VM) error {
	whence, err := m.PopData()
	if err != nil {
		return err
	}
	off, err := m.PopDuword()
	if err != nil {
		return err
	}
	fd, err := m.PopData()
	if err != nil {
		return err
	}
	f, ok := h.getFile(fd)
	if !ok {
		return m.PushDuword(-1)
	}
	hostWhence := io.SeekStart
	switch whence {
	case SeekCur:
		hostWhence = io.SeekCurrent
	case SeekEnd:
		hostWhence = io.SeekEnd
	}
	pos, serr := f.Seek(off, hostWhence)
	if serr != nil {
		return m.PushDuword(-1)
	}
	return m.PushDuword(pos)
}

func (h *Libc) fdatasync(m *vm.VM) error {
	fd, err := m.PopData()
	if err != nil {
		return err
	}
	f, ok := h.getFile(fd)
	if !ok {
		return m.PushData(statusError)
	}
	if serr := f.Sync(); serr != nil {
		return m.PushData(statusError)
	}
	return m.PushData(0)
}

func (h *Libc) rename(m *vm.VM) error {
	newAddr, err := m.PopData()
	if err != nil {
		return err
	}
	oldAddr, err := m.PopData()
	if err != nil {
		return err
	}
	oldPath, err := readCString(m, oldAddr)
	if err != nil {
		return err
	}
	newPath, err := readCString(m, newAddr)
	if err != nil {
		return err
	}
	oldFull, err1 := h.resolvePath(oldPath)
	newFull, err2 := h.resolvePath(newPath)
	if err1 != nil || err2 != nil {
		return m.PushData(statusError)
	}
	if rerr := os.Rename(oldFull, newFull); rerr != nil {
		return m.PushData(statusError)
	}
	return m.PushData(0)
}

func (h *Libc) remove(m *vm.VM) error {
	pathAddr, err := m.PopData()
	if err != nil {
		return err
	}
	path, err := readCString(m, pathAddr)
	if err != nil {
		return err
	}
	full, rerr := h.resolvePath(path)
	if rerr != nil {
		return m.PushData(statusError)
	}
	if remErr := os.Remove(full); remErr != nil {
		return m.PushData(statusError)
	}
	return m.PushData(0)
}

func (h *Libc) fileSize(m *vm.VM) error {
	fd, err := m.PopData()
	if err != nil {
		return err
	}
	f, ok := h.getFile(fd)
	if !ok {
		if perr := m.PushDuword(0); perr != nil {
			return perr
		}
		return m.PushData(statusError)
	}
	info, serr := f.Stat()
	if serr != nil {
		if perr := m.PushDuword(0); perr != nil {
			return perr
		}
		return m.PushData(statusError)
	}
	if perr := m.PushDuword(info.Size()); perr != nil {
		return perr
	}
	return m.PushData(0)
}

func (h *Libc) resizeFile(m *vm.VM) error {
	off, err := m.PopDuword()
	if err != nil {
		return err
	}
	fd, err := m.PopData()
	if err != nil {
		return err
	}
	f, ok := h.getFile(fd)
	if !ok {
		return m.PushData(statusError)
	}
	if terr := f.Truncate(off); terr != nil {
		return m.PushData(statusError)
	}
	return m.PushData(0)
}

func (h *Libc) fileStatus(m *vm.VM) error {
	fd, err := m.PopData()
	if err != nil {
		return err
	}
	f, ok := h.getFile(fd)
	if !ok {
		if perr := m.PushData(0); perr != nil {
			return perr
		}
		return m.PushData(statusError)
	}
	info, serr := f.Stat()
	if serr != nil {
		if perr := m.PushData(0); perr != nil {
			return perr
		}
		return m.PushData(statusError)
	}
	if perr := m.PushData(uint64(info.Mode())); perr != nil {
		return perr
	}
	return m.PushData(0)
}
