// Package elfbee holds the ELF-level constants and relocation encoding
// the Bee toolchain needs to produce and consume object files: the
// dedicated machine code, its two sub-machines, and the nine relocation
// types from §6 of the instruction-set reference. Section reading is a
// thin wrapper over the pack's ELF reader rather than a hand-rolled
// parser.
package elfbee

// Machine is the ELF e_machine value reserved for Bee object files.
const Machine = 0xBEE

// SubMachine distinguishes the two word widths sharing the one Machine
// code, carried in the ELF header's flags word rather than as a
// separate e_machine value.
type SubMachine uint32

const (
	SubMachineBee32 SubMachine = 32
	SubMachineBee64 SubMachine = 64
)

// PageSize is the alignment ELF program headers use for Bee binaries.
// Bee has no MMU and no page-granularity protection, so there is no
// reason to round segments up to a conventional 4096-byte page; using 1
// keeps object files exactly as large as their content.
const PageSize = 1
