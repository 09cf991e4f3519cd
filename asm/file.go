package asm

import (
	"os"
	"path/filepath"

	"github.com/beevm/bee/isa"
)

// AssembleFile reads the assembly source at path and assembles it for
// the given width/endianness, grounded on the teacher's parser.ParseFile
// entry point. There is no preprocessor stage (.include/.ifdef) here:
// nothing in the instruction set calls for conditional assembly or
// multi-file inclusion, so the two-pass Assembler runs directly over the
// file's own contents.
func AssembleFile(path string, width isa.Width, bigEndian bool) (*Program, error) {
	content, err := os.ReadFile(path) // #nosec G304 -- user-provided assembly file path
	if err != nil {
		return nil, err
	}
	filename := filepath.Base(path)
	a := NewAssembler(width, bigEndian)
	return a.Assemble(string(content), filename)
}
