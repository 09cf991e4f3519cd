package elfbee

import (
	"fmt"
	"os"

	"github.com/yalue/elf_reader"
)

// Section is one named section's raw content, read from a Bee object
// file. Grounded on the pack's own use of elf_reader
// (robertodauria-ebpf-vm's cmd/vm/main.go): parse once, then walk
// sections by index looking up names.
type Section struct {
	Name    string
	Content []byte
}

// ReadSections parses the ELF object file at path and returns every
// section's name and content. The relocation entries themselves are a
// linker-level concern outside this package's scope; callers that need
// to apply relocations read a section's content here, locate each
// relocation site's offset and type from the object's relocation table,
// and call Apply per site.
func ReadSections(path string) ([]Section, error) {
	raw, err := os.ReadFile(path) // #nosec G304 -- caller-provided object file path
	if err != nil {
		return nil, err
	}
	elf, err := elf_reader.ParseELFFile(raw)
	if err != nil {
		return nil, fmt.Errorf("elfbee: parsing %s: %w", path, err)
	}

	count := elf.GetSectionCount()
	sections := make([]Section, 0, count)
	for i := uint16(0); i < count; i++ {
		name, err := elf.GetSectionName(i)
		if err != nil {
			return nil, fmt.Errorf("elfbee: section %d name: %w", i, err)
		}
		content, err := elf.GetSectionContent(i)
		if err != nil {
			return nil, fmt.Errorf("elfbee: section %q content: %w", name, err)
		}
		sections = append(sections, Section{Name: name, Content: content})
	}
	return sections, nil
}

// FindSection returns the named section's content, or false if no
// section by that name exists.
func FindSection(sections []Section, name string) ([]byte, bool) {
	for _, s := range sections {
		if s.Name == name {
			return s.Content, true
		}
	}
	return nil, false
}
