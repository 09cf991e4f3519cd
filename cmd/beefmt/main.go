// Command beefmt formats and lints Bee assembly source.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/beevm/bee/tools"
)

func main() {
	var (
		write   = flag.Bool("w", false, "Write the formatted result back to the file instead of stdout")
		compact = flag.Bool("compact", false, "Use compact formatting (no column alignment)")
		expand  = flag.Bool("expand", false, "Use expanded formatting (wider columns)")
		lint    = flag.Bool("lint", false, "Run the linter instead of formatting")
		lintAll = flag.Bool("lint-and-format", false, "Lint, then format if no errors were found")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: beefmt [flags] <source.bee>")
		flag.PrintDefaults()
		os.Exit(1)
	}
	path := flag.Arg(0)

	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied source path, a CLI tool's basic function
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading %s: %v\n", path, err)
		os.Exit(1)
	}
	source := string(data)

	if *lint || *lintAll {
		issues := tools.NewLinter().Lint(source, path)
		errCount := 0
		for _, issue := range issues {
			fmt.Printf("%s:%s\n", path, issue)
			if issue.Level == tools.LintError {
				errCount++
			}
		}
		if *lint {
			if errCount > 0 {
				os.Exit(1)
			}
			return
		}
		if errCount > 0 {
			os.Exit(1)
		}
	}

	opts := tools.DefaultFormatOptions()
	switch {
	case *compact:
		opts = tools.CompactFormatOptions()
	case *expand:
		opts = tools.ExpandedFormatOptions()
	}

	formatted := tools.Format(source, path, opts)

	if *write {
		if err := os.WriteFile(path, []byte(formatted+"\n"), 0o644); err != nil { // #nosec G306 -- rewriting the user's own source file
			fmt.Fprintf(os.Stderr, "error writing %s: %v\n", path, err)
			os.Exit(1)
		}
		return
	}

	fmt.Println(formatted)
}
