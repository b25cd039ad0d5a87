// Command loxvm is the REPL/file-execution driver for the loxvm language:
// spec.md §6's "Driver" component, wiring the scanner/compiler/VM pipeline
// to a command line and mapping outcomes to exit codes.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/ncruces/go-strftime"

	"loxvm/internal/compiler"
	"loxvm/internal/history"
	"loxvm/internal/vm"
)

const version = "v0.1.0"

// newFlagSet wires the three boolean flags into a FlagSet with a custom
// double-dash Usage, matching the teacher's cmd/noxy/main.go.
func newFlagSet(showDisassembly, showVersion, showHelp *bool) *flag.FlagSet {
	fs := flag.NewFlagSet("loxvm", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.BoolVar(showDisassembly, "disassemble", false, "Print the compiled chunk's bytecode before running it")
	fs.BoolVar(showVersion, "version", false, "Print version information")
	fs.BoolVar(showHelp, "help", false, "Print this help message")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [path]\n\nOptions:\n", progName())
		fs.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(os.Stderr, "  --%s\n\t%s\n", f.Name, f.Usage)
		})
	}
	return fs
}

func main() {
	crashID := uuid.NewString()
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "loxvm: fatal internal error (crash %s): %v\n", crashID, r)
			debug.PrintStack()
			os.Exit(70)
		}
	}()

	os.Exit(run(os.Args[1:]))
}

// run implements the CLI contract and returns the process exit code
// instead of calling os.Exit directly, so it can be exercised by tests.
func run(args []string) int {
	var showDisassembly, showVersion, showHelp bool

	fs := newFlagSet(&showDisassembly, &showVersion, &showHelp)
	if err := fs.Parse(args); err != nil {
		return 64
	}

	if showHelp {
		fs.Usage()
		return 0
	}
	if showVersion {
		fmt.Printf("loxvm %s\n", version)
		return 0
	}

	positional := fs.Args()
	switch len(positional) {
	case 0:
		runREPL(showDisassembly)
		return 0
	case 1:
		return runFile(positional[0], showDisassembly)
	default:
		fmt.Fprintf(os.Stderr, "Usage: %s [path]\n", progName())
		return 64
	}
}

func progName() string {
	if len(os.Args) == 0 {
		return "loxvm"
	}
	return os.Args[0]
}

func runFile(path string, showDisassembly bool) int {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loxvm: reading %s: %s\n", path, err)
		return 64
	}

	c, compileErr := compiler.CompileTo(string(src), os.Stderr)
	if compileErr != nil {
		return 65
	}

	if showDisassembly {
		fmt.Println(c.Summary())
		c.Disassemble(path)
	}

	machine := vm.New()
	if runErr := machine.Run(c); runErr != nil {
		fmt.Fprint(os.Stderr, runErr.Error())
		return 70
	}
	return 0
}

// runREPL implements spec.md §6's REPL contract: a "> " prompt, one line
// of input interpreted as a complete program per iteration, errors
// recovered and globals persisted across lines via the one shared VM.
func runREPL(showDisassembly bool) {
	interactive := isatty.IsTerminal(os.Stdin.Fd())
	if interactive {
		fmt.Printf("loxvm %s — %s\n", version, strftime.Format("%Y-%m-%d %H:%M:%S", time.Now()))
		fmt.Println("Press Ctrl-D to exit.")
	}

	hist := openHistory()
	if hist != nil {
		defer hist.Close()
	}

	machine := vm.New()
	in := bufio.NewScanner(os.Stdin)

	for {
		if interactive {
			fmt.Print("> ")
		}
		if !in.Scan() {
			return
		}
		line := in.Text()

		errored := false
		c, compileErr := compiler.CompileTo(line, os.Stderr)
		if compileErr != nil {
			errored = true
		} else {
			if showDisassembly {
				fmt.Println(c.Summary())
				c.Disassemble("repl")
			}
			if runErr := machine.Run(c); runErr != nil {
				fmt.Fprint(os.Stderr, runErr.Error())
				errored = true
			}
		}

		if hist != nil {
			if err := hist.Record(line, errored); err != nil {
				fmt.Fprintf(os.Stderr, "loxvm: history: %s\n", err)
			}
		}
	}
}

// openHistory opens the REPL history database in the user's home
// directory. A failure to open history is not fatal to the REPL — it
// just runs unrecorded (SPEC_FULL.md §3).
func openHistory() *history.History {
	dir, err := os.UserHomeDir()
	if err != nil {
		dir = "."
	}
	h, err := history.Open(filepath.Join(dir, ".loxvm_history.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "loxvm: history unavailable: %s\n", err)
		return nil
	}
	return h
}
