package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dovm/asm"
	"dovm/vm"
)

// repl is an interactive single-stepping shell over a VM: a bufio.Reader
// over stdin, one command dispatched per line.
type repl struct {
	log     *logrus.Logger
	machine *vm.VM
	symbols *asm.SymbolTable
	history []string
}

func newReplCmd(log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "repl [file]",
		Short: "interactive stepping shell",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := &repl{log: log, machine: vm.New(log)}
			if len(args) == 1 {
				if err := r.load(args[0]); err != nil {
					return err
				}
			}
			r.loop()
			return nil
		},
	}
}

func (r *repl) load(path string) error {
	bytes, symbols, err := loadImage(path)
	if err != nil {
		return err
	}
	if err := r.machine.SetBytecode(bytes); err != nil {
		return errors.Wrap(err, "loading bytecode")
	}
	r.symbols = symbols
	return nil
}

func (r *repl) loop() {
	fmt.Println("Commands: :load <path>, :step (:n), :run, :r (registers), :list, :s (symbols), :history, :c (reset), :q")

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("\n-> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.history = append(r.history, line)

		switch {
		case line == ":q":
			return
		case line == ":c":
			r.machine = vm.New(r.log)
		case line == ":history":
			for _, h := range r.history {
				fmt.Println(h)
			}
		case line == ":list":
			r.list()
		case line == ":r":
			r.dumpRegisters()
		case line == ":s":
			r.dumpSymbols()
		case line == ":step" || line == ":n":
			r.step()
		case line == ":run":
			r.run()
		case strings.HasPrefix(line, ":load "):
			path := strings.TrimSpace(strings.TrimPrefix(line, ":load "))
			if err := r.load(path); err != nil {
				fmt.Println(err)
			}
		default:
			fmt.Println("unknown command:", line)
		}
	}
}

func (r *repl) step() {
	halted, err := r.machine.Step()
	if err != nil {
		fmt.Println(err)
		return
	}
	if halted {
		fmt.Println("halted")
	}
}

func (r *repl) run() {
	if err := r.machine.Run(); err != nil {
		fmt.Println(err)
	}
}

func (r *repl) list() {
	for _, line := range asm.Disassemble(r.machine.Code()) {
		fmt.Println(line)
	}
}

// dumpSymbols prints every recorded symbol's name, kind, and offset. Symbols
// only exist once a .asm source has been loaded through :load or the
// `dovm repl <file>` argument (.bc images carry no symbol table).
func (r *repl) dumpSymbols() {
	if r.symbols == nil {
		fmt.Println("no symbol table loaded; load a .asm source to inspect symbols")
		return
	}
	all := r.symbols.All()
	if len(all) == 0 {
		fmt.Println("no symbols")
		return
	}
	for _, s := range all {
		fmt.Printf("%-20s %-8s offset=%d\n", s.Name, s.Kind, s.Offset)
	}
}

// dumpRegisters prints all integer and real registers four per line,
// tab-separated, restricted to populated vector registers to avoid 32 lines
// of mostly-nil slices.
func (r *repl) dumpRegisters() {
	for i := 0; i < 32; i += 4 {
		fmt.Printf("$i%d=%d\t$i%d=%d\t$i%d=%d\t$i%d=%d\n",
			i, r.machine.IRegisters[i],
			i+1, r.machine.IRegisters[i+1],
			i+2, r.machine.IRegisters[i+2],
			i+3, r.machine.IRegisters[i+3])
	}
	for i := 0; i < 32; i += 4 {
		fmt.Printf("$r%d=%v\t$r%d=%v\t$r%d=%v\t$r%d=%v\n",
			i, r.machine.RRegisters[i],
			i+1, r.machine.RRegisters[i+1],
			i+2, r.machine.RRegisters[i+2],
			i+3, r.machine.RRegisters[i+3])
	}
	for i, v := range r.machine.VRegisters {
		if len(v) > 0 {
			fmt.Printf("$v%d=%v\n", i, v)
		}
	}
}
