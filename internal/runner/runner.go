package runner

import (
	"fmt"
	"os"
	"sort"

	"k0/pkg/color"
	"k0/pkg/vm"

	"github.com/charmbracelet/log"
)

// Runner holds the command-line options and drives one engine run.
type Runner struct {
	Help     bool  // Show help message
	Verbose  bool  // Print the program listing and debug logs
	Trace    bool  // Print each instruction as it executes
	NoColor  bool  // Disable colored output
	MaxSteps int   // Abort after this many instructions (0 = unlimited)
	MemLimit int64 // Allocation budget in bytes (0 = unlimited)
}

// Run builds the demonstration program, executes it, and reports the
// result. The engine's debug output goes to stdout.
func (opts *Runner) Run() error {
	program, entry := demoProgram()

	if opts.Verbose {
		printListing(program)
	}

	engineOpts := []vm.Option{
		vm.WithWriter(os.Stdout),
		vm.WithMaxSteps(opts.MaxSteps),
		vm.WithMemoryLimit(opts.MemLimit),
	}
	if opts.Trace {
		engineOpts = append(engineOpts, vm.WithTrace(func(pc vm.PC, in vm.Instruction) {
			fmt.Fprintf(os.Stderr, "%s  %s\n",
				color.Location(pc.Func.Name, pc.Block, pc.Index),
				color.YellowText(in.String()))
		}))
	}

	engine := vm.NewEngine(program, engineOpts...)

	fmt.Println(color.GreenText("=== Program Output ==="))
	if err := engine.Run(entry); err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}

	log.Debug("Run finished", "live", engine.Memory().Live())
	return nil
}

// demoProgram builds the built-in demonstration: the entry function
// prints 4096, calls an empty callee, then prints -1024.
func demoProgram() (*vm.Program, vm.FuncRef) {
	program := &vm.Program{}

	callee := vm.NewFunction("callee")
	callee.Block(0).Append(
		vm.Instruction{Op: vm.OpRet},
	)
	calleeRef := program.AddFunction(callee)

	main := vm.NewFunction("main")
	main.Block(0).Append(
		vm.Instruction{Op: vm.OpImm, Operand: []int64{1, 4096}},
		vm.Instruction{Op: vm.OpDebug, Operand: []int64{1}},
		vm.Instruction{Op: vm.OpImm, Operand: []int64{1, 1024}},
		vm.Instruction{Op: vm.OpCall, Operand: []int64{int64(calleeRef)}},
		vm.Instruction{Op: vm.OpImm, Operand: []int64{2, -1024}},
		vm.Instruction{Op: vm.OpDebug, Operand: []int64{2}},
		vm.Instruction{Op: vm.OpRet},
	)
	entry := program.AddFunction(main)

	return program, entry
}

// printListing dumps every function block by block, in the style of a
// disassembly.
func printListing(p *vm.Program) {
	fmt.Println(color.GreenText("\n=== Program Listing ==="))
	for ref, fn := range p.Functions {
		fmt.Printf("%s %s (f%d, entry b%d)\n",
			color.BoldText("func"), color.YellowText(fn.Name), ref, fn.Entry)

		ids := make([]int64, 0, len(fn.Blocks))
		for id := range fn.Blocks {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			fmt.Printf("  %s:\n", color.CyanText(fmt.Sprintf("b%d", id)))
			for idx, in := range fn.Blocks[id].Body {
				fmt.Printf("    %s: %s\n",
					color.GrayText(fmt.Sprintf("%d", idx)),
					color.BlueText(in.String()))
			}
		}
	}
	fmt.Println()
}
