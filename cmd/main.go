package main

import (
	"flag"
	"fmt"
	"os"

	"k0/internal/logger"
	"k0/internal/runner"
	"k0/pkg/color"

	"github.com/charmbracelet/log"
)

// Main entry point for the k0 execution engine.
func main() {
	options := runner.Runner{}

	flag.BoolVar(&options.Help, "h", false, "Show help")
	flag.BoolVar(&options.Verbose, "v", false, "Verbose mode")
	flag.BoolVar(&options.Trace, "t", false, "Trace each executed instruction")
	flag.BoolVar(&options.NoColor, "n", false, "No color")
	flag.IntVar(&options.MaxSteps, "max-steps", 0, "Abort after N instructions (0 = unlimited)")
	flag.Int64Var(&options.MemLimit, "mem-limit", 0, "Allocation budget in bytes (0 = unlimited)")

	flag.Parse()

	logger.Init(options.Verbose, options.NoColor)
	if options.Help {
		fmt.Printf("Usage: %s [options]\n", os.Args[0])
		fmt.Println("Runs the built-in demonstration program.")
		fmt.Println("Options:")
		flag.PrintDefaults()
		return
	}

	if options.NoColor {
		color.EnableColor(false)
	}

	err := options.Run()
	if err != nil {
		log.Fatal("Run failed", "error", err)
	}
}
