// Command haloschedule runs the auto-scheduler over a pipeline JSON
// document and prints the resulting schedule directives: a single
// positional pipeline-file argument, color.Green/color.Red status lines,
// and a friendly per-error-kind report instead of a bare stack trace.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/bilbil/haloschedule/internal/autoscheduler"
	"github.com/bilbil/haloschedule/internal/config"
	"github.com/bilbil/haloschedule/internal/pipelineio"
	"github.com/bilbil/haloschedule/internal/schederr"
)

func main() {
	var configPath string
	var verbose bool
	flag.StringVar(&configPath, "config", "", "path to a machine config YAML file (optional; defaults are used otherwise)")
	flag.BoolVar(&verbose, "v", false, "narrate each scheduling phase to stderr")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: haloschedule [-config machine.yaml] [-v] <pipeline.json>")
		os.Exit(1)
	}
	pipelinePath := flag.Arg(0)

	target := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			color.Red("Failed to load machine config: %s", err)
			os.Exit(1)
		}
		target = loaded
	}

	env, outputs, err := pipelineio.ReadPipeline(pipelinePath)
	if err != nil {
		color.Red("Failed to read pipeline: %s", err)
		os.Exit(1)
	}

	autoscheduler.Verbose = verbose
	result, err := autoscheduler.GenerateSchedules(outputs, env, target)
	if err != nil {
		reportSchedulingError(err)
		os.Exit(1)
	}

	for _, line := range result.Directives {
		fmt.Println(line)
	}
	color.Green("✅ Scheduled %d output(s) into %d group(s)", len(outputs), len(result.Groups))
}

// reportSchedulingError distinguishes spec.md §7's error kinds so the
// message points at the right fix: a UserError names the offending
// function/dim, a ContractViolation is this program's own bug.
func reportSchedulingError(err error) {
	var uerr *schederr.UserError
	var cerr *schederr.ContractViolation
	switch {
	case errors.As(err, &uerr):
		color.Red("❌ Pipeline error in %s.%s: %s", uerr.Func, uerr.Dim, uerr.Err)
	case errors.As(err, &cerr):
		color.Red("❌ Internal contract violation: %s", cerr.Msg)
	default:
		color.Red("❌ Unexpected error: %s", err)
	}
}
