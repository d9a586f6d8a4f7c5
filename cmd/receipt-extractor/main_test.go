package main

import (
	"flag"
	"os"
	"testing"
)

func TestRunUsageExitCode(t *testing.T) {
	oldArgs, oldFlags := os.Args, flag.CommandLine
	t.Cleanup(func() { os.Args, flag.CommandLine = oldArgs, oldFlags })

	flag.CommandLine = flag.NewFlagSet("receipt-extractor", flag.ContinueOnError)
	os.Args = []string{"receipt-extractor"}
	if code := run(); code != 2 {
		t.Errorf("run() with no arguments = %d, want 2", code)
	}
}
