package logging

import (
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

func init() {
	// Set the global logger to use standard error. Standard output carries
	// the monitoring protocol and must never receive log output.
	log.SetOutput(os.Stderr)

	// Disable colorization if standard error isn't a terminal, since the
	// output is most likely being captured by the parent synchronizer.
	if !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		color.NoColor = true
	}
}
