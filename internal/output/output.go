// Package output prints user-facing messages with consistent glyphs
// and colors. Diagnostics go to stderr so wrapped-command piping stays
// clean.
package output

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen, color.Bold)
	red    = color.New(color.FgRed, color.Bold)
	yellow = color.New(color.FgYellow, color.Bold)
	blue   = color.New(color.FgBlue, color.Bold)
)

// Success prints a success message to stdout.
func Success(format string, args ...any) {
	fmt.Printf("%s %s\n", green.Sprint("✓"), fmt.Sprintf(format, args...))
}

// Errorf prints an error message to stderr.
func Errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", red.Sprint("✗"), fmt.Sprintf(format, args...))
}

// Warning prints a warning message to stderr.
func Warning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", yellow.Sprint("!"), fmt.Sprintf(format, args...))
}

// Info prints an informational message to stderr.
func Info(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", blue.Sprint("ℹ"), fmt.Sprintf(format, args...))
}
