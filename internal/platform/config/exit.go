package config

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Exitf prints a fatal message to stderr and exits with status 1. Deferred
// calls do not run.
func Exitf(format string, args ...any) {
	exitf(os.Stderr, os.Exit, format, args...)
}

func exitf(w io.Writer, exit func(int), format string, args ...any) {
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	fmt.Fprintln(w, msg)
	exit(1)
}
