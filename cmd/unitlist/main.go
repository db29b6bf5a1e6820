// Command unitlist converts a unit-list source file on stdin, containing
// ['Name',supply] tuples, into the JSON unit catalog on stdout.
//
// Usage:
//
//	unitlist < unitlist.js > units.json
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/onnwee/replaybot/unit"
)

func main() {
	if err := run(os.Stdin, os.Stdout); err != nil {
		slog.Error("unit list conversion failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(in io.Reader, out io.Writer) error {
	src, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	catalog, err := unit.ParseSource(src)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(catalog))
	return err
}
