package maincmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mna/mainer"

	"github.com/hivellm/cranelift-bridge/ffi"
)

func (c *Cmd) options() ffi.Options {
	return ffi.Options{
		OptimizationLevel: int32(c.OptLevel),
		TargetTriple:      c.Target,
	}
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func (c *Cmd) writeOutput(stdio mainer.Stdio, data []byte) error {
	if c.Out == "" || c.Out == "-" {
		_, err := stdio.Stdout.Write(data)
		return err
	}
	return os.WriteFile(c.Out, data, 0o644)
}

// Compile translates every function in the named MIR module and writes a
// native object file.
func (c *Cmd) Compile(_ context.Context, stdio mainer.Stdio, args []string) error {
	data, err := readInput(args[0])
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	obj, err := ffi.CompileMIR(data, c.options())
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	return c.writeOutput(stdio, obj)
}

// Cgu translates only the function indices named by --indices, for
// partitioned compilation of a larger module.
func (c *Cmd) Cgu(_ context.Context, stdio mainer.Stdio, args []string) error {
	data, err := readInput(args[0])
	if err != nil {
		return fmt.Errorf("cgu: %w", err)
	}
	indices, err := parseIndices(c.Indices)
	if err != nil {
		return fmt.Errorf("cgu: %w", err)
	}
	obj, err := ffi.CompileMIRCGU(data, indices, c.options())
	if err != nil {
		return fmt.Errorf("cgu: %w", err)
	}
	return c.writeOutput(stdio, obj)
}

// Ir translates every function and prints the backend's textual IR
// listing instead of object bytes.
func (c *Cmd) Ir(_ context.Context, stdio mainer.Stdio, args []string) error {
	data, err := readInput(args[0])
	if err != nil {
		return fmt.Errorf("ir: %w", err)
	}
	text, err := ffi.GenerateIR(data, c.options())
	if err != nil {
		return fmt.Errorf("ir: %w", err)
	}
	return c.writeOutput(stdio, []byte(text))
}

func parseIndices(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid index %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}
