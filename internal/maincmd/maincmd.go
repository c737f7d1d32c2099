// Package maincmd implements the mirbridge CLI's argument parsing and
// command dispatch, in the style of the teacher pack's mainer.Parser +
// reflection-dispatched subcommand pattern.
package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/mna/mainer"
)

const binName = "mirbridge"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <command> <mir-file>
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <command> <mir-file>
       %[1]s -h|--help
       %[1]s -v|--version

Translates a binary MIR module into native object code or textual IR.

The <command> can be one of:
       compile                   Translate every function and emit a
                                  native object file.
       cgu                       Translate only the function indices
                                  named by --indices and emit an object.
       ir                        Translate every function and print the
                                  backend's textual IR listing.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       --target                  Target triple (default: host, ELF64).
       --opt-level               Optimization level 0-3 (reserved).
       --indices                 Comma-separated function indices (cgu).
       --out                     Output file (default: stdout).

Environment overrides (MIRBRIDGE_ prefix) take precedence over flag
defaults but not over explicit flags: MIRBRIDGE_TARGET, MIRBRIDGE_OPT_LEVEL.
`, binName)
)

// envConfig holds the environment-variable overrides caarlos0/env
// populates before flag parsing; flags explicitly passed on the command
// line still win (mainer.Parser applies on top of these defaults).
type envConfig struct {
	Target   string `env:"MIRBRIDGE_TARGET" envDefault:""`
	OptLevel int    `env:"MIRBRIDGE_OPT_LEVEL" envDefault:"0"`
}

// Cmd is the mirbridge command-line invocation, parsed by mainer.Parser
// the same way the teacher pack's Cmd type is.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	Target   string `flag:"target"`
	OptLevel int    `flag:"opt-level"`
	Indices  string `flag:"indices"`
	Out      string `flag:"out"`

	args  []string
	cmdFn func(context.Context, mainer.Stdio, []string) error
}

func (c *Cmd) SetArgs(args []string) { c.args = args }
func (c *Cmd) SetFlags(map[string]bool) {}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) == 0 {
		return errors.New("no command specified")
	}
	cmdName := c.args[0]
	commands := buildCmds(c)
	c.cmdFn = commands[cmdName]
	if c.cmdFn == nil {
		return fmt.Errorf("unknown command: %s", cmdName)
	}
	if len(c.args[1:]) == 0 {
		return fmt.Errorf("%s: a MIR file must be provided", cmdName)
	}
	if cmdName == "cgu" && c.Indices == "" {
		return errors.New("cgu: --indices is required")
	}
	return nil
}

// Main parses env overrides, then flags, and dispatches to a subcommand,
// mirroring the teacher pack's Cmd.Main control flow exactly.
func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	var cfg envConfig
	if err := env.Parse(&cfg); err == nil {
		c.Target = cfg.Target
		c.OptLevel = cfg.OptLevel
	}

	p := mainer.Parser{EnvVars: false, EnvPrefix: binName + "_"}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.cmdFn(ctx, stdio, c.args[1:]); err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return mainer.Failure
	}
	return mainer.Success
}

func buildCmds(v interface{}) map[string]func(context.Context, mainer.Stdio, []string) error {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) error)
	vv := reflect.ValueOf(v)
	vt := vv.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type
		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}
		if rt := mt.Out(0); rt.Kind() != reflect.Interface || rt.Name() != "error" {
			continue
		}
		if p0 := mt.In(0); p0.Kind() != reflect.Ptr || p0.Elem().Name() != "Cmd" {
			continue
		}
		if p1 := mt.In(1); p1.Kind() != reflect.Interface || p1.Name() != "Context" {
			continue
		}
		if p2 := mt.In(2); p2.Kind() != reflect.Struct || p2.Name() != "Stdio" {
			continue
		}
		if p3 := mt.In(3); p3.Kind() != reflect.Slice || p3.Elem().Name() != "string" {
			continue
		}
		cmds[strings.ToLower(m.Name)] = vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) error)
	}
	return cmds
}
