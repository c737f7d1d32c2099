// Command mirbridge is the stand-alone CLI wrapper around the bridge's
// Go-native facade, for hosts that would rather exec a subprocess than
// link the cgo shared library.
package main

import (
	"os"

	"github.com/mna/mainer"

	"github.com/hivellm/cranelift-bridge/internal/maincmd"
)

var (
	version   = "{v}"
	buildDate = "{d}"
)

func main() {
	c := maincmd.Cmd{BuildVersion: version, BuildDate: buildDate}
	os.Exit(int(c.Main(os.Args, mainer.CurrentStdio())))
}
