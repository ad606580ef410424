// signpad - place signature images and text on PDF pages
//
// The headless front end of the overlay engine:
//
//	signpad info <pdf>                 Show page count and page sizes
//	signpad preview <pdf> -layout f    Render a page with its overlays to PNG
//	signpad sign <pdf> -layout f       Write <base>_signed_by_<name>.pdf
//	signpad layout <pdf> -layout f     Check a layout against a document
//	signpad library <action>           Manage saved signatures
//	signpad config                     Show the effective configuration
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// Version is set at build time.
var Version = "dev"

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// errUsage marks errors that are answered with the command's usage.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string) int {
	if len(args) < 1 {
		usage()
		return 1
	}

	var err error
	switch cmd, rest := args[0], args[1:]; cmd {
	case "info":
		err = cmdInfo(ctx, rest)
	case "preview":
		err = cmdPreview(ctx, rest)
	case "sign":
		err = cmdSign(ctx, rest)
	case "layout":
		err = cmdLayout(ctx, rest)
	case "library":
		err = cmdLibrary(ctx, rest)
	case "config":
		err = cmdConfig(ctx, rest)
	case "version":
		fmt.Fprintf(stdout, "signpad %s\n", Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", cmd)
		usage()
		return 1
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 2
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "Usage: %v\n", err)
		return 2
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}

func usage() {
	fmt.Fprintln(stdout, `signpad - Place signatures on PDF documents

USAGE:
    signpad <command> [options]

COMMANDS:
    info <pdf>                  Show page count and page sizes
    preview <pdf>               Render one page with its overlays to PNG
    sign <pdf>                  Export a signed copy of the document
    layout <pdf>                Check a layout file and print its elements
    library <action>            Manage saved signatures
                                  list | add <name> <image> | rm <name>
                                  import [dir] | verify | status
    config                      Show the effective configuration
    version                     Show the version
    help                        Show this help message

COMMON OPTIONS:
    -config <file>              Configuration file (TOML, JSON or YAML)

WORKFLOW:
    1. signpad library add me ~/signature.png
    2. write a layout file (YAML, JSON or TOML):
           units: document
           elements:
             - {kind: image, page: 1, x: 400, y: 680, width: 120, library: me}
             - {kind: text, page: 1, x: 400, y: 740, text: Approved, color: blue}
    3. signpad preview contract.pdf -layout sign.yaml -o check.png
    4. signpad sign contract.pdf -layout sign.yaml

The signed copy keeps the original bytes and appends the overlays together
with a "Signed by NAME" stamp as an incremental update.`)
}

// flagSet returns a flag set that reports errors instead of exiting and
// carries the common -config option.
func flagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Configuration file")
	return fs, configPath
}

// parseArgs parses flags that may appear before, between or after
// positional arguments and returns the positional ones.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}
