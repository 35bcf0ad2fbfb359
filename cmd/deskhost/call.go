package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"golang.org/x/term"

	"github.com/1broseidon/deskhost/internal/cmderr"
	"github.com/1broseidon/deskhost/internal/commands"
)

func runCall(args []string) int {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	socket := fs.String("socket", "", "Daemon socket path (default: $XDG_RUNTIME_DIR/deskhost.sock)")
	compact := fs.Bool("compact", false, "Print compact JSON even when stdout is a terminal")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: deskhost call [--socket PATH] [--compact] <command> [json-args|-]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Run a command on the daemon. Arguments are a JSON object; '-' reads them from stdin.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Examples:")
		fmt.Fprintln(os.Stderr, `  deskhost call write_file '{"path":"/tmp/note.md","content":"# Title"}'`)
		fmt.Fprintln(os.Stderr, `  deskhost call open_file_dialog '{"options":{"filters":[{"name":"Text","extensions":["txt"]}]}}'`)
		fmt.Fprintln(os.Stderr, "")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		fs.Usage()
		return 2
	}

	payload, err := readPayload(fs.Args()[1:], os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	data, err := newClient(*socket).Call(ctx, fs.Arg(0), payload)
	if err != nil {
		fmt.Fprintln(os.Stderr, formatCallError(err))
		return 1
	}

	pretty := !*compact && term.IsTerminal(int(os.Stdout.Fd()))
	out, err := formatJSON(data, pretty)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(out)
	return 0
}

// readPayload returns the JSON argument payload from args, or from stdin
// when the argument is "-".
func readPayload(args []string, stdin io.Reader) (json.RawMessage, error) {
	if len(args) == 0 {
		return nil, nil
	}
	raw := []byte(args[0])
	if args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read arguments from stdin: %w", err)
		}
		raw = bytes.TrimSpace(data)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("arguments must be valid JSON")
	}
	return json.RawMessage(raw), nil
}

func formatJSON(data json.RawMessage, pretty bool) (string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return "null", nil
	}
	var buf bytes.Buffer
	var err error
	if pretty {
		err = json.Indent(&buf, data, "", "  ")
	} else {
		err = json.Compact(&buf, data)
	}
	if err != nil {
		return "", fmt.Errorf("invalid response JSON: %w", err)
	}
	return buf.String(), nil
}

func formatCallError(err error) string {
	if kind := cmderr.KindOf(err); kind != "" {
		return fmt.Sprintf("Error (%s): %s", kind, err.Error())
	}
	return fmt.Sprintf("Error: %v", err)
}

func runCommands(args []string) int {
	fs := flag.NewFlagSet("commands", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	socket := fs.String("socket", "", "Daemon socket path (default: $XDG_RUNTIME_DIR/deskhost.sock)")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	var names []string
	data, err := newClient(*socket).Call(context.Background(), commands.ListCommands, nil)
	if err == nil {
		err = json.Unmarshal(data, &names)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "daemon unavailable (%v); listing built-in commands\n", err)
		names = commands.New(commands.Gateways{}, nil).Names()
	}
	fmt.Println(strings.Join(names, "\n"))
	return 0
}
