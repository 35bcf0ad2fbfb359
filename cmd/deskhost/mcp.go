package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/1broseidon/deskhost/internal/config"
	"github.com/1broseidon/deskhost/internal/daemon"
	"github.com/1broseidon/deskhost/internal/dialog"
	"github.com/1broseidon/deskhost/internal/mcp"
	"github.com/1broseidon/deskhost/internal/platform"
	"github.com/1broseidon/deskhost/internal/shell"
)

func printMCPUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: deskhost mcp <command>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve    Start the MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'deskhost mcp <command> --help' for command-specific options.")
}

func runMCP(args []string) int {
	if len(args) == 0 {
		printMCPUsage(os.Stderr)
		return 2
	}

	switch args[0] {
	case "serve":
		return runMCPServe(args[1:])
	case "help", "-h", "--help":
		printMCPUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown mcp command: %s\n\n", args[0])
		printMCPUsage(os.Stderr)
		return 2
	}
}

func runMCPServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	socket := fs.String("socket", "", "Daemon socket path (default: $XDG_RUNTIME_DIR/deskhost.sock)")
	direct := fs.Bool("direct", false, "Run commands in this process instead of forwarding to the daemon")
	fs.Usage = func() {
		fmt.Fprintln(os.Stdout, "Usage: deskhost mcp serve [--socket PATH] [--direct]")
		fmt.Fprintln(os.Stdout, "")
		fmt.Fprintln(os.Stdout, "Start the MCP server on stdio. Tools are forwarded to a running daemon")
		fmt.Fprintln(os.Stdout, "when one answers, otherwise they run in this process.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	var server *mcp.Server
	client := newClient(*socket)
	if !*direct && pingDaemon(client) {
		log.Printf("MCP: forwarding tools to daemon")
		server = mcp.NewServer(client, nil)
	} else {
		server = newDirectMCPServer()
	}
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := server.Run(ctx); err != nil {
		log.Printf("MCP server error: %v", err)
		return 1
	}
	return 0
}

func pingDaemon(client interface{ Ping(context.Context) error }) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return client.Ping(ctx) == nil
}

// newDirectMCPServer runs the gateways in-process. stdout carries the MCP
// stream, so all logging goes to stderr.
func newDirectMCPServer() *mcp.Server {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	auditLog, err := daemon.OpenAuditLog(cfg)
	if err != nil {
		log.Printf("Warning: failed to initialize command log: %v", err)
		auditLog = nil
	}
	host := daemon.NewHost(cfg, daemon.Options{
		Picker: dialog.NativePicker{},
		Runner: shell.ExecRunner{},
		Audit:  auditLog,
		Logger: logger,
	})
	daemon.NewReconnector(daemon.ReconnectorConfig{Logger: logger}, host, platform.Open).ReconnectNow()

	return mcp.NewServer(host, func() error {
		host.Close()
		return auditLog.Close()
	})
}
