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
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/1broseidon/deskhost/internal/config"
	"github.com/1broseidon/deskhost/internal/daemon"
	"github.com/1broseidon/deskhost/internal/dialog"
	"github.com/1broseidon/deskhost/internal/ipc"
	"github.com/1broseidon/deskhost/internal/platform"
	"github.com/1broseidon/deskhost/internal/runtimepath"
	"github.com/1broseidon/deskhost/internal/shell"
	"github.com/1broseidon/deskhost/internal/wsbridge"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		if len(os.Args) > 2 && (os.Args[2] == "help" || os.Args[2] == "-h" || os.Args[2] == "--help") {
			fmt.Fprintln(os.Stdout, "Usage: deskhost daemon")
			os.Exit(0)
		}
		if len(os.Args) > 2 {
			fmt.Fprintln(os.Stderr, "daemon takes no arguments")
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, "Usage: deskhost daemon")
			os.Exit(2)
		}
		runDaemon()
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "reload":
		os.Exit(runReload(os.Args[2:]))
	case "call":
		os.Exit(runCall(os.Args[2:]))
	case "commands":
		os.Exit(runCommands(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: deskhost <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the deskhost daemon (foreground)")
	fmt.Fprintln(w, "  status              Check that the daemon is responding")
	fmt.Fprintln(w, "  reload              Ask the daemon to re-read its config")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  call                Run a command on the daemon")
	fmt.Fprintln(w, "  commands            List available commands")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  config explain      Explain a config value")
	fmt.Fprintln(w, "  config init         Write the default configuration")
	fmt.Fprintln(w, "  config edit         Edit configuration interactively")
	fmt.Fprintln(w, "  config path         Print the config file path")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'deskhost <command> --help' for command-specific options.")
}

func newClient(socket string) *ipc.Client {
	if socket == "" {
		return ipc.NewClient()
	}
	return ipc.NewClientForSocket(socket)
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	socket := fs.String("socket", "", "Daemon socket path (default: $XDG_RUNTIME_DIR/deskhost.sock)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: deskhost status [--socket PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show daemon status via IPC.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}

	path := *socket
	if path == "" {
		var err error
		if path, err = runtimepath.SocketPath(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	if err := ipc.NewClientForSocket(path).Ping(ctx); err != nil {
		fmt.Printf("daemon_running: false\n")
		fmt.Printf("socket:         %s\n", path)
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("daemon_running: true\n")
	fmt.Printf("socket:         %s\n", path)
	fmt.Printf("latency_ms:     %d\n", time.Since(start).Milliseconds())
	return 0
}

func runReload(args []string) int {
	fs := flag.NewFlagSet("reload", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	socket := fs.String("socket", "", "Daemon socket path (default: $XDG_RUNTIME_DIR/deskhost.sock)")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if err := newClient(*socket).Reload(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Reload failed: %v\n", err)
		return 1
	}
	fmt.Println("config reloaded")
	return 0
}

// bridgeRunner starts, restarts and stops the websocket bridge as the
// bridge config changes.
type bridgeRunner struct {
	host   *daemon.Host
	logger *slog.Logger

	mu     sync.Mutex
	cfg    config.BridgeConfig
	server *wsbridge.Server
}

func (b *bridgeRunner) apply(cfg config.BridgeConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.server != nil && reflect.DeepEqual(cfg, b.cfg) {
		return nil
	}
	b.stopLocked()
	b.cfg = cfg
	if !cfg.Enabled {
		return nil
	}

	token, err := bridgeToken(cfg)
	if err != nil {
		return err
	}
	srv := wsbridge.New(b.host, wsbridge.Options{
		Listen:         cfg.Listen,
		Path:           cfg.Path,
		AllowedOrigins: cfg.AllowedOrigins,
		Token:          token,
		Logger:         b.logger,
	})
	if err := srv.Start(); err != nil {
		return err
	}
	b.server = srv
	return nil
}

// bridgeToken loads the bridge token, creating the token file on first use.
// It returns "" when anonymous clients are allowed.
func bridgeToken(cfg config.BridgeConfig) (string, error) {
	if cfg.AllowAnonymous {
		return "", nil
	}
	path := cfg.TokenFile
	if path == "" {
		var err error
		if path, err = runtimepath.BridgeTokenPath(); err != nil {
			return "", err
		}
	}
	token, err := wsbridge.LoadOrCreateToken(path)
	if err != nil {
		return "", fmt.Errorf("bridge token: %w", err)
	}
	return token, nil
}

func (b *bridgeRunner) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
}

func (b *bridgeRunner) stopLocked() {
	if b.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.server.Shutdown(ctx); err != nil {
		b.logger.Warn("bridge shutdown failed", "error", err)
	}
	b.server = nil
}

func runDaemon() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Printf("Configuration loaded (app_id: %s)", cfg.AppID)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	auditLog, err := daemon.OpenAuditLog(cfg)
	if err != nil {
		log.Printf("Warning: failed to initialize command log: %v", err)
		auditLog = nil
	}
	defer auditLog.Close()

	host := daemon.NewHost(cfg, daemon.Options{
		Picker: dialog.NativePicker{},
		Runner: shell.ExecRunner{},
		Audit:  auditLog,
		Logger: logger,
	})
	defer host.Close()

	reconnector := daemon.NewReconnector(daemon.ReconnectorConfig{
		Interval: 5 * time.Second,
		Logger:   logger,
	}, host, platform.Open)
	if !reconnector.ReconnectNow() {
		log.Println("Window commands unavailable until a display is reachable")
	}
	reconnectCtx, reconnectCancel := context.WithCancel(context.Background())
	defer reconnectCancel()
	go reconnector.Run(reconnectCtx)

	bridge := &bridgeRunner{host: host, logger: logger}
	if err := bridge.apply(cfg.Bridge); err != nil {
		log.Fatalf("Failed to start bridge: %v", err)
	}
	defer bridge.stop()

	var reloadMu sync.Mutex
	reload := func() error {
		reloadMu.Lock()
		defer reloadMu.Unlock()

		newCfg, err := config.Load()
		if err != nil {
			return err
		}
		if host.Reload(newCfg) {
			reconnector.ReconnectNow()
		}
		if err := bridge.apply(newCfg.Bridge); err != nil {
			return fmt.Errorf("config applied but bridge failed to start: %w", err)
		}
		return nil
	}

	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		log.Fatalf("Failed to resolve socket path: %v", err)
	}
	ipcServer, err := ipc.NewServer(socketPath, host, reload)
	if err != nil {
		log.Fatalf("Failed to create IPC server: %v", err)
	}
	if err := ipcServer.Start(); err != nil {
		log.Fatalf("Failed to start IPC server: %v", err)
	}
	defer ipcServer.Stop()

	log.Printf("deskhost daemon started successfully (socket: %s)", socketPath)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigCh {
		if sig == syscall.SIGHUP {
			log.Println("Received SIGHUP, reloading config...")
			if err := reload(); err != nil {
				log.Printf("Config reload failed: %v", err)
				continue
			}
			log.Println("Config reloaded successfully")
			continue
		}
		log.Println("Shutting down deskhost daemon...")
		break
	}
}
