package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/deskhost/internal/config"
	"github.com/1broseidon/deskhost/internal/tui"
)

func loadConfigResult(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  deskhost config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  deskhost config print [--path PATH] [--defaults]")
		fmt.Fprintln(os.Stderr, "  deskhost config explain [--path PATH] <yaml.path>")
		fmt.Fprintln(os.Stderr, "  deskhost config init [--force]")
		fmt.Fprintln(os.Stderr, "  deskhost config edit [--path PATH] [--socket PATH]")
		fmt.Fprintln(os.Stderr, "  deskhost config path")
		return 2
	}

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/deskhost/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if _, err := loadConfigResult(*path); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("config: ok")
		return 0

	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/deskhost/config.yaml)")
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			res, err := loadConfigResult(*path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			if res.File != "" {
				fmt.Printf("# file: %s\n", res.File)
			}
			cfg = res.Config
		}
		data, err := cfg.Marshal()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	case "explain":
		fs := flag.NewFlagSet("explain", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/deskhost/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() < 1 {
			fmt.Fprintln(os.Stderr, "explain requires <yaml.path>")
			return 2
		}
		queryPath := fs.Arg(0)

		res, err := loadConfigResult(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		value, err := lookupConfigValue(res.Config, queryPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		out, err := yaml.Marshal(value)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		fmt.Printf("path: %s\n", queryPath)
		fmt.Printf("source: %s\n", formatSource(res.SourceOf(queryPath)))
		fmt.Printf("value:\n%s", string(out))
		return 0

	case "init":
		fs := flag.NewFlagSet("init", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		force := fs.Bool("force", false, "Overwrite an existing config file")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		path, err := config.DefaultConfigPath()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if _, err := os.Stat(path); err == nil && !*force {
			fmt.Fprintf(os.Stderr, "%s already exists (use --force to overwrite)\n", path)
			return 1
		}
		if err := config.DefaultConfig().Save(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("wrote %s\n", path)
		return 0

	case "edit":
		fs := flag.NewFlagSet("edit", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/deskhost/config.yaml)")
		socket := fs.String("socket", "", "Daemon socket path to reload after saving")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if err := tui.Run(*path, newClient(*socket)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0

	case "path":
		path, err := config.DefaultConfigPath()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println(path)
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		return 2
	}
}

// lookupConfigValue walks a dotted YAML path through the marshalled config.
func lookupConfigValue(cfg *config.Config, path string) (any, error) {
	data, err := cfg.Marshal()
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	var cur any = tree
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unknown config path %q", path)
		}
		next, ok := m[part]
		if !ok {
			return nil, fmt.Errorf("unknown config path %q", path)
		}
		cur = next
	}
	return cur, nil
}

func formatSource(src config.Source) string {
	switch src.Kind {
	case config.SourceFile:
		if src.File == "" {
			return "file"
		}
		if src.Line > 0 {
			return fmt.Sprintf("file:%s:%d:%d", src.File, src.Line, src.Column)
		}
		return "file:" + src.File
	case config.SourceDefault:
		return "default"
	default:
		return string(src.Kind)
	}
}
