package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PathEnv overrides the config file location.
const PathEnv = "DESKHOST_CONFIG"

type SourceKind string

const (
	SourceDefault SourceKind = "default"
	SourceFile    SourceKind = "file"
)

type Source struct {
	Kind   SourceKind
	File   string
	Line   int
	Column int
}

type LoadResult struct {
	Config  *Config
	Sources map[string]Source // YAML-path -> source (file only)
	File    string            // empty when no file exists and defaults are used
}

// SourceOf returns where the value at a YAML-like path came from.
func (r *LoadResult) SourceOf(path string) Source {
	if r != nil {
		if src, ok := r.Sources[path]; ok {
			return src
		}
	}
	return Source{Kind: SourceDefault}
}

type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func DefaultConfigPath() (string, error) {
	if p := os.Getenv(PathEnv); p != "" {
		return p, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "deskhost", "config.yaml"), nil
}

// Load reads the configuration from the standard location and returns an
// effective config ready for use by the daemon.
func Load() (*Config, error) {
	res, err := LoadWithSources()
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// LoadWithSources loads config and returns file-level sources for introspection.
func LoadWithSources() (*LoadResult, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads path on top of DefaultConfig. A missing file yields the
// defaults.
func LoadFromPath(path string) (*LoadResult, error) {
	cfg := DefaultConfig()
	res := &LoadResult{Config: cfg, Sources: map[string]Source{}}

	exists, err := pathExists(path)
	if err != nil {
		return nil, err
	}
	if exists {
		canon, err := canonicalPath(path)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(canon)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read: %w", canon, err)
		}

		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%s: failed to parse yaml: %w", canon, err)
		}
		if err := decodeStrictYAML(data, cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", canon, err)
		}
		res.Sources = collectSources(&doc, canon)
		res.File = canon
	}

	if err := cfg.Validate(); err != nil {
		return nil, attachSourceContext(err, res.Sources)
	}
	return res, nil
}

func decodeStrictYAML(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return nil
}

func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return abs, nil
	}
	return real, nil
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func collectSources(doc *yaml.Node, file string) map[string]Source {
	out := make(map[string]Source)
	if doc == nil {
		return out
	}
	node := doc
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	collectSourcesRec(node, file, "", out)
	return out
}

func collectSourcesRec(node *yaml.Node, file string, prefix string, out map[string]Source) {
	if node == nil || node.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := node.Content[i+1]
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		out[path] = Source{
			Kind:   SourceFile,
			File:   file,
			Line:   val.Line,
			Column: val.Column,
		}
		collectSourcesRec(val, file, path, out)
	}
}

func attachSourceContext(err error, sources map[string]Source) error {
	verr, ok := err.(*ValidationError)
	if !ok || verr == nil || verr.Path == "" {
		return err
	}
	if src, ok := sources[verr.Path]; ok {
		verr.Source = src
	}
	return verr
}
