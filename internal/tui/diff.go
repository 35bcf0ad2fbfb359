package tui

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/1broseidon/deskhost/internal/config"
)

type diffKind int

const (
	diffSame diffKind = iota
	diffRemoved
	diffAdded
)

type diffLine struct {
	kind diffKind
	text string
}

// diffContext is the number of unchanged lines kept around each change.
const diffContext = 1

// diffConfigs returns a line diff of the YAML form of two configs, or nil
// when they marshal identically.
func diffConfigs(before, after *config.Config) []diffLine {
	a, err := before.Marshal()
	if err != nil {
		return nil
	}
	b, err := after.Marshal()
	if err != nil {
		return nil
	}
	if string(a) == string(b) {
		return nil
	}
	return trimContext(lineDiff(splitLines(a), splitLines(b)))
}

func splitLines(data []byte) []string {
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

// lineDiff walks a longest-common-subsequence table of a and b.
func lineDiff(a, b []string) []diffLine {
	lcs := make([][]int, len(a)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(b)+1)
	}
	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			switch {
			case a[i] == b[j]:
				lcs[i][j] = lcs[i+1][j+1] + 1
			case lcs[i+1][j] >= lcs[i][j+1]:
				lcs[i][j] = lcs[i+1][j]
			default:
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var out []diffLine
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case i < len(a) && j < len(b) && a[i] == b[j]:
			out = append(out, diffLine{diffSame, a[i]})
			i++
			j++
		case j == len(b) || (i < len(a) && lcs[i+1][j] >= lcs[i][j+1]):
			out = append(out, diffLine{diffRemoved, a[i]})
			i++
		default:
			out = append(out, diffLine{diffAdded, b[j]})
			j++
		}
	}
	return out
}

// trimContext drops unchanged lines further than diffContext from a change,
// marking each gap with "...".
func trimContext(lines []diffLine) []diffLine {
	keep := make([]bool, len(lines))
	for i, l := range lines {
		if l.kind == diffSame {
			continue
		}
		for k := max(0, i-diffContext); k <= min(len(lines)-1, i+diffContext); k++ {
			keep[k] = true
		}
	}

	var out []diffLine
	gap := false
	for i, l := range lines {
		if !keep[i] {
			gap = true
			continue
		}
		if gap {
			out = append(out, diffLine{diffSame, "..."})
		}
		gap = false
		out = append(out, l)
	}
	return out
}

// cloneConfig deep-copies cfg through its YAML form.
func cloneConfig(cfg *config.Config) *config.Config {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return config.DefaultConfig()
	}
	var out config.Config
	if err := yaml.Unmarshal(data, &out); err != nil {
		return config.DefaultConfig()
	}
	return &out
}
