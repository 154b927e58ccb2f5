// Package diff shrinks unified diffs to the lines a reviewer actually reads.
package diff

import (
	"path"
	"strings"
)

// DefaultMaxLinesPerFile bounds how many changed lines a single file may contribute.
const DefaultMaxLinesPerFile = 200

var noiseFiles = map[string]bool{
	"package-lock.json":   true,
	"npm-shrinkwrap.json": true,
	"yarn.lock":           true,
	"pnpm-lock.yaml":      true,
	"bun.lock":            true,
	"bun.lockb":           true,
	"go.sum":              true,
	"Cargo.lock":          true,
	"poetry.lock":         true,
	"Pipfile.lock":        true,
	"Gemfile.lock":        true,
	"composer.lock":       true,
	"flake.lock":          true,
}

var noiseSuffixes = []string{
	".lock",
	".min.js",
	".min.css",
	".map",
	".snap",
	".pb.go",
	"_generated.go",
	".generated.ts",
}

var noiseDirs = []string{
	"dist/",
	"vendor/",
	"node_modules/",
	"__snapshots__/",
}

// Reducer keeps file headers, hunk headers and non-blank added or removed
// lines, and drops everything else. Output lines are a subsequence of the
// input lines, so the result is never longer than the input and reducing it
// again yields the same text.
type Reducer struct {
	// MaxLinesPerFile caps changed lines kept per file. Zero means no cap.
	MaxLinesPerFile int
}

// Reduce applies a Reducer with DefaultMaxLinesPerFile.
func Reduce(text string) string {
	return Reducer{MaxLinesPerFile: DefaultMaxLinesPerFile}.Reduce(text)
}

// Reduce returns the information-dense excerpt of a unified diff.
func (r Reducer) Reduce(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var (
		out      []string
		inHeader = true
		skipFile bool
		kept     int
	)
	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			inHeader = true
			kept = 0
			skipFile = IsNoiseFile(filePath(line))
			if !skipFile {
				out = append(out, line)
			}
		case skipFile:
		case strings.HasPrefix(line, "@@"):
			inHeader = false
			if !r.full(kept) {
				out = append(out, line)
			}
		case inHeader && (strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "+++ ")):
		case isChange(line) && !r.full(kept):
			kept++
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func (r Reducer) full(kept int) bool {
	return r.MaxLinesPerFile > 0 && kept >= r.MaxLinesPerFile
}

// isChange reports whether line adds or removes something other than whitespace.
func isChange(line string) bool {
	if !strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "-") {
		return false
	}
	return strings.TrimSpace(line[1:]) != ""
}

// filePath extracts the post-image path from a "diff --git a/x b/y" header.
func filePath(header string) string {
	if i := strings.LastIndex(header, " b/"); i >= 0 {
		return header[i+3:]
	}
	fields := strings.Fields(header)
	return fields[len(fields)-1]
}

// IsNoiseFile reports whether changes to p are lock files, generated or
// minified output that carry no review signal.
func IsNoiseFile(p string) bool {
	if noiseFiles[path.Base(p)] {
		return true
	}
	for _, s := range noiseSuffixes {
		if strings.HasSuffix(p, s) {
			return true
		}
	}
	for _, d := range noiseDirs {
		if strings.HasPrefix(p, d) || strings.Contains(p, "/"+d) {
			return true
		}
	}
	return false
}
