// Package parser turns a raw AI completion into explanation text plus an
// ordered list of generated files. Matching is stateless and re-entrant:
// every call scans the input fresh, so concurrent parses never share
// cursor state.
package parser

import (
	"fmt"
	"regexp"
	"strings"
)

// File is one generated code file extracted from a completion.
type File struct {
	Filename string
	Language string
	Code     string
}

// Result is the structured form of a raw completion.
type Result struct {
	Text  string
	Files []File
}

// FallbackText is substituted when stripping tags and fences leaves nothing.
const FallbackText = "No explanation provided."

const defaultLanguage = "text"

var (
	filenameTag = regexp.MustCompile(`\[filename:\s*([^\]]+)\]`)
	// Non-greedy body requires a closing fence, so an unterminated
	// triple-backtick never matches and stays in the prose.
	fencedBlock = regexp.MustCompile("(?s)```([a-zA-Z0-9]*)\n(.*?)```")
)

// Parse converts a raw completion string into a Result. It never fails:
// malformed input degrades to best-effort output. Filename tags and code
// blocks are collected independently, left-to-right, and paired by
// positional index; unmatched blocks get a synthesized snippet name.
func Parse(raw string) Result {
	var filenames []string
	for _, m := range filenameTag.FindAllStringSubmatch(raw, -1) {
		filenames = append(filenames, m[1])
	}

	var files []File
	for i, m := range fencedBlock.FindAllStringSubmatch(raw, -1) {
		lang := m[1]
		if lang == "" {
			lang = defaultLanguage
		}
		name := ""
		if i < len(filenames) {
			name = filenames[i]
		} else {
			name = fmt.Sprintf("snippet%d.%s", i+1, lang)
		}
		files = append(files, File{Filename: name, Language: lang, Code: m[2]})
	}

	text := filenameTag.ReplaceAllString(raw, "")
	text = fencedBlock.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)
	if text == "" {
		text = FallbackText
	}

	return Result{Text: text, Files: files}
}
