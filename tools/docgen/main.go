// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	md2man "github.com/cpuguy83/go-md2man/v2/md2man"
)

// docgen reads docs/commands/*.md, the canonical command docs, and writes:
//   - docs/man/share/man1/docsite-<cmd>.1, the full page rendered by md2man
//   - docs/man/share/man1/docsite.1, an index of every command
//   - docs/tldr/docsite-<cmd>.md, from the short description and the Quick
//     examples block

const project = "https://github.com/staranto/docsite"

type page struct {
	cmd      string
	title    string
	short    string
	examples []example
	raw      []byte
}

type example struct {
	Desc string
	Cmd  string
}

func main() {
	var (
		repoRoot           string
		writeOnlyIfChanged bool
	)

	flag.StringVar(&repoRoot, "root", ".", "repo root (default current dir)")
	flag.BoolVar(&writeOnlyIfChanged, "only-if-changed", true, "only write files if content changed")
	flag.Parse()

	commandsDir := filepath.Join(repoRoot, "docs", "commands")
	manOutDir := filepath.Join(repoRoot, "docs", "man", "share", "man1")
	tldrOutDir := filepath.Join(repoRoot, "docs", "tldr")

	for _, dir := range []string{manOutDir, tldrOutDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fatalf("creating output dir %s: %v", dir, err)
		}
	}

	pages, err := readPages(commandsDir)
	if err != nil {
		fatalf("%v", err)
	}
	if len(pages) == 0 {
		fatalf("no command markdown found under %s", commandsDir)
	}

	for _, p := range pages {
		manPath := filepath.Join(manOutDir, "docsite-"+p.cmd+".1")
		if err := writeFileIfChanged(manPath, md2man.Render(p.raw), writeOnlyIfChanged); err != nil {
			fatalf("writing man page for %s: %v", p.cmd, err)
		}
		tldrPath := filepath.Join(tldrOutDir, "docsite-"+p.cmd+".md")
		if err := writeFileIfChanged(tldrPath, []byte(buildTLDR(p)), writeOnlyIfChanged); err != nil {
			fatalf("writing TLDR for %s: %v", p.cmd, err)
		}
	}

	index := md2man.Render([]byte(buildIndex(pages)))
	if err := writeFileIfChanged(filepath.Join(manOutDir, "docsite.1"), index, writeOnlyIfChanged); err != nil {
		fatalf("writing man index: %v", err)
	}
}

func readPages(dir string) ([]page, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading commands dir %s: %w", dir, err)
	}
	var pages []page
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		md := string(raw)
		p := page{cmd: strings.TrimSuffix(e.Name(), ".md"), raw: raw}
		p.title, p.short = extractTitleAndShortDesc(md)
		p.examples = extractQuickExamples(md)
		pages = append(pages, p)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].cmd < pages[j].cmd })
	return pages, nil
}

func fatalf(f string, a ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", a...)
	os.Exit(1)
}

func writeFileIfChanged(path string, content []byte, onlyIfChanged bool) error {
	if onlyIfChanged {
		old, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if err == nil && bytes.Equal(bytes.TrimSpace(old), bytes.TrimSpace(content)) {
			return nil
		}
	}
	return os.WriteFile(path, content, 0o644)
}

var h1Re = regexp.MustCompile(`(?m)^#\s+(.+)$`)

// extractTitleAndShortDesc returns the first H1 and the first paragraph of
// the "Short description" section.
func extractTitleAndShortDesc(md string) (title, short string) {
	if m := h1Re.FindStringSubmatch(md); m != nil {
		title = strings.TrimSpace(m[1])
	}

	idx := strings.Index(strings.ToLower(md), "short description")
	if idx >= 0 {
		rest := md[idx:]
		if nl := strings.Index(rest, "\n"); nl >= 0 {
			rest = rest[nl+1:]
		}
		var para []string
		for _, ln := range strings.Split(rest, "\n") {
			s := strings.TrimSpace(ln)
			if s == "" {
				if len(para) > 0 {
					break
				}
				continue
			}
			if strings.HasPrefix(s, "#") || strings.HasSuffix(s, ":") {
				break
			}
			para = append(para, s)
		}
		short = strings.Join(para, " ")
	}

	if short == "" && title != "" {
		short = title + "."
	}
	return
}

// extractQuickExamples pairs "# description" comment lines with the command
// line that follows them in the first code fence after "Quick examples".
func extractQuickExamples(md string) []example {
	idx := strings.Index(strings.ToLower(md), "quick examples")
	if idx < 0 {
		return nil
	}
	const fence = "```"
	rest := md[idx:]
	start := strings.Index(rest, fence)
	if start < 0 {
		return nil
	}
	rest = rest[start+len(fence):]
	// Skip the info string of the fence, e.g. "sh".
	if nl := strings.Index(rest, "\n"); nl >= 0 {
		rest = rest[nl+1:]
	}
	end := strings.Index(rest, fence)
	if end < 0 {
		return nil
	}

	var exs []example
	desc := ""
	for _, ln := range strings.Split(rest[:end], "\n") {
		s := strings.TrimSpace(strings.TrimRight(ln, "\r"))
		switch {
		case s == "":
		case strings.HasPrefix(s, "#"):
			desc = strings.TrimSpace(strings.TrimPrefix(s, "#"))
		default:
			if desc == "" {
				desc = "Example"
			}
			exs = append(exs, example{Desc: desc, Cmd: strings.Join(strings.Fields(s), " ")})
			desc = ""
		}
	}
	return exs
}

func buildTLDR(p page) string {
	var b strings.Builder
	b.WriteString("# docsite-" + p.cmd + "\n\n")
	switch {
	case p.short != "":
		b.WriteString("> " + p.short + "\n")
	case p.title != "":
		b.WriteString("> " + p.title + "\n")
	default:
		b.WriteString("> docsite " + p.cmd + "\n")
	}
	b.WriteString("> More information: " + project + ".\n\n")

	exs := p.examples
	if len(exs) == 0 {
		exs = []example{{Desc: "Show help for the command", Cmd: "docsite " + p.cmd + " --help"}}
	}
	for i, ex := range exs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- " + ex.Desc + ":\n\n")
		b.WriteString("`" + ex.Cmd + "`\n")
	}
	return b.String()
}

func buildIndex(pages []page) string {
	var b strings.Builder
	b.WriteString("# docsite 1\n\n")
	b.WriteString("## NAME\n\ndocsite - offline cache for a documentation site\n\n")
	b.WriteString("## COMMANDS\n\n")
	for _, p := range pages {
		fmt.Fprintf(&b, "**%s**\n: %s See docsite-%s(1).\n\n", p.cmd, p.short, p.cmd)
	}
	return b.String()
}
