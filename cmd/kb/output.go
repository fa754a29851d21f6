// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/conceptbase/services/kb/document"
	"github.com/AleutianAI/conceptbase/services/kb/domain"
	"github.com/AleutianAI/conceptbase/services/kb/ontology"
)

var (
	colorTeal   = lipgloss.Color("#2CD7C7")
	colorDeep   = lipgloss.Color("#16858E")
	colorSlate  = lipgloss.Color("#2C4A54")
	colorAmber  = lipgloss.Color("#F4D03F")
	colorDanger = lipgloss.Color("#E74C3C")
)

var styles = struct {
	concept    lipgloss.Style
	individual lipgloss.Style
	derived    lipgloss.Style
	muted      lipgloss.Style
	success    lipgloss.Style
	failure    lipgloss.Style
}{
	concept:    lipgloss.NewStyle().Bold(true).Foreground(colorTeal),
	individual: lipgloss.NewStyle().Foreground(colorDeep),
	derived:    lipgloss.NewStyle().Italic(true).Foreground(colorAmber),
	muted:      lipgloss.NewStyle().Foreground(colorSlate),
	success:    lipgloss.NewStyle().Foreground(colorTeal),
	failure:    lipgloss.NewStyle().Foreground(colorDanger),
}

// printer writes command output, styled only when w is a terminal.
type printer struct {
	w      io.Writer
	styled bool
}

func newPrinter(w io.Writer, plain bool) *printer {
	return &printer{w: w, styled: !plain && isTerminal(w)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p *printer) success(msg string) {
	fmt.Fprintln(p.w, p.render(styles.success, "✓ "+msg))
}

func (p *printer) failure(msg string) {
	fmt.Fprintln(p.w, p.render(styles.failure, "✗ "+msg))
}

func (p *printer) muted(msg string) {
	fmt.Fprintln(p.w, p.render(styles.muted, msg))
}

func (p *printer) value(v domain.Value) {
	fmt.Fprintln(p.w, formatValue(v))
}

func (p *printer) explained(rv ontology.ResolvedValue) {
	var b strings.Builder
	b.WriteString(formatValue(rv.Value))
	meta := fmt.Sprintf("  [%s", rv.Tier)
	if rv.Source != nil {
		meta += " from " + rv.Source.Name()
	}
	if rv.Attribute != nil {
		meta += " via " + rv.Attribute.Name()
	}
	if !rv.Constraints.IsEmpty() {
		meta += " when " + rv.Constraints.String()
	}
	b.WriteString(p.render(styles.muted, meta+"]"))
	fmt.Fprintln(p.w, b.String())
}

func (p *printer) members(name string, members []*ontology.Concept) {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name()
	}
	fmt.Fprintf(p.w, "%s: %s\n", p.render(styles.derived, name), strings.Join(names, ", "))
}

// conceptLabel styles a concept name by what kind of concept it is.
func (p *printer) conceptLabel(c *ontology.Concept) string {
	switch {
	case c.Derived() != nil:
		return p.render(styles.derived, c.Name())
	case c.IsIndividual():
		return p.render(styles.individual, c.Name())
	default:
		return p.render(styles.concept, c.Name())
	}
}

// tree prints the hierarchy below starts. A concept reached a second time
// through another super-concept is printed as a reference and not
// expanded again.
func (p *printer) tree(kb *ontology.KnowledgeBase, starts []*ontology.Concept, individuals bool) {
	seen := make(map[*ontology.Concept]bool)
	var walk func(c *ontology.Concept, prefix string, last, top bool)
	walk = func(c *ontology.Concept, prefix string, last, top bool) {
		line, childPrefix := "", ""
		if !top {
			branch, cont := "├── ", "│   "
			if last {
				branch, cont = "└── ", "    "
			}
			line = prefix + p.render(styles.muted, branch)
			childPrefix = prefix + cont
		}
		if seen[c] {
			fmt.Fprintln(p.w, line+p.conceptLabel(c)+p.render(styles.muted, " ↑"))
			return
		}
		seen[c] = true
		fmt.Fprintln(p.w, line+p.conceptLabel(c))

		var subs []*ontology.Concept
		for _, s := range kb.Subs(c) {
			if individuals || !s.IsIndividual() {
				subs = append(subs, s)
			}
		}
		for i, s := range subs {
			walk(s, childPrefix, i == len(subs)-1, false)
		}
	}
	for _, c := range starts {
		walk(c, "", true, true)
	}
}

// formatValue renders a value the way documents write it.
func formatValue(v domain.Value) string {
	return fmt.Sprint(document.EncodeValue(v))
}
