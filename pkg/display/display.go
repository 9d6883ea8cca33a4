// Package display renders a run summary for the terminal.
package display

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/disiqueira/gotree/v3"
	"github.com/pterm/pterm"

	"github.com/mrmachine/transmission-process-torrents/pkg/reconcile"
)

// kindVerbs holds the past and future tense of each action kind
var kindVerbs = map[reconcile.ActionKind]struct {
	Past   string
	Future string
}{
	reconcile.ActionProcess:       {Past: "merged", Future: "to be merged"},
	reconcile.ActionRemove:        {Past: "removed", Future: "to be removed"},
	reconcile.ActionRemoveSkipped: {Past: "finished seeding", Future: "finished seeding"},
	reconcile.ActionActive:        {Past: "seeding", Future: "seeding"},
	reconcile.ActionUnmatched:     {Past: "not in a download directory", Future: "not in a download directory"},
	reconcile.ActionOrphanProcess: {Past: "orphan merged", Future: "orphan to be merged"},
	reconcile.ActionOrphanRemove:  {Past: "orphan deleted", Future: "orphan to be deleted"},
	reconcile.ActionPrune:         {Past: "record pruned", Future: "record to be pruned"},
	reconcile.ActionFailed:        {Past: "failed", Future: "would fail"},
}

// kindStyle returns the pterm style for an action kind
func kindStyle(kind reconcile.ActionKind) *pterm.Style {
	switch kind {
	case reconcile.ActionProcess, reconcile.ActionOrphanProcess:
		return pterm.NewStyle(pterm.FgGreen)
	case reconcile.ActionRemove, reconcile.ActionOrphanRemove, reconcile.ActionPrune:
		return pterm.NewStyle(pterm.FgYellow)
	case reconcile.ActionFailed:
		return pterm.NewStyle(pterm.FgRed, pterm.Bold)
	default:
		return pterm.NewStyle(pterm.FgGray)
	}
}

// Renderer writes summaries to a writer
type Renderer struct {
	writer  io.Writer
	color   bool
	verbose bool
}

// NewRenderer creates a renderer. Color enables pterm styling; verbose also
// lists items that were left alone.
func NewRenderer(w io.Writer, color, verbose bool) *Renderer {
	return &Renderer{writer: w, color: color, verbose: verbose}
}

func (r *Renderer) style(s *pterm.Style, text string) string {
	if !r.color {
		return text
	}
	return s.Sprint(text)
}

// Render outputs the summary: a tree of actions per download directory
// followed by a line of totals.
func (r *Renderer) Render(sum *reconcile.Summary) error {
	if sum == nil {
		return nil
	}

	header := "process-torrents"
	if sum.DryRun {
		header += " (dry run)"
	}
	header = r.style(pterm.NewStyle(pterm.Bold), header)
	if sum.RunID != "" {
		header += " " + r.style(pterm.NewStyle(pterm.FgGray), "run "+sum.RunID)
	}
	if _, err := fmt.Fprintln(r.writer, header); err != nil {
		return err
	}

	rules, groups := sum.ByRule()
	shown := 0
	for _, rule := range rules {
		tree := r.ruleTree(rule, groups[rule], sum.DryRun)
		if tree == nil {
			continue
		}
		shown++
		if _, err := fmt.Fprint(r.writer, tree.Print()); err != nil {
			return err
		}
	}
	if shown == 0 {
		if _, err := fmt.Fprintln(r.writer, "Nothing to do"); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(r.writer, r.totals(sum))
	return err
}

// ruleTree builds the tree for one download directory, or nil when none of
// its actions are worth showing.
func (r *Renderer) ruleTree(rule string, actions []reconcile.Action, dryRun bool) gotree.Tree {
	label := rule
	if label == "" {
		label = "(no download directory)"
	}

	var tree gotree.Tree
	for _, a := range actions {
		if !r.verbose && quiet(a.Kind) {
			continue
		}
		if tree == nil {
			tree = gotree.New(r.style(pterm.NewStyle(pterm.FgCyan), label))
		}
		tree.Add(r.actionLine(a, dryRun))
	}
	return tree
}

// quiet kinds are listed only in verbose mode
func quiet(kind reconcile.ActionKind) bool {
	return kind == reconcile.ActionActive || kind == reconcile.ActionUnmatched
}

func (r *Renderer) actionLine(a reconcile.Action, dryRun bool) string {
	verb := string(a.Kind)
	if verbs, ok := kindVerbs[a.Kind]; ok {
		verb = verbs.Past
		if dryRun {
			verb = verbs.Future
		}
	}

	name := a.Name
	if name == "" {
		name = filepath.Base(a.Path)
	}

	line := fmt.Sprintf("%-20s %s", r.style(kindStyle(a.Kind), verb), name)
	if a.Warnings > 0 {
		line += r.style(pterm.NewStyle(pterm.FgYellow), fmt.Sprintf(" (%d %s)", a.Warnings, plural(a.Warnings, "warning")))
	}
	if a.Err != nil {
		line += ": " + r.style(pterm.NewStyle(pterm.FgRed), a.Err.Error())
	}
	return line
}

func (r *Renderer) totals(sum *reconcile.Summary) string {
	parts := []string{fmt.Sprintf("%d %s", sum.Items, plural(sum.Items, "torrent"))}
	for _, kind := range reconcile.ActionKinds {
		if n := sum.Count(kind); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, kind))
		}
	}
	if w := sum.Warnings(); w > 0 {
		parts = append(parts, fmt.Sprintf("%d %s", w, plural(w, "warning")))
	}
	return fmt.Sprintf("%s in %s", strings.Join(parts, ", "), sum.Duration().Round(time.Millisecond))
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
