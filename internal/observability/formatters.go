// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/roadmap-agent/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, clip(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// clip shortens s to at most n runes, marking the cut with "...".
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// writeList writes up to limit bullet items followed by an overflow count.
func writeList(sb *strings.Builder, heading string, items []string, limit int) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(heading + ":\n")
	count := min(len(items), limit)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s\n", items[i]))
	}
	if len(items) > limit {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(items)-limit))
	}
}

// PrintStageOutput prints the box matching the type of a stage result.
// Unknown types are ignored.
func (p *Printer) PrintStageOutput(content any) {
	switch v := content.(type) {
	case *types.LearnerProfile:
		p.PrintLearnerProfile(v)
	case *types.SearchQuerySet:
		p.PrintQueries(v)
	case *types.AdvisementCorpus:
		p.PrintAdvisement(v)
	case []types.RoadmapStage:
		p.PrintStages(v)
	case []types.EnrichedStage:
		p.PrintEnrichment(v)
	case *types.Roadmap:
		p.PrintRoadmap(v)
	}
}

// PrintLearnerProfile outputs the extracted learner profile.
func (p *Printer) PrintLearnerProfile(profile *types.LearnerProfile) {
	if profile == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Background: %s\n", profile.Background))
	sb.WriteString(fmt.Sprintf("Timeline:   %s\n", profile.TimeConstraints))
	sb.WriteString("\n")
	writeList(&sb, "Current Skills", profile.CurrentSkills, maxItemsToShow)
	writeList(&sb, "Career Goals", profile.CareerGoals, 3)
	writeList(&sb, "Conflicts", profile.Conflicts, 3)

	p.printBox("LEARNER PROFILE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintQueries outputs the generated search queries.
func (p *Printer) PrintQueries(set *types.SearchQuerySet) {
	if set == nil || len(set.Queries) == 0 {
		return
	}

	var sb strings.Builder
	for i, q := range set.Queries {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, q))
	}
	p.printBox("SEARCH QUERIES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintAdvisement outputs a sample of the cleaned advisement corpus.
func (p *Printer) PrintAdvisement(corpus *types.AdvisementCorpus) {
	if corpus == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Advisement units: %d\n", len(corpus.Units)))
	if len(corpus.Units) > 0 {
		sb.WriteString("\n")
		writeList(&sb, "Sample", corpus.Units, maxItemsToShow)
	}
	p.printBox("ADVISEMENT CORPUS", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintStages outputs the planned roadmap stages.
func (p *Printer) PrintStages(stages []types.RoadmapStage) {
	if len(stages) == 0 {
		return
	}

	var sb strings.Builder
	for i, s := range stages {
		sb.WriteString(fmt.Sprintf("%s  %s\n", s.ID, s.Title))
		if len(s.Skills) > 0 {
			sb.WriteString(fmt.Sprintf("    Skills:   %s\n", strings.Join(s.Skills, ", ")))
		}
		if len(s.Projects) > 0 {
			sb.WriteString(fmt.Sprintf("    Projects: %s\n", strings.Join(s.Projects, ", ")))
		}
		if i < len(stages)-1 {
			sb.WriteString("\n")
		}
	}
	p.printBox("ROADMAP STAGES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintEnrichment outputs resource counts per stage.
func (p *Printer) PrintEnrichment(enriched []types.EnrichedStage) {
	if len(enriched) == 0 {
		return
	}

	var sb strings.Builder
	for _, e := range enriched {
		sb.WriteString(fmt.Sprintf("%-10s posts: %d  courses: %d\n", e.ID, len(e.Posts), len(e.Courses)))
	}
	p.printBox("MATCHED RESOURCES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRoadmap outputs the final learning path.
func (p *Printer) PrintRoadmap(roadmap *types.Roadmap) {
	if roadmap == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Goal: %s\n", roadmap.Goal))
	sb.WriteString(fmt.Sprintf("Nodes: %d\n", len(roadmap.Nodes)))

	for _, n := range roadmap.Nodes {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("● %s\n", n.Title))
		for _, post := range n.Posts {
			sb.WriteString(fmt.Sprintf("    post   %s (%s)\n", post.URL, post.Author))
		}
		for _, c := range n.Courses {
			sb.WriteString(fmt.Sprintf("    course %s\n", c.Title))
		}
	}
	p.printBox("LEARNING ROADMAP", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintDiagnostics outputs degraded-but-continuing failures from a run.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintDiagnostics(diags []types.Diagnostic) {
	if len(diags) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "✅ NO DIAGNOSTICS")
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d diagnostics:\n\n", len(diags)))
	for i, d := range diags {
		label := d.Stage
		if d.Scope != "" {
			label = fmt.Sprintf("%s [%s]", d.Stage, d.Scope)
		}
		sb.WriteString(fmt.Sprintf("⚠ %s\n", label))
		sb.WriteString(fmt.Sprintf("  %s\n", d.Message))
		if i < len(diags)-1 {
			sb.WriteString("\n")
		}
	}
	p.printBox("DIAGNOSTICS", strings.TrimSuffix(sb.String(), "\n"))
}
