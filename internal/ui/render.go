package ui

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/josephgoksu/TodoBuilder/internal/builder"
	"github.com/josephgoksu/TodoBuilder/internal/integrator"
	"github.com/josephgoksu/TodoBuilder/internal/registry"
	"github.com/josephgoksu/TodoBuilder/internal/testpipeline"
)

// FeatureTable lists features one per row.
func FeatureTable(w io.Writer, features []*registry.FeatureDefinition) {
	if len(features) == 0 {
		fmt.Fprintln(w, StyleSubtle.Render("No features registered."))
		return
	}
	t := &Table{Headers: []string{"ID", "Name", "Version", "Enabled", "Components", "Endpoints", "Migrations"}, MaxWidth: 40}
	for _, f := range features {
		t.Rows = append(t.Rows, []string{
			f.ID, f.Name, f.Version, enabled(f.Enabled),
			strconv.Itoa(len(f.Components)), strconv.Itoa(len(f.APIEndpoints)), strconv.Itoa(len(f.DatabaseMigrations)),
		})
	}
	fmt.Fprint(w, t.Render())
}

// FeatureDetail prints one feature with its outgoing dependencies.
func FeatureDetail(w io.Writer, f *registry.FeatureDefinition, deps []registry.ResolvedDependency) {
	fmt.Fprintln(w, StyleHeader.Render(f.Name))
	fmt.Fprintf(w, "  %s %s\n", StyleSubtle.Render("id:      "), f.ID)
	fmt.Fprintf(w, "  %s %s\n", StyleSubtle.Render("version: "), f.Version)
	fmt.Fprintf(w, "  %s %s\n", StyleSubtle.Render("enabled: "), enabled(f.Enabled))
	fmt.Fprintf(w, "  %s %d\n", StyleSubtle.Render("revision:"), f.Revision)
	if f.Description != "" {
		fmt.Fprintf(w, "  %s %s\n", StyleSubtle.Render("about:   "), f.Description)
	}
	if len(f.Files) > 0 {
		fmt.Fprintln(w, "\n"+StyleSectionTitle.Render("Files"))
		for _, p := range f.Files {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
	fmt.Fprintln(w)
	DependencyTable(w, deps)
}

// DependencyTable lists resolved outgoing dependencies.
func DependencyTable(w io.Writer, deps []registry.ResolvedDependency) {
	if len(deps) == 0 {
		fmt.Fprintln(w, StyleSubtle.Render("No dependencies."))
		return
	}
	t := &Table{Headers: []string{"Depends on", "Name", "Type", "Version", "Enabled"}}
	for _, d := range deps {
		t.Rows = append(t.Rows, []string{d.DependsOn, d.Name, string(d.Type), d.Version, enabled(d.Enabled)})
	}
	fmt.Fprint(w, t.Render())
}

// EdgeTable lists raw dependency edges.
func EdgeTable(w io.Writer, edges []registry.DependencyEdge) {
	if len(edges) == 0 {
		fmt.Fprintln(w, StyleSubtle.Render("No dependents."))
		return
	}
	t := &Table{Headers: []string{"Feature", "Depends on", "Type"}}
	for _, e := range edges {
		t.Rows = append(t.Rows, []string{e.FeatureID, e.DependsOn, string(e.Type)})
	}
	fmt.Fprint(w, t.Render())
}

// DisableCheck prints whether id can be disabled.
func DisableCheck(w io.Writer, id string, c registry.DisableCheck) {
	if c.CanDisable {
		fmt.Fprintf(w, "%s %s can be disabled\n", Icon("✓", StyleSuccess), id)
		return
	}
	fmt.Fprintf(w, "%s %s is required by enabled features: %s\n",
		Icon("✗", StyleError), id, strings.Join(c.DependentFeatures, ", "))
}

// Graph prints the dependency order and every edge.
func Graph(w io.Writer, g *registry.Graph) {
	fmt.Fprintln(w, StyleSectionTitle.Render("Order"))
	for i, id := range g.Order {
		fmt.Fprintf(w, "  %2d. %s\n", i+1, id)
	}
	fmt.Fprintln(w, "\n"+StyleSectionTitle.Render("Edges"))
	EdgeTable(w, g.Edges)
}

// IntegrationCheck prints a conflict check.
func IntegrationCheck(w io.Writer, c *integrator.Check) {
	fmt.Fprintf(w, "%s\n", Status(c.CanIntegrate, "✓ can integrate", "✗ cannot integrate"))
	list(w, "Creates", c.Creates, StyleText)
	list(w, "Overwrites", c.Overwrites, StyleWarning)
	list(w, "Conflicts", c.Conflicts, StyleError)
	list(w, "Warnings", c.Warnings, StyleWarning)
}

// IntegrationResult prints the outcome of an integration.
func IntegrationResult(w io.Writer, r *integrator.Result) {
	label := "✓ integrated"
	if r.DryRun {
		label = "✓ dry run passed"
	}
	fmt.Fprintf(w, "%s %s\n", Status(r.Success, label, "✗ integration failed"), r.FeatureID)
	if r.BackupID != "" {
		fmt.Fprintf(w, "  %s %s\n", StyleSubtle.Render("backup:"), r.BackupID)
	}
	list(w, "Files created", r.FilesCreated, StyleText)
	list(w, "Tests created", r.TestsCreated, StyleText)
	list(w, "Files modified", r.FilesModified, StyleWarning)
	list(w, "Migrations", r.MigrationsApplied, StyleText)
	list(w, "Migrations skipped", r.MigrationsSkipped, StyleSubtle)
	if r.Tests != nil {
		TestResult(w, r.Tests)
	}
	list(w, "Errors", r.Errors, StyleError)
	list(w, "Warnings", r.Warnings, StyleWarning)
}

// TestResult prints per-category test outcomes.
func TestResult(w io.Writer, r *testpipeline.Result) {
	fmt.Fprintln(w, "\n"+StyleSectionTitle.Render("Tests"))
	t := &Table{Headers: []string{"Category", "Status", "Files", "Passed", "Failed", "Coverage", "Duration"}}
	for _, c := range r.Categories {
		t.Rows = append(t.Rows, []string{
			string(c.Category), string(c.Status), strconv.Itoa(c.Files),
			strconv.Itoa(c.Passed), strconv.Itoa(c.Failed), percent(c.Coverage),
			c.Duration.Round(time.Millisecond).String(),
		})
	}
	fmt.Fprint(w, t.Render())
}

// BuildReport prints per-item generation results followed by the integration.
func BuildReport(w io.Writer, r *builder.Report) {
	fmt.Fprintf(w, "%s %s (%s)\n", Status(r.Success, "✓ built", "✗ build incomplete"), r.FeatureID,
		r.Duration.Round(time.Millisecond))
	t := &Table{Headers: []string{"Kind", "Item", "Result"}, MaxWidth: 60}
	for _, item := range r.Items {
		res := "ok"
		if !item.OK() {
			res = item.Err.Error()
		}
		t.Rows = append(t.Rows, []string{string(item.Kind), item.Name, res})
	}
	fmt.Fprint(w, t.Render())
	if r.Integration != nil {
		fmt.Fprintln(w)
		IntegrationResult(w, r.Integration)
		return
	}
	list(w, "Errors", r.Errors, StyleError)
}

// BackupTable lists backups.
func BackupTable(w io.Writer, backups []integrator.Backup) {
	if len(backups) == 0 {
		fmt.Fprintln(w, StyleSubtle.Render("No backups."))
		return
	}
	t := &Table{Headers: []string{"ID", "Feature", "Created", "Files", "Rolled back"}}
	for _, b := range backups {
		rolled := ""
		if b.RolledBackAt != nil {
			rolled = b.RolledBackAt.Local().Format(time.DateTime)
		}
		t.Rows = append(t.Rows, []string{
			b.ID, b.FeatureID, b.CreatedAt.Local().Format(time.DateTime),
			strconv.Itoa(len(b.Files) + len(b.Created)), rolled,
		})
	}
	fmt.Fprint(w, t.Render())
}

func list(w io.Writer, title string, items []string, style lipgloss.Style) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(w, "\n"+StyleSectionTitle.Render(title))
	for _, it := range items {
		fmt.Fprintf(w, "  • %s\n", style.Render(it))
	}
}

func enabled(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func percent(p *float64) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatFloat(*p, 'f', 1, 64) + "%"
}
