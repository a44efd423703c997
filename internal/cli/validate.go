package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ogm/internal/meta"
)

// ValidationResult summarises a loaded schema.
type ValidationResult struct {
	Valid   bool           `json:"valid"`
	Classes []ClassSummary `json:"classes"`
}

// ClassSummary describes one mapped class.
type ClassSummary struct {
	Name    string          `json:"name"`
	Labels  []string        `json:"labels"`
	Super   string          `json:"super,omitempty"`
	Edge    bool            `json:"edge,omitempty"`
	Members []MemberSummary `json:"members"`
}

// MemberSummary describes one member as the mapping sees it.
type MemberSummary struct {
	Name      string `json:"name"`
	Property  string `json:"property"`
	Relation  string `json:"relation,omitempty"`
	Container string `json:"container,omitempty"`
	Embedded  bool   `json:"embedded,omitempty"`
	MappedBy  string `json:"mapped_by,omitempty"`
	Stored    bool   `json:"stored"`
}

// Text renders the summary for humans.
func (r ValidationResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Schema valid: %d class(es)\n", len(r.Classes))
	for _, c := range r.Classes {
		relations := 0
		for _, m := range c.Members {
			if m.Relation != "" {
				relations++
			}
		}
		kind := "node"
		if c.Edge {
			kind = "edge"
		}
		fmt.Fprintf(&b, "  %s (%s %s): %d member(s), %d relation(s)\n",
			c.Name, kind, strings.Join(c.Labels, ":"), len(c.Members), relations)
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <schema-dir>",
		Short: "Validate mapping metadata",
		Long: `Load the CUE mapping metadata in a directory, resolve relation kinds
and mapped-by references, and print a summary of every class.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, schemaDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	repo, err := LoadSchema(schemaDir)
	if err != nil {
		return formatter.FailLoad(err)
	}

	result := summarize(repo)
	for _, c := range result.Classes {
		for _, m := range c.Members {
			formatter.VerboseLog("%s.%s -> %s %s", c.Name, m.Name, m.Property, m.Relation)
		}
	}
	return formatter.Success(result)
}

func summarize(repo *meta.Repository) ValidationResult {
	result := ValidationResult{Valid: true}
	for _, c := range repo.Classes() {
		cs := ClassSummary{
			Name:   c.Name,
			Labels: c.Labels(),
			Super:  c.Super,
			Edge:   c.MappedAsEdge,
		}
		for _, m := range c.AllMembers() {
			ms := MemberSummary{
				Name:     m.Name,
				Property: meta.PropertyName(nil, m),
				Embedded: m.Embedded,
				MappedBy: m.MappedBy,
				Stored:   m.Storable(),
			}
			if m.Relation != meta.RelationNone {
				ms.Relation = m.Relation.String()
			}
			if m.Container != meta.ContainerNone {
				ms.Container = m.Container.String()
			}
			cs.Members = append(cs.Members, ms)
		}
		result.Classes = append(result.Classes, cs)
	}
	return result
}
