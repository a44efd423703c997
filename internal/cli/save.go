package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/ogm/internal/graph"
	"github.com/roach88/ogm/internal/graph/memgraph"
	"github.com/roach88/ogm/internal/meta"
	"github.com/roach88/ogm/internal/persist"
	"github.com/roach88/ogm/internal/session"
	"github.com/roach88/ogm/internal/store"
)

// SaveOptions holds flags for the save command.
type SaveOptions struct {
	*RootOptions
	Schema string // schema directory
	DB     string // SQLite database path
	DryRun bool   // write to an in-memory graph instead
}

// SaveResult reports what a save wrote.
type SaveResult struct {
	Objects    int  `json:"objects"`
	Nodes      int  `json:"nodes"`
	Edges      int  `json:"edges"`
	Properties int  `json:"properties,omitempty"`
	DryRun     bool `json:"dry_run,omitempty"`
}

// Text renders the counts.
func (r SaveResult) Text() string {
	verb := "Saved"
	if r.DryRun {
		verb = "Dry run saved"
	}
	return fmt.Sprintf("✓ %s %d object(s): %d node(s), %d edge(s)\n", verb, r.Objects, r.Nodes, r.Edges)
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "save <objects.yaml>",
		Short: "Persist objects into the graph database",
		Long: `Persist the objects of a YAML document into a SQLite property graph.

Related objects are saved by cascade. The whole document is written in
one transaction: if any object is rejected nothing is stored.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Schema, "schema", "s", "", "mapping metadata directory (required)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "path to SQLite database")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "save into an in-memory graph and discard it")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}

func runSave(opts *SaveOptions, objectsPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.DB == "" && !opts.DryRun {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--db is required unless --dry-run is set", nil)
	}

	repo, err := LoadSchema(opts.Schema)
	if err != nil {
		return formatter.FailLoad(err)
	}
	objects, err := LoadObjects(objectsPath, repo)
	if err != nil {
		return formatter.FailLoad(err)
	}

	if opts.DryRun {
		g := memgraph.New(nil)
		if err := saveAll(session.New(g, repo, nil), objects, formatter); err != nil {
			return err
		}
		return formatter.Success(SaveResult{
			Objects: len(objects),
			Nodes:   g.NodeCount(),
			Edges:   g.EdgeCount(),
			DryRun:  true,
		})
	}

	return saveToStore(cmd.Context(), opts.DB, repo, objects, formatter)
}

func saveToStore(ctx context.Context, path string, repo *meta.Repository, objects []*session.Object, formatter *OutputFormatter) error {
	st, err := store.Open(path)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStorage, err.Error(), nil)
	}
	defer st.Close()

	tx, err := st.Begin(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStorage, err.Error(), nil)
	}
	defer tx.Rollback()

	if err := saveAll(session.New(tx, repo, nil), objects, formatter); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStorage, err.Error(), nil)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStorage, err.Error(), nil)
	}
	return formatter.Success(SaveResult{
		Objects:    len(objects),
		Nodes:      stats.Nodes,
		Edges:      stats.Edges,
		Properties: stats.Properties,
	})
}

func saveAll(s *session.Session, objects []*session.Object, formatter *OutputFormatter) error {
	for _, o := range objects {
		n, err := s.Save(o)
		if err != nil {
			if persist.IsUnsupported(err) {
				return formatter.Fail(ExitFailure, ErrCodeUnsupportedField, err.Error(), nil)
			}
			return formatter.Fail(ExitCommandError, ErrCodeStorage, err.Error(), nil)
		}
		formatter.VerboseLog("Saved %s as node %s", o, nodeID(n))
	}
	return nil
}

func nodeID(n graph.Node) string {
	if n == nil {
		return "-"
	}
	return n.ID()
}
