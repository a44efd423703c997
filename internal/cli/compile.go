package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ogm/internal/cypher"
	"github.com/roach88/ogm/internal/qcache"
	"github.com/roach88/ogm/internal/queryexpr"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Schema   string        // schema directory
	Cache    string        // Redis URL; empty disables caching
	CacheTTL time.Duration // lifetime of cached entries
}

// CompileResult is the compiled query plus the clauses left to the caller.
type CompileResult struct {
	*cypher.CompiledQuery
	InMemory []string `json:"in_memory,omitempty"`
}

// Text renders the query followed by its completeness.
func (r CompileResult) Text() string {
	var b strings.Builder
	fmt.Fprintln(&b, r.CompiledQuery.Text)
	if len(r.InMemory) == 0 {
		fmt.Fprintln(&b, "✓ Fully compiled")
	} else {
		fmt.Fprintf(&b, "! Evaluate in memory: %s\n", strings.Join(r.InMemory, ", "))
	}
	if !r.Reusable {
		fmt.Fprintln(&b, "  (parameter values substituted; not cached)")
	}
	return b.String()
}

func newCompileResult(q *cypher.CompiledQuery, comp queryexpr.Compilation) CompileResult {
	r := CompileResult{CompiledQuery: q}
	if !q.FilterComplete {
		r.InMemory = append(r.InMemory, "filter")
	}
	if !q.ResultComplete {
		r.InMemory = append(r.InMemory, "result")
	}
	if !q.OrderComplete {
		r.InMemory = append(r.InMemory, "order")
	}
	ranged := comp.RangeFrom > 0 || (comp.RangeTo != 0 && comp.RangeTo != queryexpr.NoRange)
	if ranged && !q.RangeComplete {
		r.InMemory = append(r.InMemory, "range")
	}
	return r
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <query.yaml>",
		Short: "Compile a query document to Cypher",
		Long: `Compile a YAML query document against the mapping metadata.

Clauses that cannot run on the graph server are left out of the Cypher
text and reported as needing in-memory evaluation. With --cache,
reusable compilations are stored in Redis.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Schema, "schema", "s", "", "mapping metadata directory (required)")
	cmd.Flags().StringVar(&opts.Cache, "cache", "", "Redis URL for the compiled-query cache")
	cmd.Flags().DurationVar(&opts.CacheTTL, "cache-ttl", time.Hour, "cached entry lifetime (0 keeps forever)")
	_ = cmd.MarkFlagRequired("schema")

	return cmd
}

func runCompile(opts *CompileOptions, queryPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	repo, err := LoadSchema(opts.Schema)
	if err != nil {
		return formatter.FailLoad(err)
	}
	doc, err := LoadQuery(queryPath)
	if err != nil {
		return formatter.FailLoad(err)
	}
	comp, err := doc.Compilation()
	if err != nil {
		if errors.Is(err, queryexpr.ErrSyntax) {
			return formatter.Fail(ExitCommandError, ErrCodeQuerySyntax, err.Error(), nil)
		}
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	formatter.VerboseLog("Compiling %s", comp)

	var cache qcache.Cache
	if opts.Cache != "" {
		rc, err := qcache.NewRedisCache(qcache.RedisOptions{URL: opts.Cache, TTL: opts.CacheTTL})
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeCache, err.Error(), nil)
		}
		defer rc.Close()
		cache = rc
	}

	compiler := cypher.NewQueryCompiler(repo, nil, doc.Parameters())
	q, err := qcache.Compile(cmd.Context(), cache, compiler, comp)
	switch {
	case errors.Is(err, cypher.ErrUnresolvedParameter):
		return formatter.Fail(ExitFailure, ErrCodeUnresolvedParam, err.Error(), nil)
	case errors.Is(err, cypher.ErrUnknownCandidate):
		return formatter.Fail(ExitFailure, ErrCodeUnknownCandidate, err.Error(), nil)
	case err != nil:
		return formatter.Fail(ExitFailure, ErrCodeGeneric, err.Error(), nil)
	}

	return formatter.Success(newCompileResult(q, comp))
}
