package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/BioMapper/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioMapper/pkg/client"
	"github.com/turtacn/BioMapper/pkg/errors"
	"github.com/turtacn/BioMapper/pkg/types/mapping"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	SourcePath    string
	TargetPath    string
	SourceDataset string
	TargetDataset string
	ShowMatches   bool
	ShowUnmapped  bool
	Server        string
}

// NewResolveCmd creates the resolve command.
func NewResolveCmd() *cobra.Command {
	opts := &ResolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Map source identifiers onto target identifiers",
		Long: "Reads one identifier per line from the source and target files, runs the\n" +
			"configured stages and prints the per-stage statistics (table) or the\n" +
			"full result (json).  Blank lines and lines starting with # are ignored.",
		Example: `  biomapper resolve --source uniprot_a.txt --target uniprot_b.txt
  biomapper resolve --source a.txt --target b.txt -o json --config biomapper.yaml
  biomapper resolve --source a.txt --target b.txt --server http://mapper:8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.SourcePath, "source", "", "file of source identifiers (required)")
	cmd.Flags().StringVar(&opts.TargetPath, "target", "", "file of target identifiers (required)")
	cmd.Flags().StringVar(&opts.SourceDataset, "source-dataset", "source", "dataset label attached to source identifiers")
	cmd.Flags().StringVar(&opts.TargetDataset, "target-dataset", "target", "dataset label attached to target identifiers")
	cmd.Flags().BoolVar(&opts.ShowMatches, "matches", false, "also print the match list (table output)")
	cmd.Flags().BoolVar(&opts.ShowUnmapped, "unmapped", false, "also print unmapped source identifiers (table output)")
	cmd.Flags().StringVar(&opts.Server, "server", "", "run the mapping on a biomapper API at this URL instead of locally")
	_ = cmd.MarkFlagRequired("source")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func runResolve(cmd *cobra.Command, opts *ResolveOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	log := cliCtx.Logger.Named("resolve")

	source, err := readIdentifierFile(opts.SourcePath)
	if err != nil {
		return err
	}
	target, err := readIdentifierFile(opts.TargetPath)
	if err != nil {
		return err
	}

	ctx, cancel := cliCtx.commandContext(cmd.Context())
	defer cancel()

	resolve := resolveLocal
	if opts.Server != "" {
		resolve = resolveRemote
	}
	// A nil result means the run never started; otherwise runErr is the
	// run's own outcome and the result is printed regardless.
	result, runErr := resolve(ctx, cliCtx, opts, source, target, log)
	if result == nil {
		return runErr
	}

	out := cmd.OutOrStdout()
	if cliCtx.OutputFormat == OutputJSON {
		if err := printJSON(out, result); err != nil {
			return err
		}
	} else {
		writeResultTable(out, result, opts)
	}
	return runErr
}

// resolveLocal runs the configured pipeline in-process.
func resolveLocal(ctx context.Context, cliCtx *CLIContext, opts *ResolveOptions, source, target []string, log logging.Logger) (*mapping.Result, error) {
	m, err := buildMapper(ctx, cliCtx.Config, cliCtx.Logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			log.Warn("shutdown incomplete", logging.Err(cerr))
		}
		_ = cliCtx.Logger.Sync()
	}()

	log.Info("resolving",
		logging.Int("source", len(source)),
		logging.Int("target", len(target)),
		logging.Strings("stages", m.orchestrator.Stages()))

	return m.orchestrator.RunRaw(ctx, source, target, opts.SourceDataset, opts.TargetDataset)
}

// resolveRemote submits the mapping to a biomapper API.  An aborted remote
// run still yields its partial result.
func resolveRemote(ctx context.Context, _ *CLIContext, opts *ResolveOptions, source, target []string, log logging.Logger) (*mapping.Result, error) {
	c, err := client.NewClient(opts.Server, client.WithLogger(clientLogger{log.Named("client")}))
	if err != nil {
		return nil, err
	}
	log.Info("resolving remotely",
		logging.String("server", c.BaseURL()),
		logging.Int("source", len(source)),
		logging.Int("target", len(target)))

	return c.Map(ctx, client.MappingRequest{
		Source:        source,
		Target:        target,
		SourceDataset: opts.SourceDataset,
		TargetDataset: opts.TargetDataset,
	})
}

// clientLogger adapts the structured logger to the SDK's printf interface.
type clientLogger struct{ l logging.Logger }

func (c clientLogger) Debugf(format string, args ...interface{}) { c.l.Debug(fmt.Sprintf(format, args...)) }
func (c clientLogger) Infof(format string, args ...interface{})  { c.l.Info(fmt.Sprintf(format, args...)) }
func (c clientLogger) Errorf(format string, args ...interface{}) { c.l.Error(fmt.Sprintf(format, args...)) }

// readIdentifierFile reads one identifier per line.  Surrounding whitespace
// is trimmed; blank lines and # comments are skipped.
func readIdentifierFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "cannot open identifier file").WithDetail(path)
	}
	defer f.Close()

	ids, err := readIdentifiers(f)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "cannot read identifier file").WithDetail(path)
	}
	return ids, nil
}

func readIdentifiers(r io.Reader) ([]string, error) {
	var ids []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	return ids, sc.Err()
}

// ── Table output ─────────────────────────────────────────────────────────────

func writeResultTable(w io.Writer, result *mapping.Result, opts *ResolveOptions) {
	fmt.Fprintf(w, "Run %s: %s\n", result.RunID, result.State)
	if result.Error != "" {
		fmt.Fprintf(w, "Error (stage %d): %s\n", result.FailedStage, result.Error)
	}

	if len(result.StageHistory) > 0 {
		fmt.Fprintln(w, renderTable(stageHeaders, stageRows(result.StageHistory), 0, 3, 4, 5, 6, 7, 9))
	}

	fmt.Fprintf(w, "Matches: %d  Unmapped source: %d  Unmapped target: %d\n",
		len(result.Matches), len(result.FinalUnmappedSource), len(result.FinalUnmappedTarget))

	if opts.ShowMatches && len(result.Matches) > 0 {
		rows := make([][]string, 0, len(result.Matches))
		for _, m := range result.Matches {
			rows = append(rows, []string{
				m.SourceID, m.TargetID, strconv.Itoa(m.Stage), m.Method.String(), formatFloat(m.Confidence),
			})
		}
		fmt.Fprintln(w, renderTable([]string{"Source", "Target", "Stage", "Method", "Confidence"}, rows, 2, 4))
	}

	if opts.ShowUnmapped && len(result.FinalUnmappedSource) > 0 {
		rows := make([][]string, 0, len(result.FinalUnmappedSource))
		for _, id := range result.FinalUnmappedSource {
			rows = append(rows, []string{id.Raw, id.Normalized})
		}
		fmt.Fprintln(w, renderTable([]string{"Unmapped source", "Normalized"}, rows))
	}
}

var stageHeaders = []string{
	"#", "Stage", "Method", "Input", "New", "Cumulative", "Sources", "Coverage", "Obsolete", "Elapsed",
}

func stageRows(history []mapping.StageStats) [][]string {
	rows := make([][]string, 0, len(history))
	for _, st := range history {
		obsolete := "-"
		if st.ObsoleteCount > 0 {
			obsolete = fmt.Sprintf("%d (%d failed)", st.ObsoleteCount, st.ResolutionFailedCount)
		}
		if st.CircuitOpen {
			obsolete += " circuit open"
		}
		rows = append(rows, []string{
			strconv.Itoa(st.StageNumber),
			st.StageName,
			st.Method,
			strconv.Itoa(st.InputCount),
			strconv.Itoa(st.NewMatches),
			strconv.Itoa(st.CumulativeMatched),
			strconv.Itoa(st.CumulativeSourcesMatched),
			fmt.Sprintf("%.1f%%", st.CumulativeCoverage*100),
			obsolete,
			st.Elapsed.Round(time.Millisecond).String(),
		})
	}
	return rows
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }

//Personal.AI order the ending
