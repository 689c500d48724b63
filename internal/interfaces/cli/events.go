package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/turtacn/BioMapper/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/BioMapper/internal/infrastructure/monitoring/logging"
)

// NewEventsCmd creates the events command group.
func NewEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect and prepare the Kafka event topics",
	}
	cmd.AddCommand(newEventsTailCmd(), newEventsEnsureTopicsCmd())
	return cmd
}

// TailOptions holds flags for events tail.
type TailOptions struct {
	GroupID  string
	From     string
	MaxCount int64
}

func newEventsTailCmd() *cobra.Command {
	opts := &TailOptions{}

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print stage and run events as they are published",
		Example: `  biomapper events tail
  biomapper events tail --from earliest --max 10 -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTail(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.GroupID, "group", "", "consumer group (default: events.consumer_group)")
	cmd.Flags().StringVar(&opts.From, "from", "latest", "where a new group starts reading (earliest, latest)")
	cmd.Flags().Int64Var(&opts.MaxCount, "max", 0, "stop after this many events (0 runs until interrupted)")
	return cmd
}

func runTail(cmd *cobra.Command, opts *TailOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	events := cliCtx.Config.Events
	log := cliCtx.Logger.Named("tail")

	group := opts.GroupID
	if group == "" {
		group = events.ConsumerGroup
	}
	topics := eventTopics(events.Topics)
	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:         events.Producer.Brokers,
		GroupID:         group,
		Topics:          topics,
		AutoOffsetReset: opts.From,
		Security:        events.Producer.Security,
	}, cliCtx.Logger)
	if err != nil {
		return err
	}

	ctx, cancel := cliCtx.commandContext(cmd.Context())
	defer cancel()

	printer := newEventPrinter(cmd.OutOrStdout(), cliCtx.OutputFormat, log)
	printer.limit = opts.MaxCount
	printer.done = cancel
	for _, t := range topics {
		consumer.Subscribe(t, printer.Handle)
	}

	if err := consumer.Start(ctx); err != nil {
		return err
	}
	log.Info("tailing events", logging.Strings("topics", topics), logging.String("group", group))

	<-ctx.Done()
	if err := consumer.Close(); err != nil {
		log.Warn("consumer close failed", logging.Err(err))
	}
	log.Info("tail stopped", logging.Int64("printed", printer.Printed()))
	return nil
}

func eventTopics(cfg kafka.PublisherConfig) []string {
	defs := kafka.DefaultTopics(cfg, 1)
	return []string{defs[0].Name, defs[1].Name}
}

// eventPrinter writes one line per event.  It never fails a message: a
// record that cannot be decoded is logged and skipped.
type eventPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	format  string
	logger  logging.Logger
	printed atomic.Int64
	limit   int64
	done    func()
}

func newEventPrinter(w io.Writer, format string, logger logging.Logger) *eventPrinter {
	return &eventPrinter{w: w, format: format, logger: logger}
}

func (p *eventPrinter) Printed() int64 { return p.printed.Load() }

func (p *eventPrinter) Handle(_ context.Context, msg *kafka.Message) error {
	env, err := kafka.EnvelopeFromMessage(msg)
	if err != nil {
		p.logger.Warn("skipping undecodable event", logging.String("topic", msg.Topic), logging.Err(err))
		return nil
	}

	line, err := p.format1(env)
	if err != nil {
		p.logger.Warn("skipping event", logging.String("event_type", env.EventType), logging.Err(err))
		return nil
	}

	p.mu.Lock()
	fmt.Fprintln(p.w, line)
	p.mu.Unlock()

	if n := p.printed.Add(1); p.limit > 0 && n >= p.limit && p.done != nil {
		p.done()
	}
	return nil
}

func (p *eventPrinter) format1(env *kafka.EventEnvelope) (string, error) {
	if p.format == OutputJSON {
		data, err := json.Marshal(env)
		return string(data), err
	}

	ts := env.Timestamp.Format("15:04:05.000")
	switch env.EventType {
	case kafka.EventTypeStageCompleted:
		var payload kafka.StageCompletedPayload
		if err := env.DecodePayload(&payload); err != nil {
			return "", err
		}
		st := payload.Stats
		return fmt.Sprintf("%s run=%s stage=%d/%s method=%s input=%d new=%d cumulative=%d coverage=%.1f%%",
			ts, env.RunID, st.StageNumber, st.StageName, st.Method, st.InputCount,
			st.NewMatches, st.CumulativeMatched, st.CumulativeCoverage*100), nil
	case kafka.EventTypeRunCompleted:
		var payload kafka.RunCompletedPayload
		if err := env.DecodePayload(&payload); err != nil {
			return "", err
		}
		line := fmt.Sprintf("%s run=%s state=%s matches=%d unmapped_source=%d unmapped_target=%d",
			ts, env.RunID, payload.State, payload.MatchCount, payload.UnmappedSourceCount, payload.UnmappedTargetCount)
		if payload.Error != "" {
			line += fmt.Sprintf(" failed_stage=%d error=%q", payload.FailedStage, payload.Error)
		}
		return line, nil
	default:
		return fmt.Sprintf("%s run=%s type=%s", ts, env.RunID, env.EventType), nil
	}
}

func newEventsEnsureTopicsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure-topics",
		Short: "Create the stage, run and dead-letter topics if missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := cliCtx.commandContext(cmd.Context())
			defer cancel()

			events := cliCtx.Config.Events
			if err := ensureTopics(ctx, events, cliCtx.Logger); err != nil {
				return err
			}
			defs := kafka.DefaultTopics(events.Topics, events.ReplicationFactor)
			rows := make([][]string, 0, len(defs))
			for _, s := range defs {
				rows = append(rows, []string{s.Name, fmt.Sprint(s.NumPartitions), fmt.Sprint(s.ReplicationFactor)})
			}
			if cliCtx.OutputFormat == OutputJSON {
				return printJSON(cmd.OutOrStdout(), defs)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Topic", "Partitions", "Replication"}, rows, 1, 2))
			return nil
		},
	}
}

//Personal.AI order the ending
