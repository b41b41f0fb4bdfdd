// Command postmark-send dispatches one message described by a JSON file
// through Postmark and prints one JSON outcome per line.
//
//	postmark-send [-dry-run] [-config config/config.yaml] message.json
//
// With -dry-run the wire payload is printed instead of being sent. When a
// database is configured, send-time suppressions are written to it.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/postmark-bridge/internal/config"
	"github.com/ignite/postmark-bridge/internal/dispatch"
	"github.com/ignite/postmark-bridge/internal/domain"
	"github.com/ignite/postmark-bridge/internal/pkg/logger"
	"github.com/ignite/postmark-bridge/internal/postmark"
	"github.com/ignite/postmark-bridge/internal/repository/postgres"
	"github.com/ignite/postmark-bridge/internal/service/suppression"

	_ "github.com/lib/pq"
)

type outcomeLine struct {
	Recipient string                    `json:"recipient"`
	Status    domain.OutcomeStatus      `json:"status"`
	MessageID string                    `json:"message_id,omitempty"`
	Action    *domain.SuppressionAction `json:"action,omitempty"`
	Error     string                    `json:"error,omitempty"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("postmark-send", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dryRun := fs.Bool("dry-run", false, "print the wire payload instead of sending")
	configPath := fs.String("config", "config/config.yaml", "path to the YAML config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: postmark-send [-dry-run] [-config path] message.json")
		return 2
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: load config: %v\n", err)
		return 1
	}
	if cfg.Postmark.MessageStream == "" {
		fmt.Fprintln(stderr, "FATAL: postmark.message_stream is required")
		return 1
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.Redact())

	msg, err := readMessage(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "FATAL: %v\n", err)
		return 1
	}

	builder := postmark.NewBuilder(cfg.Postmark.MessageStream)
	if *dryRun {
		return preview(ctx, builder, msg, stdout, stderr)
	}

	opts := []dispatch.Option{dispatch.WithWorkers(cfg.Postmark.FanoutWorkers)}
	if cfg.Storage.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.Storage.DatabaseURL)
		if err != nil {
			fmt.Fprintf(stderr, "FATAL: open database: %v\n", err)
			return 1
		}
		defer db.Close()
		svc := suppression.NewService(postgres.NewSuppressionRepo(db),
			suppression.WithStatsRecorder(postgres.NewStatsRepo(db)))
		opts = append(opts, dispatch.WithSink(svc))
	}

	d := dispatch.New(builder, postmark.NewClient(cfg.Postmark), opts...)
	return send(ctx, d, msg, stdout)
}

func readMessage(path string) (*domain.OutboundMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}
	var msg domain.OutboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("parse message %s: %w", path, err)
	}
	if len(msg.Recipients()) == 0 && len(msg.Tokens) == 0 {
		return nil, fmt.Errorf("message %s has no recipients", path)
	}
	return &msg, nil
}

// send prints one line per outcome and returns 1 when any recipient failed.
func send(ctx context.Context, d *dispatch.Dispatcher, msg *domain.OutboundMessage, out io.Writer) int {
	enc := json.NewEncoder(out)
	code := 0
	for _, o := range d.Dispatch(ctx, msg) {
		line := outcomeLine{Recipient: o.Recipient, Status: o.Status, MessageID: o.MessageID, Action: o.Action}
		if o.Err != nil {
			line.Error = o.Err.Error()
			code = 1
		}
		_ = enc.Encode(line)
	}
	return code
}

// preview prints the payload of every provider call Dispatch would make.
func preview(ctx context.Context, b *postmark.Builder, msg *domain.OutboundMessage, stdout, stderr io.Writer) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	for _, s := range dispatch.Plan(msg) {
		payload, err := b.Build(ctx, s.Message, s.Recipients)
		if err != nil {
			fmt.Fprintf(stderr, "FATAL: build payload: %v\n", err)
			return 1
		}
		if err := enc.Encode(payload); err != nil {
			fmt.Fprintf(stderr, "FATAL: encode payload: %v\n", err)
			return 1
		}
	}
	return 0
}
