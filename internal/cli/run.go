package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/vellum/internal/engine"
	"github.com/roach88/vellum/internal/store"
	"github.com/roach88/vellum/internal/telemetry"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	DocumentID  string
	Variant     string
	Watch       bool
	Metrics     bool
	MetricsAddr string
}

// RunReply is written to stdout for each request line.
type RunReply struct {
	DocumentID string               `json:"document_id"`
	Record     *engine.ActionRecord `json:"record,omitempty"`
	Queued     bool                 `json:"queued,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <document>",
		Short: "Serve a document, reading actions from stdin",
		Long: `Start the single-writer event loop for a document.

Each stdin line is a JSON action request such as
  {"component":"P","action":"movePoint","args":{"coords":[3,4]}}
and produces one JSON reply line on stdout. Actions are journaled into
the database from --db, or the config's database, or an in-memory one.

With --watch, saving the document's CUE files starts a fresh document
from the new source. With --metrics, engine counters are served for
Prometheus at /metrics.

Example:
  vellum run lesson.cue --db ./vellum.db
  vellum run lesson.cue --watch --metrics --metrics-addr 127.0.0.1:9464`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDocument(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config, else in-memory)")
	cmd.Flags().StringVar(&opts.DocumentID, "document-id", "", "document to resume or create")
	cmd.Flags().StringVar(&opts.Variant, "variant", "", "variant for a new document (index or name)")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "restart the document when its source changes")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "serve Prometheus metrics")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "metrics listen address (default from config)")

	return cmd
}

// liveDocument is an engine with its Run loop.
type liveDocument struct {
	doc  *LoadedDocument
	eng  *engine.Engine
	done chan error
}

// runSession owns the live document. Reloads swap it under mu.
type runSession struct {
	st      *store.Store
	path    string
	variant engine.VariantRequest
	opts    []engine.Option
	logger  *slog.Logger

	mu   sync.Mutex
	live *liveDocument
}

func runDocument(opts *RunOptions, path string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())

	variant, err := parseVariant(opts.Variant)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --variant", err)
	}
	doc, err := LoadDocument(path)
	if err != nil {
		return loadErrorResponse(opts.formatter(cmd), err)
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = cfg.Database
	}
	if dbPath == "" {
		dbPath = ":memory:"
	}
	logger.Info("opening database", "path", dbPath)
	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engineOpts := engineOptions(cfg, logger)
	if opts.Metrics || cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		m, err := telemetry.New(reg, cfg.Metrics.Namespace)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to register metrics", err)
		}
		addr := opts.MetricsAddr
		if addr == "" {
			addr = cfg.Metrics.Address
		}
		srv := startMetricsServer(addr, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		engineOpts = append(engineOpts, engine.WithMetrics(m))
	}

	s := &runSession{
		st:      st,
		path:    path,
		variant: variant,
		opts:    engineOpts,
		logger:  logger,
	}
	if err := s.start(ctx, doc, opts.DocumentID); err != nil {
		return WrapExitError(ExitCommandError, "failed to open document", err)
	}
	defer s.shutdown(context.Background())

	if opts.Watch {
		w, err := watchDocument(ctx, path, logger, s.reload)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to watch document", err)
		}
		defer w.Close()
	}

	logger.Info("document ready", "document", s.documentID(), "variant", s.variantName())
	return s.serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
}

// startMetricsServer serves g at /metrics on addr.
func startMetricsServer(addr string, g prometheus.Gatherer, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler(g))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return server
}

// start opens doc and starts its Run loop as the live document.
func (s *runSession) start(ctx context.Context, doc *LoadedDocument, documentID string) error {
	jd, err := openJournaled(ctx, s.st, doc, documentID, s.variant, s.opts)
	if err != nil {
		return err
	}
	if jd.Resumed {
		s.logger.Info("document resumed", "document", jd.Engine.DocumentID(), "replayed", jd.Replay.Replayed)
	}

	live := &liveDocument{doc: doc, eng: jd.Engine, done: make(chan error, 1)}
	go func() { live.done <- live.eng.Run(ctx) }()

	s.mu.Lock()
	s.live = live
	s.mu.Unlock()
	return nil
}

func (s *runSession) current() *liveDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

func (s *runSession) documentID() string { return s.current().eng.DocumentID() }

func (s *runSession) variantName() string { return s.current().eng.Variant().Name }

// retire stops live's loop and saves its final essentials. The loop
// processes everything already queued before it returns.
func (s *runSession) retire(ctx context.Context, live *liveDocument) {
	live.eng.Stop()
	if err := <-live.done; err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("engine stopped with error", "document", live.eng.DocumentID(), "error", err)
	}

	id := live.eng.DocumentID()
	seq, err := s.st.LastSeq(ctx, id)
	if err != nil {
		s.logger.Error("failed to read journal", "document", id, "error", err)
	} else if seq > 0 {
		if _, err := s.st.WriteSnapshot(ctx, id, seq, live.eng.Essentials()); err != nil {
			s.logger.Error("failed to save snapshot", "document", id, "error", err)
		}
	}
	live.eng.Terminate()
}

// reload recompiles the document and, when its source changed, replaces
// the live document with a new one. Compile failures keep the old one.
func (s *runSession) reload(ctx context.Context) {
	doc, err := LoadDocument(s.path)
	if err != nil {
		s.logger.Error("reload failed, keeping current document", "error", err)
		return
	}

	// Hold new requests until the replacement is live.
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.live
	if old == nil {
		return
	}
	if old.doc.Hash == doc.Hash {
		s.logger.Debug("document source unchanged")
		return
	}
	s.retire(ctx, old)

	jd, err := openJournaled(ctx, s.st, doc, "", s.variant, s.opts)
	if err != nil {
		s.logger.Error("reload failed", "error", err)
		// Bring the previous source back under its own document.
		if jd, err = openJournaled(ctx, s.st, old.doc, old.eng.DocumentID(), s.variant, s.opts); err != nil {
			s.logger.Error("failed to restore document", "error", err)
			return
		}
	}
	live := &liveDocument{doc: doc, eng: jd.Engine, done: make(chan error, 1)}
	if jd.Resumed {
		live.doc = old.doc
	}
	go func() { live.done <- live.eng.Run(ctx) }()
	s.live = live
	s.logger.Info("document reloaded", "document", live.eng.DocumentID(), "previous", old.eng.DocumentID())
}

func (s *runSession) shutdown(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live != nil {
		s.retire(ctx, s.live)
		s.live = nil
	}
}

// dispatch sends req through the live document's Run loop and waits for
// the outcome.
func (s *runSession) dispatch(ctx context.Context, req engine.ActionRequest) RunReply {
	live := s.current()
	reply := make(chan engine.EventResult, 1)
	out := RunReply{DocumentID: live.eng.DocumentID()}

	if !live.eng.Enqueue(engine.Event{Type: engine.EventTypeAction, Action: &req, Reply: reply}) {
		out.Error = "document is closed"
		return out
	}
	select {
	case res := <-reply:
		out.Record = res.Record
		out.Queued = res.Queued
		if res.Err != nil {
			out.Error = res.Err.Error()
		}
	case <-ctx.Done():
		out.Error = ctx.Err().Error()
	}
	return out
}

// serve reads request lines from in until EOF or ctx is done.
func (s *runSession) serve(ctx context.Context, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	enc := json.NewEncoder(out)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down", "reason", ctx.Err())
			return nil
		case err := <-readErr:
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read requests", err)
			}
			return nil
		case line := <-lines:
			if len(line) == 0 {
				continue
			}
			var req engine.ActionRequest
			var reply RunReply
			if err := json.Unmarshal([]byte(line), &req); err != nil {
				reply = RunReply{DocumentID: s.documentID(), Error: fmt.Sprintf("invalid request: %v", err)}
			} else {
				reply = s.dispatch(ctx, req)
			}
			if err := enc.Encode(reply); err != nil {
				return WrapExitError(ExitCommandError, "failed to write reply", err)
			}
		}
	}
}
