package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cognicore/expertsys/pkg/expertsys"
	"github.com/cognicore/expertsys/pkg/expertsys/config"
	"github.com/cognicore/expertsys/pkg/expertsys/inference"
	"github.com/cognicore/expertsys/pkg/expertsys/kb"
	"github.com/cognicore/expertsys/pkg/expertsys/metrics"
	"github.com/cognicore/expertsys/pkg/expertsys/store"
	"github.com/cognicore/expertsys/pkg/expertsys/store/sqlite"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	rulesPath  string
	extraRules string
	ruleSet    string
	dbPath     string
	policy     string
	verbose    bool
	noArchive  bool
	metrics    bool
}

// app is built once per invocation by the root command's pre-run hook.
type app struct {
	opts     rootOptions
	logger   *zap.Logger
	store    store.Store
	sys      *expertsys.System
	registry *prometheus.Registry
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, a := newRootCmd()
	if err := execute(ctx, root, a); err != nil {
		return 1
	}
	return 0
}

// execute runs the command tree and always releases the store and logger.
// Cobra skips the post-run hook when a command fails.
func execute(ctx context.Context, root *cobra.Command, a *app) error {
	err := root.ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:   "expertsys",
		Short: "Rule-based medical expert system",
		Long: `expertsys diagnoses symptoms with weighted IF-THEN rules.

Forward chaining derives every diagnosis reachable from the reported symptoms.
Backward chaining tries to prove one diagnosis and shows the proof chain.

Rules come from a YAML file (--rules), a rule set stored in the database
(--ruleset) or the built-in medical knowledge base.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.finish(cmd.OutOrStdout())
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.opts.configPath, "config", "", "Settings file (YAML)")
	f.StringVar(&a.opts.rulesPath, "rules", "", "Rules file (default: built-in medical rules)")
	f.StringVar(&a.opts.extraRules, "extra-rules", "", "Additional rules file appended after --rules")
	f.StringVar(&a.opts.ruleSet, "ruleset", "", "Load rules from a rule set stored in --db")
	f.StringVar(&a.opts.dbPath, "db", "", "SQLite database for sessions and rule sets")
	f.StringVar(&a.opts.policy, "policy", "", "Backward chaining policy: first-match or best-confidence")
	f.BoolVarP(&a.opts.verbose, "verbose", "v", false, "Enable debug logging")
	f.BoolVar(&a.opts.noArchive, "no-archive", false, "Do not archive sessions to --db")
	f.BoolVar(&a.opts.metrics, "metrics", false, "Print inference metrics after the command")

	root.AddCommand(
		newForwardCmd(a),
		newBackwardCmd(a),
		newRulesCmd(a),
		newRuleCmd(a),
		newSessionsCmd(a),
		newExportCmd(a),
		newSaveRulesCmd(a),
		newDemoCmd(a),
		newInteractiveCmd(a),
	)
	return root, a
}

func (a *app) init(ctx context.Context) error {
	settings := config.DefaultSettings()
	if a.opts.configPath != "" {
		s, err := config.LoadSettings(a.opts.configPath)
		if err != nil {
			return fmt.Errorf("load settings: %w", err)
		}
		settings = s
	}
	// Flags override the settings file.
	if a.opts.rulesPath != "" {
		settings.RulesPath = a.opts.rulesPath
	}
	if a.opts.dbPath != "" {
		settings.DBPath = a.opts.dbPath
	}
	if a.opts.policy != "" {
		settings.Policy = a.opts.policy
	}
	if a.opts.verbose {
		settings.LogLevel = "debug"
	}
	if a.opts.noArchive {
		settings.Archive = false
	}

	logger, err := buildLogger(settings.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger

	policy, err := inference.ParsePolicy(settings.Policy)
	if err != nil {
		return err
	}

	if settings.DBPath != "" {
		st, err := sqlite.OpenSQLite(ctx, settings.DBPath, logger.Named("store"))
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		a.store = st
	}

	base, err := a.loadKnowledgeBase(ctx, settings.RulesPath)
	if err != nil {
		return err
	}

	a.registry = prometheus.NewRegistry()
	var archive store.Store
	if settings.Archive {
		archive = a.store
	}
	sys, err := expertsys.New(expertsys.Options{
		KnowledgeBase: base,
		Store:         archive,
		Policy:        policy,
		Logger:        logger,
		Observer:      metrics.NewRecorder(a.registry),
	})
	if err != nil {
		return err
	}
	a.sys = sys

	logger.Debug("knowledge base loaded",
		zap.Int("rules", base.Len()),
		zap.Int("symptoms", len(base.Symptoms())),
		zap.Int("diagnoses", len(base.Diagnoses())),
		zap.Stringer("policy", policy))
	return nil
}

func (a *app) loadKnowledgeBase(ctx context.Context, rulesPath string) (*kb.KnowledgeBase, error) {
	if a.opts.ruleSet != "" {
		if a.store == nil {
			return nil, fmt.Errorf("--ruleset requires --db")
		}
		rs, err := a.store.LoadRuleSet(ctx, a.opts.ruleSet)
		if err != nil {
			return nil, err
		}
		return rs.Build()
	}
	loader := config.Loader{RulesPath: rulesPath, ExtraPath: a.opts.extraRules}
	return loader.Load()
}

func (a *app) finish(out io.Writer) error {
	var err error
	if a.opts.metrics && a.registry != nil {
		err = writeMetrics(out, a.registry)
	}
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

// close releases the store and flushes the logger. Safe to call twice.
func (a *app) close() error {
	var err error
	if a.store != nil {
		err = a.store.Close()
		a.store = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return err
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

func writeMetrics(out io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return err
		}
	}
	return nil
}

// splitSymptoms accepts symptoms as separate args or comma-separated lists.
func splitSymptoms(args []string) []string {
	var out []string
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
