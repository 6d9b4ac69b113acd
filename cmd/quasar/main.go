// Package main provides the quasar CLI: a one-shot query mode, an
// interactive REPL, and the HTTP/SSE server.
//
// Basic usage:
//
//	quasar "explain main.go"
//	quasar --interactive --workspace ~/src/project
//	quasar serve --config quasar.yaml
//
// Credentials are read from the environment at startup:
//
//   - GROQ_API_KEY_1, GROQ_API_KEY_2, ...
//   - CEREBRAS_API_KEY_1, ...
//   - CLOUDFLARE_ACCOUNT_ID_1 + CLOUDFLARE_API_TOKEN_1, ...
//   - OLLAMA_URL (optional local inference server override)
//   - BRAVE_API_KEY (optional web search)
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ai-innovation-art/quasar/internal/agent"
	"github.com/ai-innovation-art/quasar/internal/config"
	"github.com/ai-innovation-art/quasar/internal/contextmgr"
	"github.com/ai-innovation-art/quasar/internal/observability"
	"github.com/ai-innovation-art/quasar/internal/providers"
	"github.com/ai-innovation-art/quasar/internal/routing"
	"github.com/ai-innovation-art/quasar/internal/tools/catalog"
	"github.com/ai-innovation-art/quasar/internal/transport"
	"github.com/ai-innovation-art/quasar/pkg/models"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type appFlags struct {
	configPath  string
	workspace   string
	model       string
	interactive bool
}

func newRootCmd() *cobra.Command {
	flags := &appFlags{}

	root := &cobra.Command{
		Use:   "quasar [query]",
		Short: "Agentic code assistant",
		Long:  "Quasar routes developer requests through task classification, multi-provider model selection, and a tool-calling agent loop.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(flags)
			if err != nil {
				return err
			}
			defer app.shutdown()

			if flags.interactive {
				return app.repl(cmd.Context())
			}
			if len(args) == 0 {
				return cmd.Help()
			}
			return app.oneShot(cmd.Context(), args[0], flags.model)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", os.Getenv("QUASAR_CONFIG"), "path to quasar.yaml")
	root.PersistentFlags().StringVar(&flags.workspace, "workspace", "", "workspace directory (default: current directory)")
	root.Flags().StringVar(&flags.model, "model", "", "pin a model as <provider>/<model_key>")
	root.Flags().BoolVar(&flags.interactive, "interactive", false, "start the interactive REPL")

	root.AddCommand(newServeCmd(flags))
	root.AddCommand(newVersionCmd())
	return root
}

func newServeCmd(flags *appFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/SSE server",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(flags)
			if err != nil {
				return err
			}
			defer app.shutdown()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr := fmt.Sprintf("%s:%d", app.cfg.Server.Host, app.cfg.Server.Port)
			app.logger.Info(ctx, "listening", "addr", addr, "workspace", app.workspace)
			return app.server.ListenAndServe(ctx, addr)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("quasar %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// app holds the wired process.
type app struct {
	cfg          *config.Config
	workspace    string
	logger       *observability.Logger
	orchestrator *agent.Orchestrator
	server       *transport.Server
	shutdownFns  []func()
}

func (a *app) shutdown() {
	for i := len(a.shutdownFns) - 1; i >= 0; i-- {
		a.shutdownFns[i]()
	}
}

func buildApp(flags *appFlags) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	workspace := flags.workspace
	if workspace == "" {
		workspace = cfg.Workspace
	}
	if workspace == "" {
		workspace, err = os.Getwd()
		if err != nil {
			return nil, err
		}
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
	metrics, promRegistry := observability.NewMetrics()
	tracer, stopTracer := observability.NewTracer(observability.TraceConfig{ServiceName: "quasar"})

	store := cfg.BuildCredentialStore()
	anyAvailable := false
	for name := range cfg.Providers {
		if store.IsAvailable(name) {
			anyAvailable = true
			break
		}
	}
	if !anyAvailable {
		return nil, fmt.Errorf("no provider credentials configured; set GROQ_API_KEY_1 (or a peer) or run a local inference server")
	}

	registry := providers.NewRegistry(store, cfg.ProviderSpecs())
	router := routing.New(registry, store, cfg.Chains(), cfg.ModelTables(), logger)

	manager := contextmgr.NewManager(workspace,
		contextmgr.WithLogger(logger),
		contextmgr.WithThreshold(cfg.Agent.SummarizeThreshold),
		contextmgr.WithSummarizer(&agent.RouterSummarizer{Router: router}),
	)

	toolRegistry := catalog.Build(catalog.Config{
		Workspace:   workspace,
		BraveAPIKey: cfg.Tools.BraveAPIKey,
		EnableWeb:   cfg.Tools.EnableWeb,
		EnableExec:  cfg.Tools.EnableExec,
	})

	orchestrator := agent.New(router, store, manager, toolRegistry, agent.Config{
		MaxIterations:   cfg.Agent.MaxIterations,
		ToolTimeout:     cfg.ToolTimeout(),
		PackageTimeout:  cfg.PackageTimeout(),
		ProviderTimeout: cfg.ProviderTimeout(),
	}, logger, metrics, tracer)

	server := transport.NewServer(orchestrator, router, store, modelListings(cfg, store), logger, metrics, promRegistry)

	return &app{
		cfg:          cfg,
		workspace:    workspace,
		logger:       logger,
		orchestrator: orchestrator,
		server:       server,
		shutdownFns:  []func(){func() { _ = stopTracer(context.Background()) }},
	}, nil
}

// modelListings flattens the enabled providers' model tables for
// GET /models/list.
func modelListings(cfg *config.Config, store interface{ IsAvailable(string) bool }) []transport.ModelListing {
	var out []transport.ModelListing
	for provider, table := range cfg.ModelTables() {
		pc, ok := cfg.Providers[provider]
		if !ok || !pc.Enabled || !store.IsAvailable(provider) {
			continue
		}
		for key, mc := range table {
			display := mc.DisplayName
			if display == "" {
				display = mc.ModelName
			}
			out = append(out, transport.ModelListing{
				Provider:    provider,
				ModelKey:    key,
				ModelName:   mc.ModelName,
				DisplayName: display,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].ModelKey < out[j].ModelKey
	})
	return out
}

// oneShot runs a single query and prints the streamed response.
func (a *app) oneShot(ctx context.Context, query, pinned string) error {
	resp := a.orchestrator.ProcessStream(ctx, agent.Request{Query: query, SelectedModel: pinned}, printEvent)
	fmt.Println()
	if !resp.Success {
		return fmt.Errorf("%s", resp.Error)
	}
	return nil
}

// repl runs the interactive loop.
func (a *app) repl(ctx context.Context) error {
	fmt.Printf("quasar %s — workspace %s (exit with ctrl-d or \"exit\")\n", version, a.workspace)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		resp := a.orchestrator.ProcessStream(ctx, agent.Request{Query: line}, printEvent)
		fmt.Println()
		if !resp.Success && resp.Error != "" {
			fmt.Fprintln(os.Stderr, "error:", resp.Error)
		}
	}
}

// printEvent renders streamed events for the terminal.
func printEvent(e models.Event) {
	switch e.Type {
	case models.EventToken:
		fmt.Print(e.Token)
	case models.EventMessage:
		fmt.Fprintf(os.Stderr, "· %s\n", e.Content)
	case models.EventIterationWarn:
		fmt.Fprintf(os.Stderr, "· one iteration remaining\n")
	case models.EventError:
		fmt.Fprintf(os.Stderr, "error: %s\n", e.Error)
	}
}
