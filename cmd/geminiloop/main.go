package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yknld/geminiloop/pkg/codegen"
	"github.com/yknld/geminiloop/pkg/config"
	"github.com/yknld/geminiloop/pkg/llm"
	"github.com/yknld/geminiloop/pkg/orchestrator"
	"github.com/yknld/geminiloop/pkg/pathcfg"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	cfgFile       string
	task          string
	notes         string
	maxIterations int
	driverCommand string

	rootCmd = &cobra.Command{
		Use:   "geminiloop",
		Short: "GeminiLoop - closed-loop autonomous web UI generation",
		Long: `GeminiLoop drives an iterative generate-serve-evaluate-patch cycle
over a rendered web UI: it plans a brief, asks a code-generation backend
to build it, previews it over HTTP, drives a real browser to exercise it,
and scores the result against a fixed rubric, patching at most once.`,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run one closed loop to completion",
		RunE:  runRunLoop,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: geminiloop.yaml in the working directory)")

	runCmd.Flags().StringVarP(&task, "task", "t", "", "the UI to build (required)")
	runCmd.Flags().StringVarP(&notes, "notes", "n", "", "skip the planner and use this brief verbatim")
	runCmd.Flags().IntVarP(&maxIterations, "max-iterations", "i", 2, "iteration budget (clamped to 2)")
	runCmd.Flags().StringVar(&driverCommand, "browser-driver", "", "browser driver subprocess command (required)")
	_ = runCmd.MarkFlagRequired("task")
	_ = runCmd.MarkFlagRequired("browser-driver")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("geminiloop %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	})
}

func initConfig() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("geminiloop")
	}

	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			fmt.Fprintf(os.Stderr, "warning: failed to read config file: %v\n", err)
		}
	}
}

func runRunLoop(cmd *cobra.Command, args []string) error {
	cfg := config.Load(viper.GetViper())
	log := newLogger()

	roots, err := pathcfg.Init(pathcfg.Options{
		WorkspaceRootOverride: cfg.WorkspaceRoot,
		ProjectDirName:        cfg.ProjectDirName,
		PreviewHost:           cfg.PreviewHost,
		PreviewPort:           cfg.PreviewPort,
	})
	if err != nil {
		return fmt.Errorf("geminiloop: resolve roots: %w", err)
	}
	roots.LogStartupInfo(log)

	if cfg.GoogleAIStudioAPIKey == "" {
		return fmt.Errorf("geminiloop: GOOGLE_AI_STUDIO_API_KEY is required")
	}

	llmClient, err := llm.NewGeminiClient(cfg.GoogleAIStudioAPIKey, cfg.GeminiModel, llm.DefaultOptions())
	if err != nil {
		return fmt.Errorf("geminiloop: create gemini client: %w", err)
	}

	adapter := selectAdapter(cfg, log)

	driverArgs := viper.GetStringSlice("browser_driver_args")
	engine := orchestrator.New(cfg, roots, orchestrator.BrowserDriverCommand{
		Command: driverCommand,
		Args:    driverArgs,
	}, llmClient, adapter, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("received shutdown signal, cancelling run")
		cancel()
	}()

	result, err := engine.RunLoop(ctx, orchestrator.RunRequest{
		Task:          task,
		Notes:         notes,
		MaxIterations: maxIterations,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
	}

	fmt.Printf("run %s: status=%s final_score=%d final_passed=%v preview_url=%s\n",
		result.RunID, result.Status, result.FinalScore, result.FinalPassed, result.PreviewURL)

	if !result.FinalPassed {
		os.Exit(1)
	}
	return nil
}

// selectAdapter chooses the Code-Generation Adapter implementation per
// OPENHANDS_MODE (spec §6): "mock" for the no-LLM scripted backend used in
// tests and CI, "local" for a delegated external coding agent subprocess.
func selectAdapter(cfg *config.Config, log logr.Logger) codegen.Adapter {
	if cfg.OpenHandsMode == config.OpenHandsModeLocal {
		binary := viper.GetString("openhands_binary")
		if binary == "" {
			binary = "openhands-cli"
		}
		delegated := codegen.NewDelegated(binary, log)
		if cfg.OpenHandsTimeoutSeconds > 0 {
			delegated.Timeout = time.Duration(cfg.OpenHandsTimeoutSeconds) * time.Second
		}
		return delegated
	}
	return codegen.NewScripted()
}

func newLogger() logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, args)
		} else {
			fmt.Fprintln(os.Stderr, args)
		}
	}, funcr.Options{})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
