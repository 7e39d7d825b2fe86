package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pavelanni/socratic/internal/handler"
	appI18n "github.com/pavelanni/socratic/internal/i18n"
	"github.com/pavelanni/socratic/internal/llm"
	"github.com/pavelanni/socratic/internal/llm/prompts"
	"github.com/pavelanni/socratic/internal/model"
	"github.com/pavelanni/socratic/internal/store"
	"github.com/pavelanni/socratic/internal/tutor"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "socratic",
		Short: "Socratic tutor that assesses answers along Bloom's taxonomy",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), questionsCmd(), tokenCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `socratic --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP tutoring API",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "", "SQLite database path (empty keeps sessions in memory)")
	f.Duration("session-ttl", 2*time.Hour, "Evict sessions idle for longer than this (0 disables)")
	addLLMFlags(f)
	f.String("prompt-variant", string(prompts.PromptStandard), "Scoring prompt variant (strict, standard, lenient)")
	f.Int("mastery-threshold", 80, "Average score required for mastery")
	f.StringP("lang", "l", "en", "Default feedback language (en, hi)")
	f.String("api-token", "", "Bearer token required on API routes (or set SOCRATIC_API_TOKEN)")
	f.StringSlice("cors-origins", nil, "Allowed CORS origins (repeatable)")
	addLogFlags(f)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored dialogues as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "socratic.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(f)
	return cmd
}

func questionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Generate a question set for a topic and print it as JSON",
		RunE:  runQuestions,
	}
	f := cmd.Flags()
	f.StringP("topic", "t", "", "Topic to generate questions for (required)")
	f.StringP("grade", "g", "", "Grade level of the student")
	f.StringP("subject", "s", "", "Subject the topic belongs to")
	f.StringP("lang", "l", "en", "Language for fallback questions (en, hi)")
	addLLMFlags(f)
	addLogFlags(f)

	_ = cmd.MarkFlagRequired("topic")

	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate or clear the API bearer token stored in the database",
		RunE:  runToken,
	}
	f := cmd.Flags()
	f.String("db", "socratic.db", "SQLite database path")
	f.Bool("clear", false, "Remove the stored token and disable API authentication")
	addLogFlags(f)
	return cmd
}

func addLLMFlags(f *pflag.FlagSet) {
	def := llm.DefaultConfig()
	f.String("llm-provider", string(def.Provider), "LLM provider (openai, gemini)")
	f.String("llm-url", def.BaseURL, "OpenAI-compatible API base URL")
	f.String("llm-key", def.APIKey, "API key for LLM")
	f.String("llm-model", def.Model, "LLM model name")
	f.Float64("llm-temperature", def.Temperature, "Sampling temperature")
	f.Duration("llm-timeout", def.Timeout, "Timeout for each LLM call")
	f.Int("llm-retries", def.Retry.MaxAttempts, "Attempts per LLM call (1 disables retries)")
}

func addLogFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("SOCRATIC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("socratic")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/socratic")
	v.AddConfigPath("/etc/socratic")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func llmConfig(v *viper.Viper) llm.Config {
	cfg := llm.DefaultConfig()
	cfg.Provider = llm.ProviderKind(strings.ToLower(v.GetString("llm-provider")))
	cfg.BaseURL = v.GetString("llm-url")
	cfg.APIKey = v.GetString("llm-key")
	cfg.Model = v.GetString("llm-model")
	cfg.Temperature = v.GetFloat64("llm-temperature")
	cfg.Timeout = v.GetDuration("llm-timeout")
	cfg.Retry.MaxAttempts = v.GetInt("llm-retries")
	return cfg
}

// newOracle builds the LLM provider. An unreachable endpoint is not fatal:
// the tutor degrades to its offline fallbacks.
func newOracle(ctx context.Context, v *viper.Viper) (llm.Provider, error) {
	cfg := llmConfig(v)
	p, err := llm.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := p.Ping(pingCtx); err != nil {
		slog.Warn("LLM health check failed, fallbacks will be used until it recovers",
			"provider", cfg.Provider, "model", p.ModelID(), "error", err)
	} else {
		slog.Info("LLM endpoint OK", "provider", cfg.Provider, "url", cfg.BaseURL, "model", p.ModelID())
	}
	return p, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Open session storage.
	var (
		sessions tutor.SessionStore
		tokens   handler.TokenVerifier
	)
	apiToken := v.GetString("api-token")
	if dbPath := v.GetString("db"); dbPath != "" {
		db, err := store.New(dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		sessions = db
		if n, err := db.SessionCount(ctx); err != nil {
			slog.Warn("count stored sessions", "error", err)
		} else {
			slog.Info("opened session database", "path", dbPath, "sessions", n)
		}

		if apiToken != "" {
			if err := db.SetAPIToken(ctx, apiToken); err != nil {
				return fmt.Errorf("store API token: %w", err)
			}
		}
		has, err := db.HasAPIToken(ctx)
		if err != nil {
			return fmt.Errorf("check API token: %w", err)
		}
		if has {
			tokens = db
		}
	} else {
		sessions = store.NewMemory()
		if apiToken != "" {
			st, err := store.NewStaticToken(apiToken)
			if err != nil {
				return fmt.Errorf("hash API token: %w", err)
			}
			tokens = st
		}
	}

	// Initialize i18n.
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	oracle, err := newOracle(ctx, v)
	if err != nil {
		return err
	}

	promptVariant := strings.ToLower(strings.TrimSpace(v.GetString("prompt-variant")))
	if !prompts.IsValidVariant(promptVariant) {
		slog.Warn("invalid prompt-variant, using standard", "variant", promptVariant)
		promptVariant = string(prompts.PromptStandard)
	}

	tutorCfg := model.TutorConfig{
		MasteryThreshold: v.GetInt("mastery-threshold"),
		PromptVariant:    promptVariant,
		SessionTTL:       v.GetDuration("session-ttl"),
		APIToken:         tokens != nil,
		CORSOrigins:      v.GetStringSlice("cors-origins"),
	}

	engine := tutor.NewEngine(oracle, tutor.Options{
		PromptVariant:    prompts.PromptVariant(tutorCfg.PromptVariant),
		MasteryThreshold: tutorCfg.MasteryThreshold,
	})
	svc := tutor.NewService(engine, sessions)
	h := handler.New(svc, tokens)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if len(tutorCfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   tutorCfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	if tutorCfg.SessionTTL > 0 {
		go runJanitor(ctx, svc, tutorCfg.SessionTTL)
	}

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("starting server",
		"addr", addr,
		"provider", v.GetString("llm-provider"),
		"model", oracle.ModelID(),
		"lang", lang,
		"prompt_variant", tutorCfg.PromptVariant,
		"mastery_threshold", engine.Threshold(),
		"session_ttl", tutorCfg.SessionTTL,
		"persistent", v.GetString("db") != "",
		"auth", tutorCfg.APIToken,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runJanitor evicts idle sessions until ctx is cancelled.
func runJanitor(ctx context.Context, svc *tutor.Service, ttl time.Duration) {
	ticker := time.NewTicker(max(ttl/4, time.Minute))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.Sweep(ctx, ttl); err != nil {
				slog.Warn("session sweep failed", "error", err)
			}
		}
	}
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	results, err := db.ExportAllSessions(ctx)
	if err != nil {
		return fmt.Errorf("export sessions: %w", err)
	}

	export := model.DialogueExport{
		ExportedAt:  time.Now().UTC(),
		NumSessions: len(results),
		Results:     results,
	}
	return writeJSONOutput(v.GetString("output"), export)
}

func runQuestions(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	oracle, err := newOracle(ctx, v)
	if err != nil {
		return err
	}

	t := model.Topic{
		Topic:      v.GetString("topic"),
		GradeLevel: v.GetString("grade"),
		Subject:    v.GetString("subject"),
	}
	engine := tutor.NewEngine(oracle, tutor.Options{})
	return writeJSONOutput("-", map[string]any{
		"topic":     t,
		"questions": engine.Questions(ctx, t),
	})
}

func runToken(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if v.GetBool("clear") {
		if err := db.SetAPIToken(ctx, ""); err != nil {
			return fmt.Errorf("clear API token: %w", err)
		}
		slog.Info("API token cleared")
		return nil
	}

	token, err := db.GenerateAPIToken(ctx)
	if err != nil {
		return fmt.Errorf("generate API token: %w", err)
	}
	// The token is only shown once; the database keeps its hash.
	fmt.Println(token)
	return nil
}

func writeJSONOutput(outPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}
