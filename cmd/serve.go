package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/masskarem1/PHYS.101-Ebook/internal/aiproxy"
	"github.com/masskarem1/PHYS.101-Ebook/internal/annotate"
	"github.com/masskarem1/PHYS.101-Ebook/internal/auth"
	"github.com/masskarem1/PHYS.101-Ebook/internal/config"
	"github.com/masskarem1/PHYS.101-Ebook/internal/llm"
	"github.com/masskarem1/PHYS.101-Ebook/internal/reader"
	"github.com/masskarem1/PHYS.101-Ebook/internal/server"
)

// annotationQuota caps the stored annotation layers at roughly what a
// browser origin is allowed to keep.
const annotationQuota = 50 << 20

var (
	servePort    int
	serveProxy   bool
	serveNoLogin bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the flipbook viewer",
	Long: `Starts the local web server hosting the page-flip viewer, its REST API and
the websocket session protocol. With --builtin-proxy (or when ai.proxy_url is
empty and an LLM provider is configured) the AI helper is answered by the
built-in /api/ai/proxy endpoint.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (overrides server.port)")
	serveCmd.Flags().BoolVar(&serveProxy, "builtin-proxy", false, "answer AI requests with the built-in LLM proxy")
	serveCmd.Flags().BoolVar(&serveNoLogin, "no-login", false, "disable the student login even if login.required is set")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if serveNoLogin {
		cfg.Login.Required = false
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	text, err := loadCorpus(cfg, log)
	if err != nil {
		return err
	}
	svc, err := loadSearch(ctx, cfg, text, log)
	if err != nil {
		return err
	}

	srv := server.New(server.Config{Port: cfg.Server.Port, AllowAll: cfg.Server.AllowAll, Version: Version}, log)

	if err := mountProxy(srv, cfg, log); err != nil {
		return err
	}

	loader := newLoader(cfg, log)
	history := aiproxy.NewSQLRecorder(database)
	var helper *aiproxy.Helper
	if cfg.AI.ProxyURL != "" {
		helper = newHelper(cfg, text, loader, history, log)
	}
	rd, err := reader.New(reader.Deps{
		Config:      cfg,
		Assets:      assetFS(cfg),
		Loader:      loader,
		Persistence: annotate.NewPersistence(annotate.NewSQLStore(database, annotationQuota), log),
		Search:      svc,
		Helper:      helper,
		History:     history,
		Auth:        auth.NewStore(database, cfg.Login),
		Log:         log,
	})
	if err != nil {
		return err
	}
	rd.RegisterRoutes(srv.Router())

	fmt.Fprintf(os.Stderr, "flipbook %s serving %q on http://localhost:%d\n", Version, cfg.Book.Title, cfg.Server.Port)
	fmt.Fprintf(os.Stderr, "  Database: %s\n", database.Path())
	fmt.Fprintf(os.Stderr, "  Pages: %d (assets in %s)\n", cfg.Book.TotalPages, cfg.Book.AssetDir)
	if cfg.AI.ProxyURL != "" {
		fmt.Fprintf(os.Stderr, "  AI proxy: %s\n", cfg.AI.ProxyURL)
	}

	return srv.Run(ctx)
}

// mountProxy adds the built-in AI proxy endpoint and points the client at
// it when requested, or when no external proxy is configured and an LLM
// provider can be built from the environment.
func mountProxy(srv *server.Server, cfg *config.Config, log zerolog.Logger) error {
	if !serveProxy && cfg.AI.ProxyURL != "" {
		return nil
	}
	provider, err := llm.FromConfig(cfg.AI)
	if err != nil {
		if serveProxy {
			return fmt.Errorf("creating LLM provider: %w", err)
		}
		log.Warn().Err(err).Msg("no AI proxy configured, AI helper disabled")
		return nil
	}
	aiproxy.NewProxy(provider, log).RegisterRoutes(srv.Router())
	cfg.AI.ProxyURL = fmt.Sprintf("http://127.0.0.1:%d/api/ai/proxy", cfg.Server.Port)
	log.Info().Str("provider", provider.Name()).Msg("built-in AI proxy enabled")
	return nil
}
