package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/frontdesk/internal/access"
	"github.com/kalambet/frontdesk/internal/api"
	"github.com/kalambet/frontdesk/internal/config"
	"github.com/kalambet/frontdesk/internal/kb"
	"github.com/kalambet/frontdesk/internal/proxy"
	"github.com/kalambet/frontdesk/internal/resolver"
	"github.com/kalambet/frontdesk/internal/storage"
	"github.com/kalambet/frontdesk/internal/tenant"
	"github.com/kalambet/frontdesk/internal/usage"
)

const shutdownTimeout = 5 * time.Second

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the frontdesk server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running frontdesk server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show frontdesk status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "frontdesk.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// components is everything runServer wires together.
type components struct {
	holder   *tenant.Holder
	kb       *kb.Store
	llm      *proxy.Client
	usage    *usage.Async
	resolver *resolver.Resolver
	handler  http.Handler
	mcp      *server.MCPServer
	closers  []io.Closer
}

func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			slog.Warn("closing component", "error", err)
		}
	}
}

// openUsage returns the sink selected by cfg.Usage.Backend. The returned
// closer may be nil.
func openUsage(cfg config.Config) (usage.Recorder, io.Closer, error) {
	switch strings.ToLower(cfg.Usage.Backend) {
	case "", "file":
		f := usage.NewFileRecorder(cfg.Usage.Path)
		return f, f, nil
	case "sqlite":
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening storage: %w", err)
		}
		return usage.NewSQLiteRecorder(store), store, nil
	case "none":
		return usage.Nop{}, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown usage backend %q (want file, sqlite or none)", cfg.Usage.Backend)
	}
}

// build wires the service from cfg without starting anything that blocks.
func build(cfg config.Config) (*components, error) {
	c := &components{}

	c.holder = tenant.NewHolder(cfg.Registry.Path, config.Duration("registry.poll_interval", cfg.Registry.PollInterval, 1500*time.Millisecond))
	c.kb = kb.NewStore(kb.DirSource{Dir: cfg.KB.Dir}, config.Duration("kb.cache_ttl", cfg.KB.CacheTTL, kb.DefaultTTL))

	// Clients that vanish from the registry must not keep serving cached entries.
	c.holder.OnReload(func(old, next *tenant.Registry) {
		for _, slug := range old.Slugs() {
			if _, ok := next.Lookup(slug); !ok {
				c.kb.Invalidate(slug)
			}
		}
	})

	c.llm = proxy.NewClientWithBaseURL(cfg.Proxy.APIKey, cfg.Proxy.BaseURL).
		WithModel(cfg.Proxy.Model).
		WithTimeout(config.Duration("proxy.timeout", cfg.Proxy.Timeout, proxy.DefaultTimeout))

	rec, closer, err := openUsage(cfg)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		c.closers = append(c.closers, closer)
	}
	c.usage = usage.NewAsync(rec, 0)

	c.resolver = resolver.New(resolver.Deps{
		Tenants: c.holder,
		KB:      c.kb,
		LLM:     c.llm,
		Usage:   c.usage,
		Logger:  slog.Default(),
	})

	c.handler = api.NewHandler(api.Deps{
		Resolver: c.resolver,
		Tenants:  c.holder,
		Guard:    access.NewGuard(c.holder),
		Debug:    cfg.Server.Debug,
	})

	if cfg.MCP.Enabled {
		c.mcp = api.NewMCPServer(api.MCPDeps{Resolver: c.resolver, Tenants: c.holder})
	}

	return c, nil
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "frontdesk version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// stdout belongs to the MCP transport; logs go to stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.Log.Level)})))

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(serverURL(cfg.Server.Host, cfg.Server.Port) + "/health"); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("frontdesk is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("frontdesk is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	if cfg.Proxy.APIKey == "" {
		slog.Warn("no provider API key configured; only knowledge base answers are available")
	}

	c, err := build(cfg)
	if err != nil {
		return err
	}
	defer c.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           c.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "frontdesk listening on %s (%d clients)\n", addr, c.holder.Current().Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		c.holder.Watch(gctx)
		return nil
	})

	if c.mcp != nil {
		g.Go(func() error {
			slog.Info("MCP server started (stdio transport)")
			err := server.NewStdioServer(c.mcp).Listen(gctx, os.Stdin, os.Stdout)
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		if err := c.usage.Close(shutdownCtx); err != nil {
			slog.Warn("usage records lost on shutdown", "error", err)
		}
		if n := c.usage.Dropped(); n > 0 {
			slog.Warn("usage records dropped", "count", n)
		}
		return nil
	})

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("frontdesk is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop frontdesk (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to frontdesk (PID %d)", pid)
	return nil
}

// healthStatus is the body of GET /health.
type healthStatus struct {
	Status  string `json:"status"`
	Clients int    `json:"tenants"`
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &apiClient{
		baseURL:    serverURL(cfg.Server.Host, cfg.Server.Port),
		httpClient: &http.Client{Timeout: 2 * time.Second},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	resp, err := client.get(ctx, "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		var h healthStatus
		if err := decodeJSON(resp, &h); err != nil {
			printStatus("Server", "error (%v)", err)
		} else {
			printStatus("Server", "running on %s (%s)", client.baseURL, countLabel(h.Clients, "client"))
		}
	}

	reg := tenant.Load(cfg.Registry.Path)
	printStatus("Registry", "%s (%s)", cfg.Registry.Path, countLabel(reg.Len(), "client"))
	printStatus("KB dir", "%s", cfg.KB.Dir)
	printStatus("Model", "%s", cfg.Proxy.Model)
	if cfg.Proxy.APIKey != "" {
		printStatus("API key", "set")
	} else {
		printStatus("API key", "%s", colorize(colorYellow, "not set"))
	}
	printStatus("Usage", "%s", cfg.Usage.Backend)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

// countLabel formats n with a naive plural of noun.
func countLabel(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
