package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/frontdesk/internal/api"
	"github.com/kalambet/frontdesk/internal/config"
	"github.com/kalambet/frontdesk/internal/kb"
	"github.com/kalambet/frontdesk/internal/proxy"
	"github.com/kalambet/frontdesk/internal/ranking"
	"github.com/kalambet/frontdesk/internal/resolver"
	"github.com/kalambet/frontdesk/internal/storage"
	"github.com/kalambet/frontdesk/internal/tenant"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send a message to a running server as a client's widget would",
	Long: `Send a message to a running server as a client's widget would.

Examples:
  frontdesk ask --client acme "Hva er åpningstidene deres?"
  frontdesk ask --client acme --origin https://acme.no "Do you deliver?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		slug, _ := cmd.Flags().GetString("client")
		origin, _ := cmd.Flags().GetString("origin")
		if slug == "" {
			return fmt.Errorf("--client is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		client.origin = origin

		return runAsk(cmd.Context(), client, slug, strings.Join(args, " "), os.Stdout)
	},
}

func init() {
	askCmd.Flags().String("client", "", "client slug")
	askCmd.Flags().String("origin", "", "Origin header to send")
}

// runAsk posts one chat message and prints the reply. Error replies are
// printed too, since they carry the localized text the widget would show.
func runAsk(ctx context.Context, client *apiClient, slug, message string, w io.Writer) error {
	resp, err := client.post(ctx, "/api/chat", api.ChatRequest{Client: slug, Message: message})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out api.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("server returned %d with an unreadable body: %w", resp.StatusCode, err)
	}

	fmt.Fprintln(w, out.Text)
	for _, s := range out.Suggestions {
		fmt.Fprintf(w, "  %s %s\n", colorize(colorCyan, "?"), s)
	}
	if out.Unsure && resp.StatusCode == http.StatusOK {
		printWarning("answer is marked unsure")
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, out.Error)
	}
	return nil
}

// --- rank ---

var rankCmd = &cobra.Command{
	Use:   "rank <query>",
	Short: "Rank a client's knowledge base against a query, without a server",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		slug, _ := cmd.Flags().GetString("client")
		limit, _ := cmd.Flags().GetInt("limit")
		if slug == "" {
			return fmt.Errorf("--client is required")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		r := resolver.New(resolver.Deps{
			Tenants: tenant.NewStaticHolder(tenant.Load(cfg.Registry.Path)),
			KB:      kb.NewStore(kb.DirSource{Dir: cfg.KB.Dir}, kb.DefaultTTL),
		})

		query := strings.Join(args, " ")
		ranked, err := r.Search(context.Background(), slug, query, limit)
		if err != nil {
			return err
		}
		printRanked(os.Stdout, query, ranked)
		return nil
	},
}

func init() {
	rankCmd.Flags().String("client", "", "client slug")
	rankCmd.Flags().Int("limit", 5, "maximum entries to show (0 for all matches)")
}

func printRanked(w io.Writer, query string, ranked []ranking.Ranked) {
	if len(ranked) == 0 {
		printWarning("no entries match %q", query)
		return
	}
	for i, r := range ranked {
		fmt.Fprintf(w, "%2d. [%d] %s\n", i+1, r.Score, colorize(colorBold, r.Question))
		fmt.Fprintf(w, "    %s\n", r.Answer)
	}
}

// --- check ---

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the provider API key and model",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.Proxy.APIKey == "" {
			printError("no provider API key configured")
			return fmt.Errorf("set FRONTDESK_OPENROUTER_API_KEY or add it to the secrets file")
		}

		client := proxy.NewClientWithBaseURL(cfg.Proxy.APIKey, cfg.Proxy.BaseURL).
			WithModel(cfg.Proxy.Model)
		printStep("Contacting %s", cfg.Proxy.BaseURL)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return runCheck(ctx, client, os.Stdout)
	},
}

// modelLister is the part of the provider client check needs.
type modelLister interface {
	ListModels(ctx context.Context) ([]proxy.Model, error)
	Model() string
}

func runCheck(ctx context.Context, client modelLister, w io.Writer) error {
	models, err := client.ListModels(ctx)
	if err != nil {
		var se *proxy.StatusError
		if errors.As(err, &se) && (se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden) {
			printError("provider rejected the API key (HTTP %d)", se.Status)
		}
		return fmt.Errorf("listing models: %w", err)
	}
	printSuccess("API key accepted (%s available)", countLabel(len(models), "model"))

	for _, m := range models {
		if m.ID == client.Model() {
			fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, "model:"), m.ID)
			return nil
		}
	}
	printWarning("configured model %q is not offered by the provider", client.Model())
	return nil
}

// --- usage ---

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Summarize recorded answers per client (sqlite usage backend)",
	RunE: func(cmd *cobra.Command, args []string) error {
		since, _ := cmd.Flags().GetDuration("since")
		slug, _ := cmd.Flags().GetString("client")
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if !strings.EqualFold(cfg.Usage.Backend, "sqlite") {
			printWarning("usage backend is %q; only the sqlite backend can be queried", cfg.Usage.Backend)
		}

		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		if slug != "" {
			rows, err := store.RecentUsage(tenant.NormalizeSlug(slug), limit)
			if err != nil {
				return err
			}
			printRecentUsage(os.Stdout, rows)
			return nil
		}

		totals, err := store.UsageByClient(time.Now().Add(-since))
		if err != nil {
			return err
		}
		printUsageTotals(os.Stdout, totals)
		return nil
	},
}

func init() {
	usageCmd.Flags().Duration("since", 30*24*time.Hour, "how far back to count")
	usageCmd.Flags().String("client", "", "show recent records for one client instead of totals")
	usageCmd.Flags().Int("limit", 20, "records to show with --client")
}

func printUsageTotals(w io.Writer, totals []storage.ClientUsage) {
	if len(totals) == 0 {
		printWarning("no usage recorded")
		return
	}
	fmt.Fprintf(w, "%-24s %8s %8s\n", "CLIENT", "KB", "LLM")
	for _, t := range totals {
		fmt.Fprintf(w, "%-24s %8d %8d\n", t.Client, t.KB, t.LLM)
	}
}

func printRecentUsage(w io.Writer, rows []storage.UsageRow) {
	if len(rows) == 0 {
		printWarning("no usage recorded")
		return
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s  %-3s  in=%-5d out=%-5d %s\n",
			r.CreatedAt.Local().Format(time.DateTime), r.Kind, r.InputLen, r.OutputLen, r.Origin)
	}
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		printConfig(os.Stdout, cfg)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:       "set <key> <value>",
	Short:     "Set a configuration value",
	Args:      cobra.ExactArgs(2),
	ValidArgs: config.ValidKeys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func printConfig(w io.Writer, cfg config.Config) {
	for _, k := range config.ShowAll(cfg) {
		fmt.Fprintf(w, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
	}
}
