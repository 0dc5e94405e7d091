package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"eventcraft/internal/cache"
	"eventcraft/internal/database"
	"eventcraft/internal/models"
	"eventcraft/internal/providers"
	"eventcraft/internal/store"
)

// --- migrate ---

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		v, err := database.Version(db)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", v)
		return nil
	},
}

// --- providers ---

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect the configured image providers",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured providers in fallback order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		m, err := newManager(cfg, nil)
		if err != nil {
			return err
		}
		return printProviders(cmd.OutOrStdout(), m.Registry())
	},
}

var providersCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Ping every provider and report reachability",
	Long: `Ping every configured provider without generating anything. Exits
with an error when no provider is reachable.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		m, err := newManager(cfg, nil)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(commandContext(cmd), 30*time.Second)
		defer cancel()

		health := m.HealthCheck(ctx)
		if reachable := printHealth(cmd.OutOrStdout(), health); reachable == 0 {
			return fmt.Errorf("no provider is reachable")
		}
		return nil
	},
}

func printProviders(w io.Writer, reg *providers.Registry) error {
	ordered := reg.Ordered()
	if len(ordered) == 0 {
		fmt.Fprintln(w, "no providers configured (set IDEOGRAM_API_KEY, FAL_API_KEY or HUGGINGFACE_TOKEN)")
		return nil
	}

	defaultName := reg.DefaultName()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tMODEL\tDEFAULT\tASPECT RATIOS\tNEGATIVE\tSEED")
	for _, p := range ordered {
		caps := p.Capabilities()
		ratios := "any"
		if len(caps.AspectRatios) > 0 {
			ratios = strings.Join(caps.AspectRatios, ",")
		}
		def := ""
		if p.Name() == defaultName {
			def = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%t\n", p.Name(), p.Model(), def, ratios, caps.NegativePrompt, caps.Seed)
	}
	return tw.Flush()
}

// printHealth writes one line per provider and returns how many answered.
func printHealth(w io.Writer, health []providers.Health) int {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATUS\tCIRCUIT\tLATENCY\tERROR")

	reachable := 0
	for _, h := range health {
		latency, errText := "-", h.PingError
		if h.Reachable != nil && *h.Reachable {
			reachable++
			latency = strconv.FormatInt(h.PingMillis, 10) + "ms"
		}
		if errText == "" {
			errText = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", h.Name, h.Status, h.Circuit, latency, errText)
	}
	tw.Flush()
	return reachable
}

// --- users ---

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage users",
}

var (
	userName    string
	userRole    string
	userPlan    string
	userCredits int
	keyLabel    string
)

var usersCreateCmd = &cobra.Command{
	Use:   "create <email>",
	Short: "Create a user and print their first API key",
	Long: `Create a user with signup credits and issue an API key. The raw key
is printed once and cannot be recovered later.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.ToLower(strings.TrimSpace(args[0]))
		if !strings.Contains(email, "@") {
			return fmt.Errorf("invalid email %q", args[0])
		}
		role, err := parseRole(userRole)
		if err != nil {
			return err
		}
		plan, err := parsePlan(userPlan)
		if err != nil {
			return err
		}

		cfg, err := setup()
		if err != nil {
			return err
		}
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		credits := cfg.SignupCredits
		if cmd.Flags().Changed("credits") {
			credits = userCredits
		}
		if credits < 0 {
			return fmt.Errorf("credits must not be negative")
		}

		ctx := commandContext(cmd)
		users := store.NewUserStore(db)
		if existing, err := users.FindByEmail(ctx, email); err != nil {
			return err
		} else if existing != nil {
			return fmt.Errorf("user %s already exists", email)
		}

		u, err := users.Create(ctx, email, userName, role, plan, credits)
		if err != nil {
			return err
		}
		raw, _, err := store.NewAPIKeyStore(db).Create(ctx, u.ID, keyLabel)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "created %s user %s (%s), %d credits\n", u.Role, u.Email, u.ID, u.Credits)
		fmt.Fprintf(out, "api key: %s\n", raw)
		return nil
	},
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		users, err := store.NewUserStore(db).List(commandContext(cmd))
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tEMAIL\tROLE\tPLAN\tCREDITS\tCREATED")
		for _, u := range users {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", u.ID, u.Email, u.Role, u.Plan, u.Credits, u.CreatedAt.Format(time.DateOnly))
		}
		return tw.Flush()
	},
}

var usersPlanCmd = &cobra.Command{
	Use:   "plan <email> <free|pro>",
	Short: "Change a user's plan",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		plan, err := parsePlan(args[1])
		if err != nil {
			return err
		}
		cfg, err := setup()
		if err != nil {
			return err
		}
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := commandContext(cmd)
		users := store.NewUserStore(db)
		u, err := findUser(ctx, users, args[0])
		if err != nil {
			return err
		}
		if err := users.SetPlan(ctx, u.ID, plan); err != nil {
			return err
		}

		// Cached key resolutions carry the old plan.
		keyStore := store.NewAPIKeyStore(db)
		hashes, err := keyStore.ActiveHashes(ctx, u.ID)
		if err != nil {
			return err
		}
		if valkey := connectValkey(cfg); valkey != nil {
			cache.NewKeyCache(valkey, keyStore).Evict(ctx, hashes...)
			valkey.Close()
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now on the %s plan\n", u.Email, plan)
		return nil
	},
}

func parseRole(s string) (models.Role, error) {
	switch r := models.Role(strings.ToLower(s)); r {
	case models.RoleUser, models.RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("role must be user or admin, got %q", s)
	}
}

func parsePlan(s string) (models.Plan, error) {
	switch p := models.Plan(strings.ToLower(s)); p {
	case models.PlanFree, models.PlanPro:
		return p, nil
	default:
		return "", fmt.Errorf("plan must be free or pro, got %q", s)
	}
}

// findUser looks a user up by email and fails when there is none.
func findUser(ctx context.Context, users *store.UserStore, email string) (*models.User, error) {
	u, err := users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("no user with email %s", email)
	}
	return u, nil
}

// --- keys ---

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
}

var keysCreateCmd = &cobra.Command{
	Use:   "create <email>",
	Short: "Issue another API key for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := commandContext(cmd)
		u, err := findUser(ctx, store.NewUserStore(db), args[0])
		if err != nil {
			return err
		}
		raw, k, err := store.NewAPIKeyStore(db).Create(ctx, u.ID, keyLabel)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "key %s for %s\napi key: %s\n", k.ID, u.Email, raw)
		return nil
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list <email>",
	Short: "List a user's API keys",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := commandContext(cmd)
		u, err := findUser(ctx, store.NewUserStore(db), args[0])
		if err != nil {
			return err
		}
		keys, err := store.NewAPIKeyStore(db).ListByUser(ctx, u.ID)
		if err != nil {
			return err
		}
		printKeys(cmd.OutOrStdout(), keys)
		return nil
	},
}

var keysRevokeCmd = &cobra.Command{
	Use:   "revoke <email> <key-id>",
	Short: "Revoke an API key",
	Long: `Revoke an API key and drop its cached resolution from Valkey so it
stops working immediately.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		keyID, err := uuid.Parse(args[1])
		if err != nil {
			return fmt.Errorf("invalid key id %q", args[1])
		}
		cfg, err := setup()
		if err != nil {
			return err
		}
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := commandContext(cmd)
		u, err := findUser(ctx, store.NewUserStore(db), args[0])
		if err != nil {
			return err
		}
		keyStore := store.NewAPIKeyStore(db)
		hash, err := keyStore.Revoke(ctx, u.ID, keyID)
		if err != nil {
			return fmt.Errorf("revoke key %s: %w", keyID, err)
		}

		if valkey := connectValkey(cfg); valkey != nil {
			cache.NewKeyCache(valkey, keyStore).Evict(ctx, hash)
			valkey.Close()
		}
		fmt.Fprintf(cmd.OutOrStdout(), "revoked key %s\n", keyID)
		return nil
	},
}

func printKeys(w io.Writer, keys []models.APIKey) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tCREATED\tLAST USED\tSTATE")
	for _, k := range keys {
		lastUsed, state := "never", "active"
		if k.LastUsedAt != nil {
			lastUsed = k.LastUsedAt.Format(time.DateTime)
		}
		if k.RevokedAt != nil {
			state = "revoked"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", k.ID, k.Label, k.CreatedAt.Format(time.DateOnly), lastUsed, state)
	}
	tw.Flush()
}

// --- credits ---

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Inspect and adjust credit balances",
}

var grantReason string

var creditsGrantCmd = &cobra.Command{
	Use:   "grant <email> <amount>",
	Short: "Add credits to a user's balance",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.Atoi(args[1])
		if err != nil || amount <= 0 {
			return fmt.Errorf("amount must be a positive integer, got %q", args[1])
		}
		cfg, err := setup()
		if err != nil {
			return err
		}
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := commandContext(cmd)
		u, err := findUser(ctx, store.NewUserStore(db), args[0])
		if err != nil {
			return err
		}
		balance, err := store.NewCreditStore(db).Grant(ctx, u.ID, amount, grantReason)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "granted %d credits to %s, balance %d\n", amount, u.Email, balance)
		return nil
	},
}

var ledgerLimit int

var creditsShowCmd = &cobra.Command{
	Use:   "show <email>",
	Short: "Show a user's balance and recent ledger entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			return err
		}
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := commandContext(cmd)
		u, err := findUser(ctx, store.NewUserStore(db), args[0])
		if err != nil {
			return err
		}
		entries, err := store.NewCreditStore(db).Ledger(ctx, u.ID, ledgerLimit)
		if err != nil {
			return err
		}
		printLedger(cmd.OutOrStdout(), u, entries)
		return nil
	},
}

func printLedger(w io.Writer, u *models.User, entries []models.LedgerEntry) {
	fmt.Fprintf(w, "%s balance: %d\n", u.Email, u.Credits)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tDELTA\tBALANCE\tREASON")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%+d\t%d\t%s\n", e.CreatedAt.Format(time.DateTime), e.Delta, e.Balance, e.Reason)
	}
	tw.Flush()
}

func init() {
	providersCmd.AddCommand(providersListCmd, providersCheckCmd)

	usersCreateCmd.Flags().StringVar(&userName, "name", "", "Display name")
	usersCreateCmd.Flags().StringVar(&userRole, "role", string(models.RoleUser), "Role: user or admin")
	usersCreateCmd.Flags().StringVar(&userPlan, "plan", string(models.PlanFree), "Plan: free or pro")
	usersCreateCmd.Flags().IntVar(&userCredits, "credits", 0, "Starting credits (default SIGNUP_CREDITS)")
	usersCreateCmd.Flags().StringVar(&keyLabel, "label", "default", "Label for the API key")
	usersCmd.AddCommand(usersCreateCmd, usersListCmd, usersPlanCmd)

	keysCreateCmd.Flags().StringVar(&keyLabel, "label", "default", "Label for the API key")
	keysCmd.AddCommand(keysCreateCmd, keysListCmd, keysRevokeCmd)

	creditsGrantCmd.Flags().StringVar(&grantReason, "reason", models.ReasonGrant, "Ledger reason")
	creditsShowCmd.Flags().IntVar(&ledgerLimit, "limit", 20, "Ledger entries to show")
	creditsCmd.AddCommand(creditsGrantCmd, creditsShowCmd)
}
