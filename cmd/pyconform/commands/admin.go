package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/codewithboateng/pyconform/internal/ir"
	"github.com/codewithboateng/pyconform/internal/rules"
	"github.com/codewithboateng/pyconform/internal/security"
	"github.com/codewithboateng/pyconform/internal/storage"
)

func (a *app) rulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the rule table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enabled := map[string]bool{}
			for _, r := range rules.List() {
				enabled[r.ID] = true
			}
			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("ID", "SEVERITY", "ENABLED", "SUMMARY")
			for _, r := range rules.All() {
				t.Row(r.ID, r.Severity, strconv.FormatBool(enabled[r.ID]), r.Summary)
			}
			fmt.Fprintln(a.stdout, t.Render())
			fmt.Fprintf(a.stdout, "severity threshold: %s\n", rules.CurrentSettings().SeverityThreshold)
			return nil
		},
	}
}

func (a *app) waiverCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "waiver",
		Short: "Manage waivers that silence matching violations",
	}
	addDBFlag(cmd.PersistentFlags(), &dbPath)

	var rule, glob, pattern, reason, expires, by string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a waiver",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rule == "" || reason == "" {
				return usageErr("waiver add: --rule and --reason are required")
			}
			if _, ok := rules.Get(rule); !ok {
				return usageErr("waiver add: unknown rule %q", rule)
			}
			exp, err := parseExpiry(expires, time.Now())
			if err != nil {
				return usageErr("waiver add: %v", err)
			}
			db, err := a.openDB(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			id, err := db.CreateWaiver(rule, glob, pattern, reason, by, exp)
			if err != nil {
				return fmt.Errorf("create waiver: %w", err)
			}
			_ = db.LogAudit(by, "waiver:create", "", map[string]any{"id": id, "rule": rule})
			fmt.Fprintf(a.stdout, "waiver %d created (expires %s)\n", id, exp.Format(time.RFC3339))
			return nil
		},
	}
	add.Flags().StringVar(&rule, "rule", "", "rule ID to waive")
	add.Flags().StringVar(&glob, "path", "", "glob matched against the file path or its base name")
	add.Flags().StringVar(&pattern, "pattern", "", "substring of the evidence or message")
	add.Flags().StringVar(&reason, "reason", "", "why the violation is accepted")
	add.Flags().StringVar(&expires, "expires", "720h", "RFC3339 time, YYYY-MM-DD date or duration from now")
	add.Flags().StringVar(&by, "by", currentUser(), "who creates the waiver")

	var active bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List waivers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.openDB(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			ws, err := db.ListWaivers(active)
			if err != nil {
				return err
			}
			t := table.New().
				Border(lipgloss.NormalBorder()).
				Headers("ID", "RULE", "PATH", "PATTERN", "EXPIRES", "STATUS", "REASON")
			now := time.Now()
			for _, w := range ws {
				status := "active"
				switch {
				case w.RevokedAt != nil:
					status = "revoked"
				case !w.ExpiresAt.After(now):
					status = "expired"
				}
				t.Row(strconv.FormatInt(w.ID, 10), w.RuleID, w.PathGlob, w.PatternSub,
					w.ExpiresAt.Format("2006-01-02"), status, w.Reason)
			}
			fmt.Fprintln(a.stdout, t.Render())
			return nil
		},
	}
	list.Flags().BoolVar(&active, "active", false, "only unexpired, unrevoked waivers")

	var revokedBy string
	revoke := &cobra.Command{
		Use:   "revoke ID",
		Short: "Revoke a waiver",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return usageErr("waiver revoke: invalid id %q", args[0])
			}
			db, err := a.openDB(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.RevokeWaiver(id, revokedBy); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "waiver %d revoked\n", id)
			return nil
		},
	}
	revoke.Flags().StringVar(&revokedBy, "by", currentUser(), "who revokes the waiver")

	cmd.AddCommand(add, list, revoke)
	return cmd
}

// parseExpiry accepts an RFC3339 time, a date or a duration from now.
func parseExpiry(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return now.Add(d), nil
	}
	return time.Time{}, fmt.Errorf("bad expiry %q", s)
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

func (a *app) userCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage API users",
	}
	addDBFlag(cmd.PersistentFlags(), &dbPath)

	var username, password, role string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create an API user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv("PYCONFORM_PASSWORD")
			}
			if username == "" || password == "" {
				return usageErr("user add: --username and --password (or PYCONFORM_PASSWORD) are required")
			}
			role, err := storage.ValidRole(role)
			if err != nil {
				return usageErr("user add: %v", err)
			}
			hash, err := security.HashPassword(password)
			if err != nil {
				return err
			}
			db, err := a.openDB(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()
			id, err := db.CreateUser(username, hash, role)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "user %s (%s) created with id %d\n", username, role, id)
			return nil
		},
	}
	add.Flags().StringVar(&username, "username", "", "login name")
	add.Flags().StringVar(&password, "password", "", "password")
	add.Flags().StringVar(&role, "role", storage.RoleViewer, "admin|viewer")
	cmd.AddCommand(add)
	return cmd
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(a.stdout, "pyconform %s (run schema %s)\n", Version, ir.Version)
			return err
		},
	}
}
