package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/example/gov-agenda/internal/authz"
	"github.com/example/gov-agenda/internal/ical"
	"github.com/example/gov-agenda/internal/persistence/sqlite"
	"github.com/example/gov-agenda/internal/scheduler"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Applique les migrations du schéma SQLite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}

			storage, err := sqlite.Open(cmd.Context(), cfg.SQLiteDSN, logger)
			if err != nil {
				return err
			}
			defer storage.Close()

			if !statusOnly {
				if err := storage.Migrate(cmd.Context()); err != nil {
					return err
				}
			}

			status, err := storage.MigrationStatus(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(opts.stdout, "version courante: %s\n", valueOr(status.CurrentVersion, "aucune"))
			fmt.Fprintf(opts.stdout, "migrations appliquées: %d, en attente: %d\n", len(status.Applied), len(status.Pending))
			for _, m := range status.Pending {
				fmt.Fprintf(opts.stdout, "  en attente %s %s\n", m.Version, m.Description)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "only report the migration state")
	return cmd
}

func newRolesCmd(opts *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Affiche la table des rôles et permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeRoles(opts.stdout, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "table", "output format: table or yaml")
	return cmd
}

func writeRoles(w io.Writer, format string) error {
	table := authz.Table()
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(table); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RÔLE\tRESSOURCE\tACTIONS\tTABLEAU DE BORD")
		for _, cfg := range table {
			for i, p := range cfg.Permissions {
				role, dashboard := string(cfg.Role), cfg.DashboardPath
				if i > 0 {
					role, dashboard = "", ""
				}
				actions := make([]string, 0, len(p.Actions))
				for _, a := range p.Actions {
					actions = append(actions, string(a))
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", role, p.Resource, strings.Join(actions, ","), dashboard)
			}
		}
		return tw.Flush()
	default:
		return fmt.Errorf("format %q non pris en charge: utiliser table ou yaml", format)
	}
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var (
		icsPath string
		day     string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Détecte les conflits d'un fichier iCalendar sans base de données",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}

			f, err := os.Open(icsPath)
			if err != nil {
				return err
			}
			defer f.Close()

			conflicts, err := checkCalendar(opts.stdout, f, day, cfg.Location)
			if err != nil {
				return err
			}
			if conflicts > 0 {
				return fmt.Errorf("%d conflit(s) détecté(s)", conflicts)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&icsPath, "ics", "", "iCalendar file to check")
	cmd.Flags().StringVar(&day, "day", "", "restrict the check to one day (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("ics")
	return cmd
}

// checkCalendar prints the conflicts among the VEVENTs of r and returns how
// many were found. VEVENTs that cannot be read are reported and skipped.
func checkCalendar(w io.Writer, r io.Reader, day string, loc *time.Location) (int, error) {
	result, err := ical.Parse(r, loc)
	if err != nil {
		return 0, err
	}
	for _, p := range result.Problems {
		fmt.Fprintf(w, "ignoré %s: %v\n", valueOr(p.UID, "(sans UID)"), p.Err)
	}

	events := ical.Events(result.Entries)
	if day != "" {
		from, err := time.ParseInLocation(time.DateOnly, day, loc)
		if err != nil {
			return 0, fmt.Errorf("jour %q invalide: %w", day, err)
		}
		window, err := scheduler.NewInterval(from, from.AddDate(0, 0, 1))
		if err != nil {
			return 0, err
		}
		events = scheduler.ConflictsWith(events, window, 0)
	}

	conflicts := scheduler.DetectConflicts(events)
	fmt.Fprintf(w, "%d événement(s), %d conflit(s)\n", len(events), len(conflicts))
	for _, c := range conflicts {
		fmt.Fprintf(w, "  %q et %q se chevauchent de %s à %s (%d min)\n",
			c.First.Title, c.Second.Title,
			c.OverlapStart.In(loc).Format("2006-01-02 15:04"),
			c.OverlapEnd.In(loc).Format("15:04"),
			c.OverlapMinutes,
		)
	}
	return len(conflicts), nil
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
