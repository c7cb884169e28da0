package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"interninsight/match-service/internal/scheduler"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the Postgres schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, log, err := open(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		defer log.Sync()

		if err := a.Postgres.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.Info("schema applied")
		return nil
	},
}

var rebuildProfileCmd = &cobra.Command{
	Use:   "rebuild-profile <candidate-id>...",
	Short: "Rebuild preference profiles from recorded interactions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := open(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		defer log.Sync()

		for _, id := range args {
			p, err := a.Profiles.RebuildAndSave(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("rebuild profile %s: %w", id, err)
			}
			if err := printJSON(cmd, p); err != nil {
				return err
			}
		}
		return nil
	},
}

var rebuildReputationCmd = &cobra.Command{
	Use:   "rebuild-reputation <company-id>...",
	Short: "Rebuild company reputation scores",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := open(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		defer log.Sync()

		for _, id := range args {
			r, err := a.Reputation.RebuildAndSave(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("rebuild reputation %s: %w", id, err)
			}
			if err := printJSON(cmd, r); err != nil {
				return err
			}
		}
		return nil
	},
}

var recalcAll bool

var recalculateCmd = &cobra.Command{
	Use:   "recalculate [company-id]...",
	Short: "Recompute cached match scores for companies",
	Long:  "Recompute every cached match score of the named companies, or of every company with cached scores when --all is set.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if recalcAll == (len(args) > 0) {
			return errors.New("pass company ids or --all, not both")
		}
		a, log, err := open(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		defer log.Sync()

		if recalcAll {
			n := scheduler.New(a.Store, a.Scores, "", log).Sweep(cmd.Context())
			return printJSON(cmd, map[string]int{"updated": n})
		}

		total := 0
		for _, id := range args {
			n, err := a.Scores.RecalculateAllUsersForCompany(cmd.Context(), id)
			total += n
			if err != nil {
				return fmt.Errorf("recalculate %s: %w", id, err)
			}
		}
		return printJSON(cmd, map[string]int{"updated": total})
	},
}

var scoreSave bool

var scoreCmd = &cobra.Command{
	Use:   "score <candidate-id> <company-id>",
	Short: "Compute one candidate × company match score",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := open(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		defer log.Sync()

		e, err := a.Scores.Calculate(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		if scoreSave {
			if err := a.Scores.Save(cmd.Context(), *e); err != nil {
				return err
			}
		}
		return printJSON(cmd, e)
	},
}

func init() {
	recalculateCmd.Flags().BoolVar(&recalcAll, "all", false, "Recompute every company with cached scores")
	scoreCmd.Flags().BoolVar(&scoreSave, "save", false, "Write the computed entry to the match-score cache")

	rootCmd.AddCommand(migrateCmd, rebuildProfileCmd, rebuildReputationCmd, recalculateCmd, scoreCmd)
}
