// cmd/txpipe/journal.go
package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/altuslabsxyz/txpipe/internal/journal"
	"github.com/altuslabsxyz/txpipe/internal/output"
	"github.com/altuslabsxyz/txpipe/pkg/network"
)

func newJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect recorded send attempts",
	}

	cmd.AddCommand(
		newJournalListCmd(),
		newJournalShowCmd(),
	)

	return cmd
}

func openJournal() (*journal.BoltJournal, error) {
	if !cfg.Journal.Enabled {
		return nil, &network.ConfigError{Field: "journal.enabled", Message: "the journal is disabled"}
	}
	return journal.OpenBolt(cfg.Journal.Path)
}

func newJournalListCmd() *cobra.Command {
	var (
		state string
		limit int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List send attempts, newest first",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal()
			if err != nil {
				return err
			}
			defer j.Close()

			records, err := j.List(cmd.Context(), journal.ListOptions{State: state, Limit: limit})
			if err != nil {
				return err
			}

			logger := output.DefaultLogger
			if logger.IsJSONMode() {
				return logger.JSON(records)
			}
			if len(records) == 0 {
				logger.Println("No attempts found")
				return nil
			}

			w := tabwriter.NewWriter(logger.Writer(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tSTATE\tAMOUNT\tRECIPIENT\tTX_HASH")
			for _, rec := range records {
				hash := rec.TxHash
				if len(hash) > 16 {
					hash = hash[:16] + "..."
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s%s\t%s\t%s\n",
					rec.ID, rec.CreatedAt.Local().Format(time.DateTime), rec.State,
					rec.Amount, rec.Denom, rec.Recipient, hash)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "Only show attempts in this state")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of attempts (0 = all)")

	return cmd
}

func newJournalShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <attempt-id|tx-hash>",
		Short: "Show one send attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal()
			if err != nil {
				return err
			}
			defer j.Close()

			rec, err := j.Get(cmd.Context(), args[0])
			if journal.IsNotFound(err) {
				rec, err = j.FindByHash(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}

			logger := output.DefaultLogger
			if logger.IsJSONMode() {
				return logger.JSON(rec)
			}
			data, err := yaml.Marshal(rec)
			if err != nil {
				return err
			}
			logger.Print("%s", data)
			return nil
		},
	}
	return cmd
}
