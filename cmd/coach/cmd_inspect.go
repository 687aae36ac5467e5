package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/strum-coach/internal/logging"
)

type inspectOutput struct {
	Takes     []logging.TakeRecord     `json:"takes,omitempty"`
	Decisions []logging.DecisionRecord `json:"decisions,omitempty"`
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List recorded takes and gate decisions",
		Long: `Inspect reads the provenance database written by "coach replay --db".

Example:
  coach inspect --db coach.db --session 3f2a --decisions`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dbPath, _ := cmd.Flags().GetString("db")
			if dbPath == "" {
				dbPath = cfg.DBPath
			}
			if dbPath == "" {
				return usageError{errors.New("inspect needs --db or db_path in the config")}
			}
			session, _ := cmd.Flags().GetString("session")
			withDecisions, _ := cmd.Flags().GetBool("decisions")

			store, err := logging.NewStore(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			var out inspectOutput
			if out.Takes, err = store.ListTakes(session); err != nil {
				return err
			}
			if withDecisions {
				if out.Decisions, err = store.ListDecisions(session); err != nil {
					return err
				}
			}

			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			printInspect(cmd.OutOrStdout(), out, withDecisions)
			return nil
		},
	}
	cmd.Flags().String("db", "", "Provenance database (default: db_path from config)")
	cmd.Flags().String("session", "", "Only show one session")
	cmd.Flags().Bool("decisions", false, "Also list gate decisions")
	return cmd
}

func printInspect(w io.Writer, out inspectOutput, withDecisions bool) {
	if len(out.Takes) == 0 {
		fmt.Fprintln(w, "no takes recorded")
	} else {
		t := &table{header: []string{"Session", "Take", "Reason", "Objective", "Intent", "Hotspot", "Analyzed", "Rationale", "Time"}, max: 40}
		for _, r := range out.Takes {
			t.add(shortID(r.SessionID), fmt.Sprint(r.TakeID), r.Reason, r.Objective, r.Intent,
				orDash(r.Hotspot), fmt.Sprint(r.Analyzed), r.Rationale, r.CreatedAt.Format("2006-01-02T15:04:05Z"))
		}
		t.write(w)
	}
	if !withDecisions {
		return
	}
	fmt.Fprintln(w)
	if len(out.Decisions) == 0 {
		fmt.Fprintln(w, "no decisions recorded")
		return
	}
	t := &table{header: []string{"Session", "At ms", "Mode", "Backoff", "Initiate", "Reason", "Modality", "Pulses"}}
	for _, r := range out.Decisions {
		t.add(shortID(r.SessionID), fmt.Sprintf("%.0f", r.AtMs), r.Mode, r.Backoff, fmt.Sprint(r.Initiate),
			r.Reason, orDash(r.Modality), fmt.Sprint(r.PulseCount))
	}
	t.write(w)
}
