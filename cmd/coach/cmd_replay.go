package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/strum-coach/internal/config"
	"github.com/danielpatrickdp/strum-coach/internal/enhance"
	"github.com/danielpatrickdp/strum-coach/internal/exercise"
	"github.com/danielpatrickdp/strum-coach/internal/guidance"
	"github.com/danielpatrickdp/strum-coach/internal/logging"
	"github.com/danielpatrickdp/strum-coach/internal/replay"
)

// replayOutput is the --json form of a replay.
type replayOutput struct {
	Run         *replay.Run             `json:"run"`
	Summary     replay.Summary          `json:"summary"`
	Divergences []replay.Divergence     `json:"divergences"`
	Hints       map[uint64]enhance.Hint `json:"hints,omitempty"`
}

func newReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay FIXTURE",
		Short: "Replay a recorded session fixture and compare against its expectations",
		Long: `Replay runs every step of a fixture through a fresh session and checks the
resolved objectives and gate decisions the fixture expects. Exits 1 when the
run diverges.

Example:
  coach replay internal/replay/testdata/two_takes.json --db coach.db`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if v, _ := cmd.Flags().GetString("db"); v != "" {
				cfg.DBPath = v
			}
			if v, _ := cmd.Flags().GetString("enhance-addr"); v != "" {
				cfg.Enhance.Addr = v
			}
			if v, _ := cmd.Flags().GetString("policy"); v != "" {
				cfg.PolicyPath = v
			}
			if v, _ := cmd.Flags().GetString("pack"); v != "" {
				cfg.PackPath = v
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log, err := logging.New(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			f, err := replay.LoadFixture(args[0])
			if err != nil {
				return err
			}
			opts := replay.Options{Logger: log}
			if cfg.PolicyPath != "" {
				p, err := guidance.LoadPolicyConfig(cfg.PolicyPath)
				if err != nil {
					return err
				}
				opts.Policy = &p
			}
			if cfg.PackPath != "" && f.Accents == nil {
				pack, err := exercise.LoadGroovePack(cfg.PackPath)
				if err != nil {
					return err
				}
				f.Accents = pack.Accents()
			}

			run, err := replay.Replay(f, opts)
			if err != nil {
				return err
			}
			if cfg.DBPath != "" {
				if err := persistRun(cfg.DBPath, run); err != nil {
					return err
				}
				log.Info("run persisted", "db", cfg.DBPath, "session", run.SessionID)
			}
			var hints map[uint64]enhance.Hint
			if cfg.Enhance.Addr != "" {
				hints = enhanceRun(cmd.Context(), cfg.Enhance, run, log)
			}

			out := replayOutput{Run: run, Summary: replay.Summarize(run), Divergences: replay.Compare(f, run), Hints: hints}
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
					return err
				}
			} else {
				printReplay(cmd.OutOrStdout(), out)
			}
			if n := len(out.Divergences); n > 0 {
				return fmt.Errorf("%w: %d divergences", errDiverged, n)
			}
			return nil
		},
	}
	cmd.Flags().String("db", "", "Provenance database to record the run in")
	cmd.Flags().String("enhance-addr", "", "Enhancement service address (host:port)")
	cmd.Flags().String("policy", "", "Policy matrix YAML (default: built-in)")
	cmd.Flags().String("pack", "", "Groove pack supplying cue accents")
	return cmd
}

// #region persist

// persistRun writes every resolved take and gate decision of a run.
func persistRun(path string, run *replay.Run) error {
	store, err := logging.NewStore(path)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, st := range run.Steps {
		for _, oc := range st.Outcomes {
			rec, err := logging.NewTakeRecord(run.SessionID, oc)
			if err != nil {
				return err
			}
			if err := store.LogTake(rec); err != nil {
				return err
			}
		}
		if st.Intervention != nil {
			rec, err := logging.NewDecisionRecord(run.SessionID, *st.Intervention)
			if err != nil {
				return err
			}
			if err := store.LogDecision(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// #endregion persist

// #region enhance

// enhanceRun asks the enhancement service for a hint per take. Failures only log.
func enhanceRun(ctx context.Context, cfg config.EnhanceConfig, run *replay.Run, log *slog.Logger) map[uint64]enhance.Hint {
	client, err := enhance.NewClient(cfg.Addr, time.Duration(cfg.TimeoutMs)*time.Millisecond)
	if err != nil {
		log.Warn("enhancement unavailable", "addr", cfg.Addr, "err", err)
		return nil
	}
	defer client.Close()

	hints := make(map[uint64]enhance.Hint)
	for _, st := range run.Steps {
		for _, oc := range st.Outcomes {
			h, err := client.Enhance(ctx, enhance.RequestFrom(run.SessionID, oc))
			if err != nil {
				log.Warn("enhancement skipped", "take", oc.Finalized.TakeID, "err", err)
				continue
			}
			hints[oc.Finalized.TakeID] = h
		}
	}
	return hints
}

// #endregion enhance

// #region print

func printReplay(w io.Writer, out replayOutput) {
	s := out.Summary
	fmt.Fprintf(w, "Replay:   %s\n", out.Run.Description)
	fmt.Fprintf(w, "Session:  %s\n", out.Run.SessionID)
	fmt.Fprintf(w, "Steps: %d  Takes: %d (%d analyzed)  Decisions: %d (%d approved, %d denied)  Check failures: %d  Errors: %d\n\n",
		s.Steps, s.Takes, s.Analyzed, s.Decisions, s.Approved, s.Denied, s.CheckFailures, s.Errors)

	takes := &table{header: []string{"Take", "Reason", "Objective", "Intent", "Hint", "Rationale"}, max: 48}
	decisions := &table{header: []string{"Step", "At ms", "Mode", "Backoff", "Initiate", "Reason", "Modality", "Pulses"}}
	for _, st := range out.Run.Steps {
		for _, oc := range st.Outcomes {
			takes.add(
				fmt.Sprint(oc.Finalized.TakeID),
				string(oc.Finalized.Reason),
				oc.Resolution.Objective.String(),
				oc.Resolution.Intent.String(),
				orDash(out.Hints[oc.Finalized.TakeID].Text),
				oc.Resolution.Rationale,
			)
		}
		if iv := st.Intervention; iv != nil {
			pulses := "—"
			if iv.Envelope != nil {
				pulses = fmt.Sprint(len(iv.Envelope.Events))
			}
			decisions.add(
				fmt.Sprint(st.Index),
				fmt.Sprintf("%.0f", st.AtMs),
				string(iv.Decision.Mode),
				iv.Decision.Backoff.String(),
				fmt.Sprint(iv.Decision.ShouldInitiate),
				string(iv.Decision.Reason),
				orDash(string(iv.Decision.Modality)),
				pulses,
			)
		}
	}
	if len(takes.rows) > 0 {
		takes.write(w)
		fmt.Fprintln(w)
	}
	if len(decisions.rows) > 0 {
		decisions.write(w)
		fmt.Fprintln(w)
	}

	if len(out.Divergences) == 0 {
		fmt.Fprintln(w, "Divergences: none")
		return
	}
	fmt.Fprintf(w, "Divergences (%d):\n", len(out.Divergences))
	for _, d := range out.Divergences {
		fmt.Fprintf(w, "  %s\n", d)
	}
}

// #endregion print
