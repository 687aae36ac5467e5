package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/strum-coach/internal/eval"
	"github.com/danielpatrickdp/strum-coach/internal/exercise"
	"github.com/danielpatrickdp/strum-coach/internal/guidance"
	"github.com/danielpatrickdp/strum-coach/internal/renderer"
)

type scheduleOutput struct {
	Pack     string                  `json:"pack,omitempty"`
	Context  renderer.MusicalContext `json:"context"`
	Payload  renderer.PulsePayload   `json:"payload"`
	Envelope renderer.Envelope       `json:"envelope"`
	Check    eval.Result             `json:"check"`
}

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the pulse envelope of a cue on a given grid",
		Long: `Schedule quantizes a cue window onto a tempo grid and prints every pulse.

A groove pack (--pack) or one pack of a pack set (--pack-set, --pack-id) supplies
the meter, subdivision, start tempo and accents. Set members are read from
<pack-dir>/<pack_id>.yaml; pack-dir defaults to the set file's directory.

Example:
  coach schedule --tempo 80 --meter 4/4 --subdivision 2 --start 11000 --bars 2 --grid-start 3000
  coach schedule --pack-set packs/groove_foundations_v1.yaml --pack-id rock_straight_v1 --start 4000`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			tempo, _ := flags.GetFloat64("tempo")
			meterStr, _ := flags.GetString("meter")
			spb, _ := flags.GetInt("subdivision")
			gridStart, _ := flags.GetFloat64("grid-start")
			start, _ := flags.GetFloat64("start")
			end, _ := flags.GetFloat64("end")
			bars, _ := flags.GetInt("bars")
			maxSnap, _ := flags.GetFloat64("max-snap")
			gain, _ := flags.GetFloat64("gain")
			modality, _ := flags.GetString("modality")
			suppress, _ := flags.GetIntSlice("suppress")
			accents, _ := flags.GetFloat64Slice("accent")
			packPath, _ := flags.GetString("pack")
			setPath, _ := flags.GetString("pack-set")
			packID, _ := flags.GetString("pack-id")
			packDir, _ := flags.GetString("pack-dir")

			meter, err := exercise.ParseMeter(meterStr)
			if err != nil {
				return usageError{err}
			}
			mc := renderer.MusicalContext{TempoBPM: tempo, Meter: meter, SlotsPerBeat: spb, GridStartMs: gridStart}
			var packName string
			if packPath != "" && setPath != "" {
				return usageError{errors.New("--pack and --pack-set are mutually exclusive")}
			}
			if packPath != "" || setPath != "" {
				var pack exercise.GroovePack
				var d exercise.AssignmentDefaults
				if setPath != "" {
					b, err := packFromSet(setPath, packDir, packID)
					if err != nil {
						return err
					}
					pack, d = b.Pack, b.Defaults
				} else {
					pack, err = exercise.LoadGroovePack(packPath)
					if err != nil {
						return err
					}
					d = pack.Defaults()
				}
				packName = pack.Metadata.ID
				if !flags.Changed("tempo") {
					mc.TempoBPM = d.TempoStartBPM
				}
				mc.Meter, mc.SlotsPerBeat = d.Meter, d.SlotsPerBeat
				if len(accents) == 0 {
					accents = renderer.AccentsFromPack(pack)
				}
			}
			if mc.TempoBPM <= 0 || mc.SlotsPerBeat <= 0 {
				return usageError{fmt.Errorf("tempo and subdivision must be positive")}
			}
			if !flags.Changed("end") {
				end = start + float64(bars*mc.SlotsPerBar())*mc.SlotMs()
			}

			p := renderer.PulsePayload{
				Modality:        guidance.Modality(modality),
				StartMs:         start,
				EndMs:           end,
				PhaseAnchorMs:   gridStart,
				MaxSnapMs:       maxSnap,
				BaseGain:        gain,
				AccentGains:     accents,
				SuppressedSlots: suppress,
			}
			env, err := renderer.Schedule(p, mc)
			if err != nil {
				return err
			}
			out := scheduleOutput{Pack: packName, Context: mc, Payload: p, Envelope: env, Check: eval.NewHarness().CheckEnvelope(env, p, mc)}

			jsonOut, _ := flags.GetBool("json")
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			printSchedule(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().Float64("tempo", 80, "Tempo in BPM")
	cmd.Flags().String("meter", "4/4", "Time signature")
	cmd.Flags().Int("subdivision", 2, "Grid slots per beat")
	cmd.Flags().Float64("grid-start", 0, "Time of bar 0, slot 0 (ms)")
	cmd.Flags().Float64("start", 0, "Requested cue start (ms)")
	cmd.Flags().Float64("end", 0, "Cue end, exclusive (ms); overrides --bars")
	cmd.Flags().Int("bars", 1, "Cue length in bars when --end is not given")
	cmd.Flags().Float64("max-snap", 80, "Snap tolerance (ms)")
	cmd.Flags().Float64("gain", 0.8, "Base gain")
	cmd.Flags().String("modality", string(guidance.ModalityHaptic), "Cue modality")
	cmd.Flags().IntSlice("suppress", nil, "Slots in bar to leave silent")
	cmd.Flags().Float64Slice("accent", nil, "Per-slot accent gains")
	cmd.Flags().String("pack", "", "Groove pack for meter, subdivision, tempo and accents")
	cmd.Flags().String("pack-set", "", "Groove pack set to pick the pack from")
	cmd.Flags().String("pack-id", "", "Pack of --pack-set to use (default: the first)")
	cmd.Flags().String("pack-dir", "", "Directory holding the set's packs (default: the set's directory)")
	return cmd
}

// packFromSet loads a pack set, checks every reference and returns the chosen pack's binding.
func packFromSet(setPath, packDir, packID string) (exercise.PackBinding, error) {
	set, err := exercise.LoadGroovePackSet(setPath)
	if err != nil {
		return exercise.PackBinding{}, err
	}
	if packDir == "" {
		packDir = filepath.Dir(setPath)
	}
	src := exercise.PackDir(packDir)
	if err := set.ValidateReferences(src); err != nil {
		return exercise.PackBinding{}, fmt.Errorf("pack set %s: %w", set.ID, err)
	}
	defaults, err := exercise.DefaultsForSet(set, src)
	if err != nil {
		return exercise.PackBinding{}, err
	}
	if packID == "" {
		return defaults.Packs[0], nil
	}
	b, ok := defaults.Binding(packID)
	if !ok {
		return exercise.PackBinding{}, usageError{fmt.Errorf("pack set %s has no pack %s (have %s)",
			set.ID, packID, strings.Join(set.PackIDs(), ", "))}
	}
	return b, nil
}

func printSchedule(w io.Writer, out scheduleOutput) {
	env := out.Envelope
	if out.Pack != "" {
		fmt.Fprintf(w, "Pack:     %s\n", out.Pack)
	}
	fmt.Fprintf(w, "Grid:     %.1f BPM %d/%d, %d slots/beat, slot %.1f ms, bar 0 at %.0f ms\n",
		out.Context.TempoBPM, out.Context.Meter.BeatsPerBar, out.Context.Meter.BeatUnit,
		out.Context.SlotsPerBeat, env.SlotMs, out.Context.GridStartMs)
	fmt.Fprintf(w, "Start:    %.1f -> %.1f ms (%s)\n", env.RequestedStartMs, env.QuantizedStartMs, env.Snap)
	fmt.Fprintf(w, "Pulses:   %d (%s)\n\n", len(env.Events), orDash(string(env.Modality)))

	t := &table{header: []string{"Time ms", "Bar", "Slot", "Gain", "Accent"}}
	for _, e := range env.Events {
		accent := ""
		if e.Accented {
			accent = ">"
		}
		t.add(fmt.Sprintf("%.1f", e.TimeMs), fmt.Sprint(e.BarIndex), fmt.Sprint(e.SlotInBar), fmt.Sprintf("%.3f", e.Gain), accent)
	}
	if len(t.rows) > 0 {
		t.write(w)
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Checks:   %s\n", out.Check.Reason)
}
