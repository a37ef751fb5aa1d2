package cmd

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/schedsim/schedsim/sim/checksum"
	"github.com/schedsim/schedsim/sim/cmdlog"
	"github.com/schedsim/schedsim/sim/export"
	"github.com/schedsim/schedsim/sim/notify"
	"github.com/schedsim/schedsim/sim/replay"
)

var (
	recordingPath string // Recording YAML file
	dbPath        string // SQLite command log
	recordingID   string // Recording id inside the command log
	describe      bool   // Print the checksum description
)

// ErrDiverged is returned by replay when any step did not reproduce.
var ErrDiverged = errors.New("replay diverged from recording")

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Apply a command stream and record the checksum after each command",
	RunE: func(cmd *cobra.Command, args []string) error {
		if recordingPath == "" && dbPath == "" {
			return errors.New("record needs --out or --db")
		}
		cfg, err := loadEngineConfig()
		if err != nil {
			return err
		}
		e, err := newEngine(cfg, notify.Nop{})
		if err != nil {
			return err
		}
		cmds, err := loadCommands(commandsPath)
		if err != nil {
			return err
		}
		rec, err := replay.Record(cmd.Context(), e, cmds)
		if err != nil {
			return err
		}
		if recordingPath != "" {
			if err := replay.Save(recordingPath, rec); err != nil {
				return err
			}
		}
		if dbPath != "" {
			store, err := cmdlog.Open(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Save(cmd.Context(), rec); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "recorded %d commands as %s\n", len(rec.Steps), rec.ID)
		return nil
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a recording against a fresh scenario and compare checksums",
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := loadRecording(cmd)
		if err != nil {
			return err
		}
		cfg, err := loadEngineConfig()
		if err != nil {
			return err
		}
		e, err := newEngine(cfg, notify.Nop{})
		if err != nil {
			return err
		}
		mismatches, err := replay.Verify(cmd.Context(), e, rec)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, m := range mismatches {
			fmt.Fprintln(out, m.Error())
		}
		if len(mismatches) > 0 {
			return fmt.Errorf("%w: %d of %d steps", ErrDiverged, len(mismatches), len(rec.Steps))
		}
		fmt.Fprintf(out, "replayed %d commands in step\n", len(rec.Steps))
		return nil
	},
}

func loadRecording(cmd *cobra.Command) (*replay.Recording, error) {
	if recordingID != "" {
		if dbPath == "" {
			return nil, errors.New("--id needs --db")
		}
		store, err := cmdlog.Open(dbPath)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.Load(cmd.Context(), recordingID)
	}
	if recordingPath == "" {
		return nil, errors.New("replay needs --recording or --db with --id")
	}
	return replay.Load(recordingPath)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Apply a command stream and write the schedule to an XLSX workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		if xlsxPath == "" {
			return errors.New("export needs --xlsx")
		}
		cfg, err := loadEngineConfig()
		if err != nil {
			return err
		}
		e, err := newEngine(cfg, notify.Nop{})
		if err != nil {
			return err
		}
		cmds, err := loadCommands(commandsPath)
		if err != nil {
			return err
		}
		if _, err := processAll(cmd.Context(), e, cmds); err != nil {
			return err
		}
		if err := export.WriteFile(e.Snapshot(), xlsxPath); err != nil {
			return err
		}
		logrus.Infof("Wrote schedule to %s", xlsxPath)
		return nil
	},
}

var checksumCmd = &cobra.Command{
	Use:   "checksum",
	Short: "Apply a command stream and print the final checksum",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadEngineConfig()
		if err != nil {
			return err
		}
		e, err := newEngine(cfg, notify.Nop{})
		if err != nil {
			return err
		}
		cmds, err := loadCommands(commandsPath)
		if err != nil {
			return err
		}
		if _, err := processAll(cmd.Context(), e, cmds); err != nil {
			return err
		}
		printFingerprint(cmd, e.Checksum())
		return nil
	},
}

func printFingerprint(cmd *cobra.Command, fp checksum.Fingerprint) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, fp.Sum)
	if describe {
		fmt.Fprintln(out, fp.Description)
	}
}

func init() {
	for _, c := range []*cobra.Command{recordCmd, exportCmd, checksumCmd} {
		c.Flags().StringVar(&commandsPath, "commands", "", "Command stream YAML file; empty runs a single optimize")
	}
	recordCmd.Flags().StringVar(&recordingPath, "out", "", "Write the recording to this YAML file")
	recordCmd.Flags().StringVar(&dbPath, "db", "", "Store the recording in this SQLite command log")

	replayCmd.Flags().StringVar(&recordingPath, "recording", "", "Recording YAML file")
	replayCmd.Flags().StringVar(&dbPath, "db", "", "SQLite command log")
	replayCmd.Flags().StringVar(&recordingID, "id", "", "Recording id in the command log")

	exportCmd.Flags().StringVar(&xlsxPath, "xlsx", "", "Workbook to write")

	checksumCmd.Flags().BoolVar(&describe, "describe", false, "Also print the field-by-field description")
}
