package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/arden-health/idveil/config"
	"github.com/arden-health/idveil/engine"
	"github.com/arden-health/idveil/logger"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// runObserver is an engine observer owning a terminal resource to release.
type runObserver interface {
	engine.Observer
	Close()
}

// RunCmd processes every unprocessed row of a mapping configuration.
var RunCmd = &cobra.Command{
	Use:   "run <mapping-file>",
	Short: "Anonymize the files listed in a mapping configuration",
	Long: `Process every unprocessed row of a mapping configuration.

Each row names a source file, the column holding identifiers, and the
relationship table correlating identifiers to consent. Source files are
backed up before the first mutation, annotated with a consent_status column,
and paired with a training extract carrying hashed identifiers.

Rows already marked processed are skipped, so re-running the same mapping
file resumes an interrupted run. Press Ctrl-C to stop between files; the
in-flight file is always finished or left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		lookupPath, _ := cmd.Flags().GetString("lookup")

		var obs runObserver
		if jsonOutput {
			obs = newJSONObserver()
		} else {
			obs = newCLIObserver()
		}
		defer obs.Close()

		eng := engine.New(cfg, args[0], lookupPath, obs)

		// First Ctrl-C stops cooperatively, a second one aborts.
		sigCh := make(chan os.Signal, 2)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		go func() {
			<-sigCh
			logger.Warn("Interrupt received, stopping after the current file")
			eng.Stop()
			<-sigCh
			os.Exit(130)
		}()

		if err := eng.ProcessAllFiles(); err != nil {
			return err
		}

		if !jsonOutput && eng.State() == engine.StateStopped {
			pterm.Warning.Println("Run stopped before completion; re-run to resume")
		}
		return nil
	},
}

func init() {
	RunCmd.Flags().String("lookup", "", "Lookup table path (default: id_lookup_table.csv next to the mapping file)")
	RunCmd.Flags().String("config", "", "Config file path (default: idveil.toml found by walking up from the working directory)")
}

// loadConfig resolves configuration: an explicit --config file, or the
// default chain of built-ins, project file, and IDVEIL_* environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}
