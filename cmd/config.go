package cmd

import (
	"github.com/spf13/cobra"
)

// configCmd prints the effective configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Loads the configuration the other commands would run with (defaults, the
--config file, SONIDO_MOTOR_* environment variables and flags) and prints it.

Examples:
  sonido-motor config
  SONIDO_MOTOR_PIPELINE_TASK_WORKERS=2 sonido-motor --config motor.yaml config`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := appConfig.YAML()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
