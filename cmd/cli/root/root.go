package root

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "onboardctl",
	Short: "Cloud compliance onboarding CLI",
	Long:  "Command line interface for the cloud compliance onboarding and scan scheduling API",
}

// GetRoot returns the root command.
func GetRoot() *cobra.Command {
	return rootCmd
}
