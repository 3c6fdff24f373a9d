package main

import (
	"fmt"
	"os"

	"github.com/threatengine/onboarding/cmd/cli/accounts"
	"github.com/threatengine/onboarding/cmd/cli/auth"
	"github.com/threatengine/onboarding/cmd/cli/root"
	"github.com/threatengine/onboarding/cmd/cli/schedules"
	"github.com/threatengine/onboarding/cmd/cli/tenants"
)

func main() {
	rootCmd := root.GetRoot()
	auth.Init(rootCmd)
	tenants.Init(rootCmd)
	accounts.Init(rootCmd)
	schedules.Init(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
