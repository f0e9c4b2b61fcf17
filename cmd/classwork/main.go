package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "classwork",
	Short: "Academic project and task tracker",
	Long: `classwork tracks projects that lecturers assign to students, the tasks
students break them into, and their progress, with optional AI suggestions.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
