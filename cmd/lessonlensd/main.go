package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/lessonlens/internal/cli"
	"github.com/cloo-solutions/lessonlens/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lessonlensd",
		Short: "Lessonlens content pipeline daemon",
		Long:  "Lessonlens daemon for serving the content-intelligence API, running pipeline workers and administering the job queue",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.WorkerCmd())
	rootCmd.AddCommand(admin.MigrateCmd())
	rootCmd.AddCommand(admin.JobsCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if target, ok := cli.HelpJSONTarget(rootCmd, os.Args[1:]); ok {
		if err := cli.WriteSchema(os.Stdout, target); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
