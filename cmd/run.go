package cmd

import (
	"log"

	"github.com/mosguinz/qwacker/qwacker"
	"github.com/spf13/cobra"
)

var (
	runCmd = &cobra.Command{
		Use:   "run [flags]",
		Short: "Starts the Qwacker bot and (optionally) the status API",
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()
			q, err := qwacker.New(cfg)
			if err != nil {
				log.Fatalf("error creating qwacker: %s", err.Error())
			}

			if err = q.Run(ctx); err != nil {
				log.Fatalf("error running qwacker: %s", err.Error())
			}
		},
	}
)

func init() {
	rootCmd.AddCommand(runCmd)
}
