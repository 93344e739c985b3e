package worker

import (
	"github.com/spf13/cobra"
)

func NewWorkerCmd() *cobra.Command {
	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Background workers",
	}
	workerCmd.AddCommand(syncCmd)

	return workerCmd
}
