package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/othings/pkg/othings"
)

const modulePath = "github.com/mesh-intelligence/othings"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the othings version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "othings v%s\nmodule: %s\n", othings.Version, modulePath)
			return nil
		},
	}
}
