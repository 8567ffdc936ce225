package commands

import (
	"fmt"
	"os"

	"github.com/mosaicnetworks/mingle/src/config"
	"github.com/spf13/cobra"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for Mingle
var RootCmd = &cobra.Command{
	Use:              "mingle",
	Short:            "mingle membership",
	TraverseChildren: true,
}

func init() {
	RootCmd.AddCommand(
		NewRunCmd(),
		NewVersionCmd(),
	)
}

//Execute runs the root command and exits on error
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)

		os.Exit(1)
	}
}
