package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/tphakala/zoolog/internal/buildinfo"
)

// Command creates the version command
func Command(build buildinfo.BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "zoolog %s (built %s, %s %s/%s)\n",
				build.GetVersion(), build.GetBuildDate(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
