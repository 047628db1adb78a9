package devices

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/zoolog/internal/recorder"
)

// Command creates the devices command, which lists capture devices for the
// audio.device setting
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio capture devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := recorder.ListDevices()
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No capture devices found")
				return nil
			}
			for _, d := range devices {
				marker := " "
				if d.IsDefault {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d: %s (%s)\n", marker, d.Index, d.Name, d.ID)
			}
			return nil
		},
	}
}
