package animals

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/zoolog/internal/app"
	"github.com/tphakala/zoolog/internal/buildinfo"
	"github.com/tphakala/zoolog/internal/conf"
)

// Command creates the animals command, which lists the animals the account
// can log observations for
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "animals",
		Short: "List animals from the zoo backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(settings, build)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.Restore(cmd.Context()); err != nil {
				return err
			}
			list, err := a.Backend.ListAnimals(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSPECIES\tHEALTH\tASSIGNED TO")
			for _, animal := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", animal.ID, animal.Name, animal.Species, animal.Health, animal.AssignedTo)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	return cmd
}
