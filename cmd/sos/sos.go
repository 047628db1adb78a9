package sos

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tphakala/zoolog/internal/app"
	"github.com/tphakala/zoolog/internal/buildinfo"
	"github.com/tphakala/zoolog/internal/conf"
	"github.com/tphakala/zoolog/internal/i18n"
)

// Command creates the sos command, which raises an emergency alert without
// a daily log entry
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var animalID string

	cmd := &cobra.Command{
		Use:   "sos --animal ID description...",
		Short: "Send an emergency alert to supervisors",
		Long: `Send an emergency alert for an animal. The alert goes to the zoo backend
and, when configured, to the push notification channels.

Example:
  zoolog sos --animal 12 "Rani is limping and not putting weight on the left foreleg"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(settings, build)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.Restore(cmd.Context()); err != nil {
				return err
			}

			lang := a.Context.Language()
			res, err := a.SendEmergency(cmd.Context(), animalID, strings.Join(args, " "))
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), i18n.T(lang, i18n.MsgEmergencyAlertFail))
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T(lang, i18n.MsgEmergencyAlertSent))
			if !res.Backend {
				fmt.Fprintln(cmd.OutOrStdout(), "warning: backend alert failed, delivered by push only")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&animalID, "animal", "a", "", "Animal ID")
	_ = cmd.MarkFlagRequired("animal")

	return cmd
}
