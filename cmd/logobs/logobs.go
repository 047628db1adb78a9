// Package logobs implements the interactive daily log command
package logobs

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/zoolog/internal/app"
	"github.com/tphakala/zoolog/internal/buildinfo"
	"github.com/tphakala/zoolog/internal/conf"
	"github.com/tphakala/zoolog/internal/i18n"
)

// Command creates the log command
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var (
		animal string
		lang   string
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Record a daily observation interactively",
		Long: `Start a daily observation entry in the terminal. Record or type the
observation, review the generated checklist and submit it.

Commands are read line by line, so a prepared script can be piped in:
  printf 'animal 12\nmode text\ntext Rani ate well\nprocess\nsubmit\n' | zoolog log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(settings, build)
			if err != nil {
				return err
			}
			defer a.Close()

			if cmd.Flags().Changed("lang") {
				a.Context.SettingsWriter().SetLanguage(i18n.Code(i18n.Match(lang)))
			}
			if _, err := a.Restore(cmd.Context()); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), i18n.T(a.Context.Language(), i18n.MsgLoginRequired))
				return err
			}

			session, err := a.NewSession(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Discard()

			sh := &shell{
				session: session,
				lang:    a.Context.Language(),
				loc:     settings.Location(),
				out:     cmd.OutOrStdout(),
			}
			if animal != "" {
				if err := sh.exec(cmd.Context(), "animal", animal); err != nil {
					return err
				}
			}
			fmt.Fprintln(sh.out, `Type "help" for commands.`)
			return sh.run(cmd.Context(), cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVarP(&animal, "animal", "a", "", "Animal ID (list mode) or name (free text mode)")
	cmd.Flags().StringVar(&lang, "lang", "", "Language for messages and transcription (en, hi)")

	return cmd
}
