package serve

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tphakala/zoolog/internal/app"
	"github.com/tphakala/zoolog/internal/buildinfo"
	"github.com/tphakala/zoolog/internal/conf"
	"github.com/tphakala/zoolog/internal/errors"
	"github.com/tphakala/zoolog/internal/logger"
)

// Command creates the serve command, which runs the local capture API
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var (
		listen  string
		metrics bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local observation capture API",
		Long: `Run the local HTTP API that drives daily observation entries.

The server uses the credential stored by "zoolog login". Without one it still
starts, but sessions cannot be submitted until a keeper logs in.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("listen") {
				settings.Server.Listen = listen
			}
			if cmd.Flags().Changed("metrics") {
				settings.Server.Metrics = metrics
			}

			log := logger.Global().Module("serve")
			a, err := app.New(settings, build)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.Restore(cmd.Context())
			switch {
			case errors.Is(err, app.ErrNotLoggedIn):
				log.Warn("no stored credential, run zoolog login")
			case err != nil:
				return err
			default:
				log.Info("restored session", logger.String("user", user.Name), logger.String("role", string(user.Role)))
			}

			srv, err := a.Server()
			if err != nil {
				return err
			}
			go rotateOnHangup(cmd.Context(), logger.Global(), log)
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address, overrides server.listen")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "Expose Prometheus metrics on /metrics")

	return cmd
}

type rotator interface {
	Rotate() error
}

// rotateOnHangup rolls log files over on SIGHUP until ctx ends
func rotateOnHangup(ctx context.Context, r rotator, log logger.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := r.Rotate(); err != nil {
				log.Warn("log rotation failed", logger.Error(err))
				continue
			}
			log.Info("log files rotated")
		}
	}
}
