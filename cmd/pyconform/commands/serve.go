package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/codewithboateng/pyconform/internal/api"
)

func (a *app) serveCmd() *cobra.Command {
	var addr, dbPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run history JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			db, err := a.openDB(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			srv := &api.Server{
				DB:              db,
				UserStore:       db,
				Logger:          a.logger,
				AllowedOrigins:  a.cfg.Server.AllowedOrigins,
				SessionDuration: time.Duration(a.cfg.Server.SessionHours) * time.Hour,
			}
			hs := &http.Server{
				Addr:              addr,
				Handler:           srv.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				a.logger.Info("api listening", "addr", addr)
				errc <- hs.ListenAndServe()
			}()
			select {
			case err := <-errc:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
				a.logger.Info("shutting down api")
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return hs.Shutdown(ctx)
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	addDBFlag(cmd.Flags(), &dbPath)
	return cmd
}
