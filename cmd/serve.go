package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/logging"
	"github.com/deemkeen/nodelink/activitypub"
	"github.com/deemkeen/nodelink/middleware"
	"github.com/deemkeen/nodelink/util"
	"github.com/deemkeen/nodelink/web"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the node: HTTP API, sync worker and optional SSH console",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log := util.Logger().WithPrefix("Serve")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, conf)
	if err != nil {
		return err
	}
	defer a.Close()
	log.Info("local node ready", "baseUrl", a.local.BaseURL)

	activitypub.StartSyncWorker(ctx, a.syncer(conf), conf.Conf.SyncInterval)

	if conf.Conf.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := web.Router(conf, web.NewServer(a.store, a.registry, a.graph, a.content, a.ingestor))
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.Conf.Host, conf.Conf.HttpPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var sshServer *ssh.Server
	if conf.Conf.WithSsh {
		if sshServer, err = newSSHServer(a); err != nil {
			return err
		}
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("starting http server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if sshServer != nil {
		go func() {
			log.Info("starting ssh console", "addr", sshServer.Addr)
			if err := sshServer.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
				errCh <- fmt.Errorf("ssh server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-errCh:
		log.Error("server failed", "err", runErr)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
	if sshServer != nil {
		if err := sshServer.Shutdown(shutdownCtx); err != nil {
			log.Error("ssh shutdown failed", "err", err)
		}
	}
	return runErr
}

func newSSHServer(a *app) (*ssh.Server, error) {
	keys := middleware.NewAdminKeys(conf.Conf.AdminKeys)
	if len(keys) == 0 {
		util.Logger().WithPrefix("SSH").Warn("no admin keys configured, every console login will be refused")
	}

	s, err := wish.NewServer(
		wish.WithAddress(fmt.Sprintf("%s:%d", conf.Conf.Host, conf.Conf.SshPort)),
		wish.WithHostKeyPath(util.DataPath(filepath.Join(".ssh", util.Name+"hostkey"))),
		wish.WithPublicKeyAuth(keys.PublicKeyHandler),
		wish.WithMiddleware(
			middleware.MainTui(a.registry, a.local.BaseURL),
			middleware.AuthMiddleware(keys),
			logging.Middleware(), // last middleware executed first
		),
	)
	if err != nil {
		return nil, fmt.Errorf("ssh server: %w", err)
	}
	return s, nil
}
