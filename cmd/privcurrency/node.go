package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	abciserver "github.com/cometbft/cometbft/abci/server"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	dbm "github.com/cometbft/cometbft-db"
	"github.com/spf13/cobra"

	"github.com/certen/private-currency/pkg/config"
	"github.com/certen/private-currency/pkg/consensus"
	"github.com/certen/private-currency/pkg/debugtap"
	"github.com/certen/private-currency/pkg/httpapi"
	"github.com/certen/private-currency/pkg/kvstore"
)

func newNodeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "node",
		Short: "Run a validator node: the ABCI application and its HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "node.yaml", "path to the node configuration file")
	return cmd
}

// runNode starts the ABCI application on its socket address for a
// separately-running CometBFT process to dial, and serves the HTTP API
// (which in turn broadcasts submitted transactions to that same process's
// RPC endpoint) until interrupted.
func runNode(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("node: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("node: %w", err)
	}

	db, err := dbm.NewGoLevelDB("privcurrency", cfg.DataDir)
	if err != nil {
		return fmt.Errorf("node: open database: %w", err)
	}
	store := kvstore.NewDBStore(db)
	app := consensus.NewApplication(store)

	if cfg.DebugChannelCapacity > 0 {
		probe, _ := debugtap.NewChannel(cfg.DebugChannelCapacity, debugtap.Options{CheckInvariants: cfg.CheckInvariants})
		app.AttachDebugger(probe)
	}

	abciSrv, err := abciserver.NewServer(cfg.AbciAddr, "socket", app)
	if err != nil {
		return fmt.Errorf("node: build abci server: %w", err)
	}
	abciSrv.SetLogger(cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout)))
	if err := abciSrv.Start(); err != nil {
		return fmt.Errorf("node: start abci server: %w", err)
	}
	defer abciSrv.Stop()

	rpcClient, err := rpchttp.New(cfg.RPCAddr, "/websocket")
	if err != nil {
		return fmt.Errorf("node: build rpc client: %w", err)
	}

	mux := http.NewServeMux()
	handlers := httpapi.NewHandlers(app, func(tx []byte) error {
		result, err := rpcClient.BroadcastTxSync(context.Background(), tx)
		if err != nil {
			return err
		}
		if result.Code != consensus.CodeOK {
			return fmt.Errorf("node: transaction rejected: %s", result.Log)
		}
		return nil
	})
	handlers.Mount(mux)

	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "node: http api: %v\n", err)
		}
	}()
	defer httpSrv.Close()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", httpapi.MetricsHandler())
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "node: metrics: %v\n", err)
		}
	}()
	defer metricsSrv.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return nil
}
