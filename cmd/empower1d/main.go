package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"empower1.com/empower1blockchain/internal/config"
	"empower1.com/empower1blockchain/internal/network"
	"empower1.com/empower1blockchain/internal/node"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{Use: "empower1d"}
	rootCmd.AddCommand(runCmd())
	return rootCmd
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run an EmPower1 node",
		RunE:  runNode,
	}
	cmd.Flags().String("config", "", "path to a config file (yaml/json/toml)")
	cmd.Flags().String("listen-addr", "", "libp2p listen multiaddr")
	cmd.Flags().String("data-dir", "", "directory for persistent storage")
	cmd.Flags().String("genesis-path", "", "path to the genesis descriptor")
	cmd.Flags().String("keyfile-path", "", "validator keyfile (omit to run in observer mode)")
	cmd.Flags().StringSlice("seed-peers", nil, "seed peer multiaddrs")
	cmd.Flags().Duration("block-interval", 0, "proposal ticker interval")
	cmd.Flags().Int("max-block-txs", 0, "maximum transactions per proposed block")
	cmd.Flags().String("http-bind-addr", "", "address for the read-only query facade, empty to disable")
	return cmd
}

func runNode(cmd *cobra.Command, args []string) error {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("empower1d: failed to load configuration: %w", err)
	}

	logrus.Info("empower1d: initializing node components")

	gossip, err := network.NewGossipNode(network.GossipConfig{
		ListenAddr:     cfg.ListenAddr,
		BootstrapPeers: cfg.SeedPeers,
	})
	if err != nil {
		return fmt.Errorf("empower1d: failed to start gossip transport: %w", err)
	}
	defer gossip.Close()
	logrus.Infof("empower1d: gossip transport listening as %s", gossip.ID())

	n, err := node.New(cfg, gossip)
	if err != nil {
		return fmt.Errorf("empower1d: failed to construct node: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownChannel := make(chan os.Signal, 1)
	signal.Notify(shutdownChannel, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-shutdownChannel
		logrus.Infof("empower1d: caught signal %v, shutting down", sig)
		cancel()
	}()

	logrus.Info("empower1d: node running, press Ctrl+C to stop")
	if err := n.Run(ctx); err != nil {
		return fmt.Errorf("empower1d: node exited with error: %w", err)
	}
	logrus.Info("empower1d: node shut down gracefully")
	return nil
}
