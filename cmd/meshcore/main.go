/*
File Name:  main.go
Author:     Peter Kleissner

Command-line entry point: run starts the core with the loopback bridge link; identity show/clear
operate on the persisted node identity without bringing the mesh up.
*/

package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	core "github.com/meshcore-dev/meshcore"
	"github.com/meshcore-dev/meshcore/bridge"
	"github.com/spf13/cobra"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:   "meshcore",
		Short: "Reference desktop node for the mesh messaging core",
	}
	root.PersistentFlags().StringVar(&configFile, "config", "meshcore.yaml", "configuration file path")

	root.AddCommand(newRunCommand())
	root.AddCommand(newIdentityCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCommand() *cobra.Command {
	var nickname string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the node, serving the loopback bridge link and diagnostic API",
		Run: func(cmd *cobra.Command, args []string) {
			backend, status, err := core.Init("meshcore/1.0", configFile, nil)
			if err != nil {
				fmt.Fprintf(os.Stderr, "init failed (exit %d): %s\n", status, err.Error())
				os.Exit(status)
			}

			link := bridge.New(backend)
			backend.SetLink(link)
			backend.Connect()

			go func() {
				if err := link.Start(backend.Config.BridgeListenAddress); err != nil {
					backend.Filters.LogError("run", "bridge listen: %s", err.Error())
				}
			}()

			if nickname != "" {
				backend.BroadcastAnnounce(nickname)
			}

			waitForSignal()
			backend.Shutdown()
		},
	}
	cmd.Flags().StringVar(&nickname, "nickname", "", "nickname to announce on startup")
	return cmd
}

func newIdentityCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Inspect or reset this node's persisted identity",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print this node's PeerID and public keys",
		Run: func(cmd *cobra.Command, args []string) {
			backend, status, err := core.Init("meshcore/1.0", configFile, nil)
			if err != nil {
				fmt.Fprintf(os.Stderr, "init failed (exit %d): %s\n", status, err.Error())
				os.Exit(status)
			}
			fmt.Printf("peer_id:     %s\n", hex.EncodeToString(backend.MyIdentity.PeerID[:]))
			fmt.Printf("signing_pub: %s\n", hex.EncodeToString(backend.MyIdentity.SigningPublicKey()))
			fmt.Printf("noise_pub:   %s\n", hex.EncodeToString(backend.MyIdentity.X25519.Public))
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Wipe the persisted identity and every live session, generating a fresh keypair",
		Run: func(cmd *cobra.Command, args []string) {
			backend, status, err := core.Init("meshcore/1.0", configFile, nil)
			if err != nil {
				fmt.Fprintf(os.Stderr, "init failed (exit %d): %s\n", status, err.Error())
				os.Exit(status)
			}
			if err := backend.ClearIdentity(); err != nil {
				fmt.Fprintf(os.Stderr, "clear identity: %s\n", err.Error())
				os.Exit(core.ExitIdentityKeyCorrupt)
			}
			fmt.Printf("new peer_id: %s\n", hex.EncodeToString(backend.MyIdentity.PeerID[:]))
		},
	})
	return cmd
}

func waitForSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}
