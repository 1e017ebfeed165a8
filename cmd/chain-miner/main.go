// Command chain-miner repeatedly mines the remote chain's open tip: it
// fetches the tip, searches for a closing key, submits the closure, and
// announces the win with a pooled message before moving on to the new tip.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	log "github.com/sirupsen/logrus"

	"ledgerforge/core"
)

var rootCmd = &cobra.Command{
	Use:   "chain-miner [server address]",
	Short: "Mine the open tip of a remote chain in a loop",
	Args:  cobra.ExactArgs(1),
	RunE:  runMiner,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMiner(cmd *cobra.Command, args []string) error {
	remote := args[0]

	user, err := core.GenerateIdentity()
	if err != nil {
		return err
	}
	log.Info("generated miner identity")
	fmt.Println(user.PublicPEM())

	client := core.NewPeerClient("")

	leaf, err := client.GetBlock(remote, -1)
	if err != nil {
		return err
	}

	for {
		log.WithFields(log.Fields{
			"index":  leaf.Index,
			"parent": fmt.Sprintf("%x", leaf.Parent.Signature),
		}).Info("leaf acquired")

		key, err := core.Mine(leaf)
		if err != nil {
			return err
		}
		log.WithField("key", fmt.Sprintf("%x", key)).Info("key found")

		next, err := leaf.Close(user, key, 0, nil)
		if err != nil {
			return err
		}

		message, err := core.NewMessage(user, "macracoin.mining", map[string]any{
			"from": fmt.Sprintf("%x", leaf.Signature()),
			"to":   user.PublicPEM(),
		})
		if err != nil {
			return err
		}

		if err := client.PostCloseBlock(remote, leaf); err != nil {
			return err
		}
		if err := client.PostMessage(remote, message); err != nil {
			return err
		}
		if err := next.Pool(message); err != nil {
			return err
		}

		log.WithFields(log.Fields{
			"index":     leaf.Index,
			"signature": fmt.Sprintf("%x", leaf.Signature()),
		}).Info("block closed")

		leaf = next
	}
}
