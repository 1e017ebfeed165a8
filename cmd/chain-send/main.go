// Command chain-send signs an arbitrary payload under a freshly generated
// identity and posts it to a chain node's message pool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	log "github.com/sirupsen/logrus"

	"ledgerforge/core"
)

var namespace string

var rootCmd = &cobra.Command{
	Use:   "chain-send [server address] [message]",
	Short: "Sign and send a message to a chain node's message pool",
	Args:  cobra.ExactArgs(2),
	RunE:  runSend,
}

func init() {
	rootCmd.Flags().StringVar(&namespace, "namespace", "messaging", "message namespace")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSend(cmd *cobra.Command, args []string) error {
	remote, payload := args[0], args[1]

	user, err := core.GenerateIdentity()
	if err != nil {
		return err
	}
	log.Info("generated sender identity")
	fmt.Println(user.PublicPEM())

	message, err := core.NewMessage(user, namespace, payload)
	if err != nil {
		return err
	}

	client := core.NewPeerClient("")
	if err := client.PostMessage(remote, message); err != nil {
		return err
	}

	log.WithField("namespace", namespace).Info("sent message")
	return nil
}
