// Command chaind runs a single chain replica: it either mints a brand new
// chain rooted by a freshly generated identity, or clones an existing chain
// from a bootstrap peer and joins its gossip mesh. It then serves the §6
// HTTP surface until interrupted.
package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	log "github.com/sirupsen/logrus"

	"ledgerforge/core"
	"ledgerforge/pkg/utils"
	"ledgerforge/server"
)

func main() {
	_ = godotenv.Load(".env")
	viper.AutomaticEnv()

	addr := viper.GetString("CHAIN_ADDR")
	listen := viper.GetString("CHAIN_LISTEN")
	bootstrap := viper.GetString("CHAIN_BOOTSTRAP")
	if len(os.Args) > 1 {
		bootstrap = os.Args[1]
	}
	magicNumber := utils.EnvOrDefault("CHAIN_MAGIC_NUMBER", core.DefaultMagicNumber)

	if addr == "" {
		port := 50000 + rand.Intn(10000)
		addr = fmt.Sprintf("http://localhost:%d", port)
		if listen == "" {
			listen = fmt.Sprintf(":%d", port)
		}
	}
	if listen == "" {
		listen = ":8080"
	}

	var manager *core.ChainManager
	if bootstrap != "" {
		log.WithField("remote", bootstrap).Info("cloning chain from bootstrap peer")
		m, err := core.CloneChainManager(addr, bootstrap)
		if err != nil {
			log.WithField("error", err).Fatal("clone chain")
		}
		manager = m
	} else {
		root, err := core.GenerateIdentity()
		if err != nil {
			log.WithField("error", err).Fatal("generate root identity")
		}
		log.Info("generated root identity")
		fmt.Println(root.PublicPEM())

		m, err := core.GenerateChainManager(addr, root, magicNumber)
		if err != nil {
			log.WithField("error", err).Fatal("generate chain")
		}
		manager = m
	}

	log.WithFields(log.Fields{
		"addr":   manager.Addr(),
		"length": manager.Chain().Len(),
		"root":   fmt.Sprintf("%x", manager.Chain().At(0).Signature()),
	}).Info("chain ready")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("shutting down, disconnecting peers")
		manager.DisconnectAll()
		os.Exit(0)
	}()

	log.WithField("listen", listen).Info("serving chain endpoint")
	if err := http.ListenAndServe(listen, server.NewRouter(manager)); err != nil {
		log.WithField("error", err).Fatal("server stopped")
	}
}
