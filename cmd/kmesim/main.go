package main

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/qursa-uc3m/qkd-etsi-client/cmd/flags"
	"github.com/qursa-uc3m/qkd-etsi-client/kmesim"
)

var simFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8443",
		Usage: "address to listen on for the KME API",
	},
	&cli.StringFlag{
		Name:     "seed",
		Required: true,
		Usage:    "hex-encoded seed for the deterministic key pool, at least 32 bytes",
	},
	&cli.IntFlag{
		Name:  "key-size",
		Value: 256,
		Usage: "size of issued keys in bits",
	},
	&cli.IntFlag{
		Name:  "max-keys",
		Value: 1024,
		Usage: "key pool capacity",
	},
	&cli.StringFlag{
		Name:  "tls-cert",
		Usage: "path to the server certificate; TLS is disabled when unset",
	},
	&cli.StringFlag{
		Name:  "tls-key",
		Usage: "path to the server key",
	},
	&cli.StringFlag{
		Name:  "client-ca",
		Usage: "path to the CA used to verify client certificates (enables mutual TLS)",
	},
	&cli.BoolFlag{
		Name:  "pprof",
		Value: false,
		Usage: "enable pprof debug endpoint",
	},
	&cli.Int64Flag{
		Name:  "drain-seconds",
		Value: 45,
		Usage: "seconds to wait in drain HTTP request",
	},
}

func main() {
	app := &cli.App{
		Name:  "kmesim",
		Usage: "Serve a simulated ETSI QKD 014 key management entity",
		Flags: append(simFlags, flags.LogFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx, "kmesim")

			seed, err := hex.DecodeString(cCtx.String("seed"))
			if err != nil {
				logger.Error("Invalid seed - must be hex-encoded", "err", err)
				return fmt.Errorf("invalid seed: %w", err)
			}

			pool, err := kmesim.NewKeyPool(kmesim.PoolConfig{
				Seed:        seed,
				KeySizeBits: cCtx.Int("key-size"),
				MaxKeyCount: cCtx.Int("max-keys"),
			})
			if err != nil {
				logger.Error("Failed to create key pool", "err", err)
				return err
			}

			cfg := &kmesim.HTTPServerConfig{
				ListenAddr:               cCtx.String("listen-addr"),
				EnablePprof:              cCtx.Bool("pprof"),
				Log:                      logger,
				CertFile:                 cCtx.String("tls-cert"),
				KeyFile:                  cCtx.String("tls-key"),
				ClientCAFile:             cCtx.String("client-ca"),
				DrainDuration:            time.Duration(cCtx.Int64("drain-seconds")) * time.Second,
				GracefulShutdownDuration: 30 * time.Second,
				ReadTimeout:              60 * time.Second,
				WriteTimeout:             30 * time.Second,
			}

			server, err := kmesim.New(cfg, pool)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("KME simulator is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
