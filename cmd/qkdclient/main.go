package main

import (
	"encoding/base64"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/qursa-uc3m/qkd-etsi-client/cmd/flags"
	"github.com/qursa-uc3m/qkd-etsi-client/interfaces"
	"github.com/qursa-uc3m/qkd-etsi-client/qkd"
)

var printKeyFlag = &cli.BoolFlag{
	Name:  "print-key",
	Value: false,
	Usage: "print the retrieved key material base64-encoded on stdout (handle with care)",
}

var keyIDFlag = &cli.StringFlag{
	Name:     "key-id",
	Required: true,
	Usage:    "identifier of the key to retrieve, as announced by the initiator",
}

func main() {
	app := &cli.App{
		Name:  "qkdclient",
		Usage: "Retrieve symmetric key material from an ETSI QKD key management entity",
		Flags: append(flags.ContextFlags, flags.LogFlags...),
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Query the KME's key-pool status",
				Action: func(cCtx *cli.Context) error {
					return withContext(cCtx, func(qctx *qkd.Context) error {
						if err := qctx.GetStatus(cCtx.Context); err != nil {
							return err
						}
						status := qctx.Status()
						fmt.Printf("stored_key_count: %d\nmax_key_count: %d\nkey_size: %d\n",
							status.StoredKeyCount, status.MaxKeyCount, status.KeySize)
						return nil
					})
				},
			},
			{
				Name:  "get-key",
				Usage: "Retrieve the next available key and print its identifier",
				Flags: []cli.Flag{printKeyFlag},
				Action: func(cCtx *cli.Context) error {
					return withContext(cCtx, func(qctx *qkd.Context) error {
						if err := qctx.GetKey(cCtx.Context); err != nil {
							return err
						}
						return printResult(cCtx, qctx)
					})
				},
			},
			{
				Name:  "get-key-by-id",
				Usage: "Retrieve the key matching an identifier learned out-of-band",
				Flags: []cli.Flag{keyIDFlag, printKeyFlag},
				Action: func(cCtx *cli.Context) error {
					return withContext(cCtx, func(qctx *qkd.Context) error {
						id, err := interfaces.NewKeyID(cCtx.String(keyIDFlag.Name))
						if err != nil {
							return err
						}
						if err := qctx.GetKeyWithID(cCtx.Context, id); err != nil {
							return err
						}
						return printResult(cCtx, qctx)
					})
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// withContext builds a provisioned QKD context from the CLI flags, runs the
// operation, and guarantees teardown (key zeroization) on every exit path.
func withContext(cCtx *cli.Context, op func(*qkd.Context) error) error {
	logger := flags.SetupLogger(cCtx, "qkdclient")

	cfg, err := flags.ContextConfig(cCtx, logger)
	if err != nil {
		return err
	}

	qctx, err := qkd.NewContext(cfg)
	if err != nil {
		return err
	}
	defer qctx.Destroy()

	if err := qctx.InitCertificates(); err != nil {
		logger.Error("Certificate provisioning failed", "err", err)
		return err
	}

	return op(qctx)
}

func printResult(cCtx *cli.Context, qctx *qkd.Context) error {
	fmt.Printf("key_ID: %s\n", qctx.LastKeyID())

	if cCtx.Bool(printKeyFlag.Name) {
		key, err := qctx.Key()
		if err != nil {
			return err
		}
		keyBytes, err := key.Bytes()
		if err != nil {
			return err
		}
		fmt.Printf("key: %s\n", base64.StdEncoding.EncodeToString(keyBytes))
		for i := range keyBytes {
			keyBytes[i] = 0
		}
	}
	return nil
}
