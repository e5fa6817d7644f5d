// Package flags defines the CLI flags shared by the qkdclient and kmesim
// commands. Environment variable names follow the QKD_* convention of the
// ETSI QKD deployments this client talks to; each role only ever reads its
// own variables.
package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/qursa-uc3m/qkd-etsi-client/common"
	"github.com/qursa-uc3m/qkd-etsi-client/interfaces"
	"github.com/qursa-uc3m/qkd-etsi-client/qkd"
)

func SetupLogger(cCtx *cli.Context, service string) *slog.Logger {
	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   cCtx.Bool(LogDebugFlag.Name),
		JSON:    cCtx.Bool(LogJsonFlag.Name),
		Service: service,
		Version: common.Version,
	})

	if cCtx.Bool(LogUidFlag.Name) {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// ContextConfig assembles a qkd.Config from the parsed CLI flags. The
// credential paths are taken from the flag set matching the role, so an
// initiator invocation never consults the responder's variables.
func ContextConfig(cCtx *cli.Context, logger *slog.Logger) (*qkd.Config, error) {
	role, err := interfaces.NewRoleFromString(cCtx.String(RoleFlag.Name))
	if err != nil {
		return nil, err
	}

	cfg := &qkd.Config{
		Role:          role,
		SourceURI:     cCtx.String(SourceURIFlag.Name),
		DestURI:       cCtx.String(DestURIFlag.Name),
		MasterKMEHost: cCtx.String(MasterKMEHostFlag.Name),
		SlaveKMEHost:  cCtx.String(SlaveKMEHostFlag.Name),
		CACertPath:    cCtx.String(CACertFlag.Name),
		Timeout:       time.Duration(cCtx.Int64(TimeoutSecondsFlag.Name)) * time.Second,
		Log:           logger,
	}

	switch role {
	case interfaces.RoleInitiator:
		cfg.ClientCertPath = cCtx.String(MasterCertFlag.Name)
		cfg.ClientKeyPath = cCtx.String(MasterKeyFlag.Name)
	case interfaces.RoleResponder:
		cfg.ClientCertPath = cCtx.String(SlaveCertFlag.Name)
		cfg.ClientKeyPath = cCtx.String(SlaveKeyFlag.Name)
	}

	return cfg, nil
}

var RoleFlag = &cli.StringFlag{
	Name:  "role",
	Value: "initiator",
	Usage: "QKD link role: initiator (master) or responder (slave)",
}

var SourceURIFlag = &cli.StringFlag{
	Name:    "source-uri",
	Usage:   "SAE identifier of this endpoint",
	EnvVars: []string{"QKD_SOURCE_URI"},
}

var DestURIFlag = &cli.StringFlag{
	Name:    "dest-uri",
	Usage:   "SAE identifier of the peer endpoint",
	EnvVars: []string{"QKD_DEST_URI"},
}

var MasterKMEHostFlag = &cli.StringFlag{
	Name:    "master-kme-host",
	Usage:   "base URL of the master KME (https)",
	EnvVars: []string{"QKD_MASTER_KME_HOSTNAME"},
}

var SlaveKMEHostFlag = &cli.StringFlag{
	Name:    "slave-kme-host",
	Usage:   "base URL of the slave KME (https)",
	EnvVars: []string{"QKD_SLAVE_KME_HOSTNAME"},
}

var CACertFlag = &cli.StringFlag{
	Name:    "ca-cert",
	Usage:   "path to the CA certificate that signed the KME server certificates",
	EnvVars: []string{"QKD_CA_CERT_PATH"},
}

var MasterCertFlag = &cli.StringFlag{
	Name:    "master-cert",
	Usage:   "path to the initiator's client certificate",
	EnvVars: []string{"QKD_MASTER_CERT_PATH"},
}

var MasterKeyFlag = &cli.StringFlag{
	Name:    "master-key",
	Usage:   "path to the initiator's client key",
	EnvVars: []string{"QKD_MASTER_KEY_PATH"},
}

var SlaveCertFlag = &cli.StringFlag{
	Name:    "slave-cert",
	Usage:   "path to the responder's client certificate",
	EnvVars: []string{"QKD_SLAVE_CERT_PATH"},
}

var SlaveKeyFlag = &cli.StringFlag{
	Name:    "slave-key",
	Usage:   "path to the responder's client key",
	EnvVars: []string{"QKD_SLAVE_KEY_PATH"},
}

var TimeoutSecondsFlag = &cli.Int64Flag{
	Name:  "timeout-seconds",
	Value: 10,
	Usage: "timeout for each KME call",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}

var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}

var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
}

var ContextFlags = []cli.Flag{
	RoleFlag,
	SourceURIFlag,
	DestURIFlag,
	MasterKMEHostFlag,
	SlaveKMEHostFlag,
	CACertFlag,
	MasterCertFlag,
	MasterKeyFlag,
	SlaveCertFlag,
	SlaveKeyFlag,
	TimeoutSecondsFlag,
}
