package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	tls "github.com/klb-systems/tlscore"
	"github.com/klb-systems/tlscore/internal/obslog"
	"github.com/klb-systems/tlscore/record"
)

var version = "dev"

var (
	flagAddr     string
	flagCACert   string
	flagCertFile string
	flagKeyFile  string
	flagKeyPass  string
	flagSend     string
	flagLogLevel string
	flagLogJSON  bool
)

func main() {
	root := &cobra.Command{
		Use:     "tls-client",
		Short:   "Dial a TLS 1.0/1.1/1.2 server and exchange application data",
		Version: version,
		RunE:    runConnect,
	}
	root.SetVersionTemplate("tls-client {{.Version}}\n")

	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "emit JSON logs instead of console logs")

	root.Flags().StringVar(&flagAddr, "addr", "localhost:8443", "address to dial")
	root.Flags().StringVar(&flagCACert, "ca", "", "PEM file of trusted CA certificates (enables peer verification)")
	root.Flags().StringVar(&flagCertFile, "cert", "", "PEM file of this client's certificate chain (leaf first)")
	root.Flags().StringVar(&flagKeyFile, "key", "", "PEM file of this client's RSA private key")
	root.Flags().StringVar(&flagKeyPass, "key-passphrase", "", "passphrase for -key, if it carries legacy PEM encryption")
	root.Flags().StringVar(&flagSend, "send", "hello from tls-client\n", "application data to send once connected")

	cobra.OnInitialize(func() {
		obslog.Init(obslog.Config{Level: obslog.Level(flagLogLevel), JSONOutput: flagLogJSON})
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runConnect(cmd *cobra.Command, args []string) error {
	log := obslog.WithComponent("tls-client")

	cfg := &tls.Config{
		Debug: func(format string, a ...any) { log.Debug().Msgf(format, a...) },
	}

	if flagCACert != "" {
		buf, err := os.ReadFile(flagCACert)
		if err != nil {
			return fmt.Errorf("reading -ca: %w", err)
		}
		cas, err := tls.CertificatesFromPEM(buf)
		if err != nil {
			return fmt.Errorf("parsing -ca: %w", err)
		}
		cfg.CACertificates = cas
	}

	if flagCertFile != "" {
		certBuf, err := os.ReadFile(flagCertFile)
		if err != nil {
			return fmt.Errorf("reading -cert: %w", err)
		}
		chain, err := tls.ChainFromPEM(certBuf)
		if err != nil {
			return fmt.Errorf("parsing -cert: %w", err)
		}
		keyBuf, err := os.ReadFile(flagKeyFile)
		if err != nil {
			return fmt.Errorf("reading -key: %w", err)
		}
		key, err := tls.RSAKeyFromPEM(keyBuf, flagKeyPass)
		if err != nil {
			return fmt.Errorf("parsing -key: %w", err)
		}
		cfg.LocalChain = chain
		cfg.LocalKey = key
	}

	cfg.Ready = func(peerIdentity string) {
		fmt.Printf("✓ handshake complete, peer identity: %q\n", peerIdentity)
	}
	cfg.Disconnect = func(wire tls.AlertDescription, local string) {
		fmt.Printf("disconnected: wire=%s local=%s\n", wire, local)
	}

	nc, err := net.DialTimeout("tcp", flagAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("dial %s: %w", flagAddr, err)
	}

	conn, err := record.NewClient(nc, cfg)
	if err != nil {
		nc.Close()
		return fmt.Errorf("handshake: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(flagSend)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	fmt.Printf("✓ sent %d bytes\n", len(flagSend))

	reply := make([]byte, 4096)
	n, err := conn.Read(reply)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	fmt.Printf("✓ received: %s", reply[:n])
	return nil
}
