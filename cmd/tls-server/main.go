package main

import (
	"crypto/rsa"
	"fmt"
	"net"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	tls "github.com/klb-systems/tlscore"
	"github.com/klb-systems/tlscore/internal/obslog"
	"github.com/klb-systems/tlscore/record"
)

var version = "dev"

var (
	flagAddr        string
	flagCACert      string
	flagCertFile    string
	flagKeyFile     string
	flagKeyPass     string
	flagRequireAuth bool
	flagLogLevel    string
	flagLogJSON     bool
)

func main() {
	root := &cobra.Command{
		Use:     "tls-server",
		Short:   "Accept TLS 1.0/1.1/1.2 connections and echo application data",
		Version: version,
		RunE:    runServe,
	}
	root.SetVersionTemplate("tls-server {{.Version}}\n")

	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "emit JSON logs instead of console logs")

	root.Flags().StringVar(&flagAddr, "addr", ":8443", "address to listen on")
	root.Flags().StringVar(&flagCertFile, "cert", "", "PEM file of this server's certificate chain (leaf first)")
	root.Flags().StringVar(&flagKeyFile, "key", "", "PEM file of this server's RSA private key")
	root.Flags().StringVar(&flagKeyPass, "key-passphrase", "", "passphrase for -key, if it carries legacy PEM encryption")
	root.Flags().StringVar(&flagCACert, "ca", "", "PEM file of trusted CA certificates (enables client-certificate verification)")
	root.Flags().BoolVar(&flagRequireAuth, "require-client-cert", false, "reject handshakes where the client presents no certificate")

	root.MarkFlagRequired("cert")
	root.MarkFlagRequired("key")

	cobra.OnInitialize(func() {
		obslog.Init(obslog.Config{Level: obslog.Level(flagLogLevel), JSONOutput: flagLogJSON})
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	log := obslog.WithComponent("tls-server")

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

	var cas []*tls.Certificate
	if flagCACert != "" {
		buf, err := os.ReadFile(flagCACert)
		if err != nil {
			return fmt.Errorf("reading -ca: %w", err)
		}
		cas, err = tls.CertificatesFromPEM(buf)
		if err != nil {
			return fmt.Errorf("parsing -ca: %w", err)
		}
	}

	ln, err := net.Listen("tcp", flagAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", flagAddr, err)
	}
	defer ln.Close()
	fmt.Printf("✓ listening on %s\n", flagAddr)

	for {
		nc, err := ln.Accept()
		if err != nil {
			log.Error().Err(err).Msg("accept failed")
			continue
		}
		go handleConn(nc, chain, key, cas, log)
	}
}

func handleConn(nc net.Conn, chain *tls.Chain, key *rsa.PrivateKey, cas []*tls.Certificate, log zerolog.Logger) {
	defer nc.Close()
	peer := nc.RemoteAddr().String()

	cfg := &tls.Config{
		LocalChain:     chain,
		LocalKey:       key,
		CACertificates: cas,
		Debug:          func(format string, a ...any) { log.Debug().Str("peer", peer).Msgf(format, a...) },
		Ready: func(peerIdentity string) {
			identity := peerIdentity
			if identity == "" {
				identity = "(anonymous)"
			}
			log.Info().Str("peer", peer).Str("identity", identity).Msg("handshake complete")
		},
		Disconnect: func(wire tls.AlertDescription, local string) {
			log.Info().Str("peer", peer).Str("wire_alert", wire.String()).Str("reason", local).Msg("disconnected")
		},
	}
	if flagRequireAuth {
		userReady := cfg.Ready
		cfg.Ready = func(peerIdentity string) {
			if peerIdentity == "" {
				log.Warn().Str("peer", peer).Msg("client presented no certificate, closing")
				nc.Close()
				return
			}
			userReady(peerIdentity)
		}
	}

	conn, err := record.NewServer(nc, cfg)
	if err != nil {
		log.Error().Str("peer", peer).Err(err).Msg("handshake failed")
		return
	}
	defer conn.Close()

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		if _, err := conn.Write(buf[:n]); err != nil {
			return
		}
	}
}
