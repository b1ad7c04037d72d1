package main

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/klb-systems/tlscore/eapol"
	"github.com/klb-systems/tlscore/internal/obslog"
)

var version = "dev"

var (
	flagProfile  string
	flagLink     string
	flagLogLevel string
	flagLogJSON  bool
)

// profile mirrors a wpa_supplicant network block: just enough to drive one
// 4-Way/Group-Key Handshake against a single authenticator.
type profile struct {
	SSID              string `mapstructure:"ssid"`
	Passphrase        string `mapstructure:"passphrase"`
	AuthenticatorMAC  string `mapstructure:"authenticator_mac"`
	StationMAC        string `mapstructure:"station_mac"`
	SupplicantRSNEHex string `mapstructure:"supplicant_rsne"`
	AuthenticatorRSNE string `mapstructure:"authenticator_rsne"`
}

func main() {
	root := &cobra.Command{
		Use:     "eapol-supplicant",
		Short:   "Run the WPA2 4-Way/Group-Key Handshake supplicant against an authenticator",
		Version: version,
		RunE:    runAssociate,
	}
	root.SetVersionTemplate("eapol-supplicant {{.Version}}\n")

	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "emit JSON logs instead of console logs")

	root.Flags().StringVar(&flagProfile, "profile", "profile.yaml", "network profile file (ssid, passphrase, MACs, RSNEs)")
	root.Flags().StringVar(&flagLink, "link", "", "UDP address carrying EAPoL-Key frames to/from the authenticator")
	root.MarkFlagRequired("link")

	cobra.OnInitialize(func() {
		obslog.Init(obslog.Config{Level: obslog.Level(flagLogLevel), JSONOutput: flagLogJSON})
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func parseMAC(s string) ([6]byte, error) {
	var out [6]byte
	hw, err := net.ParseMAC(s)
	if err != nil || len(hw) != 6 {
		return out, fmt.Errorf("bad MAC address %q", s)
	}
	copy(out[:], hw)
	return out, nil
}

func runAssociate(cmd *cobra.Command, args []string) error {
	log := obslog.WithComponent("eapol-supplicant")

	v := viper.New()
	v.SetConfigFile(flagProfile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading -profile: %w", err)
	}
	var p profile
	if err := v.Unmarshal(&p); err != nil {
		return fmt.Errorf("parsing -profile: %w", err)
	}

	aa, err := parseMAC(p.AuthenticatorMAC)
	if err != nil {
		return err
	}
	spa, err := parseMAC(p.StationMAC)
	if err != nil {
		return err
	}
	pmk, err := eapol.DerivePMKFromPassphrase(p.Passphrase, p.SSID)
	if err != nil {
		return fmt.Errorf("deriving PMK: %w", err)
	}
	supplicantRSNE, err := hex.DecodeString(p.SupplicantRSNEHex)
	if err != nil {
		return fmt.Errorf("decoding supplicant_rsne: %w", err)
	}
	authenticatorRSNE, err := hex.DecodeString(p.AuthenticatorRSNE)
	if err != nil {
		return fmt.Errorf("decoding authenticator_rsne: %w", err)
	}

	conn, err := net.Dial("udp", flagLink)
	if err != nil {
		return fmt.Errorf("dialing -link %s: %w", flagLink, err)
	}
	defer conn.Close()

	supp := eapol.New(eapol.Config{
		AA:                aa,
		SPA:               spa,
		PMK:               pmk,
		SupplicantRSNE:    supplicantRSNE,
		AuthenticatorRSNE: authenticatorRSNE,
		Tx: func(frame []byte) {
			if _, err := conn.Write(lengthPrefix(frame)); err != nil {
				log.Error().Err(err).Msg("tx failed")
			}
		},
		InstallTK: func(tk [16]byte) {
			fmt.Printf("✓ pairwise temporal key installed: %s\n", hex.EncodeToString(tk[:]))
		},
		InstallGTK: func(gtk []byte, keyID int) {
			fmt.Printf("✓ group temporal key installed (key id %d): %s\n", keyID, hex.EncodeToString(gtk))
		},
	})

	fmt.Printf("✓ associated with SSID %q, awaiting 4-Way Handshake from %s\n", p.SSID, p.AuthenticatorMAC)

	buf := make([]byte, 2048)
	for {
		frame, err := readFrame(conn, buf)
		if err != nil {
			return fmt.Errorf("reading from link: %w", err)
		}
		if err := supp.RxFrame(frame); err != nil {
			log.Warn().Err(err).Msg("dropping malformed EAPoL-Key frame")
		}
	}
}

// lengthPrefix/readFrame frame EAPoL-Key messages over the UDP stand-in link
// this binary uses in place of a raw Ethernet/802.11 data path.
func lengthPrefix(frame []byte) []byte {
	out := make([]byte, 2+len(frame))
	binary.BigEndian.PutUint16(out, uint16(len(frame)))
	copy(out[2:], frame)
	return out
}

func readFrame(conn net.Conn, buf []byte) ([]byte, error) {
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}
	if n < 2 {
		return nil, fmt.Errorf("short datagram")
	}
	length := int(binary.BigEndian.Uint16(buf[:2]))
	if 2+length > n {
		return nil, fmt.Errorf("truncated frame")
	}
	return buf[2 : 2+length], nil
}
