package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/xmok/rednote-signer/internal/crypto"
	"github.com/xmok/rednote-signer/internal/evasion/fingerprinting"
	"github.com/xmok/rednote-signer/pkg/models"
)

type fingerprintOutput struct {
	SessionID   string             `json:"session_id" yaml:"session_id"`
	Digest      string             `json:"digest" yaml:"digest"`
	B1          string             `json:"b1,omitempty" yaml:"b1,omitempty"`
	Fingerprint models.Fingerprint `json:"fingerprint" yaml:"fingerprint"`
}

func NewFingerprintCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Generate a browser fingerprint",
		Long: `Generate the x1..x82 browser fingerprint a signing session carries and,
with --b1, the b1 value derived from it.`,
		RunE: runFingerprint,
	}
	cmd.Flags().Bool("b1", false, "also derive b1 from the fingerprint")
	cmd.Flags().String("url", "", "page url recorded in the fingerprint (defaults to fingerprint.default_location)")
	addSignerFlags(cmd)
	return cmd
}

func runFingerprint(cmd *cobra.Command, args []string) error {
	cfg, err := LoadAppConfig()
	if err != nil {
		return err
	}
	if err := applySignerFlags(cmd, cfg); err != nil {
		return err
	}
	cookies, err := cookiesFromFlags(cmd)
	if err != nil {
		return err
	}

	sm := newSessionManager(cfg, nil)
	session, err := sm.StartSession(cookies, cfg.Signer.UserAgent)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer func() { _ = sm.EndSession(session.ID) }()

	url, _ := cmd.Flags().GetString("url")
	if url == "" {
		url = cfg.Fingerprint.DefaultLocation
	}
	fp := session.Fingerprint(url)
	out := fingerprintOutput{
		SessionID:   session.ID,
		Digest:      fp.Digest(),
		Fingerprint: fp,
	}

	if withB1, _ := cmd.Flags().GetBool("b1"); withB1 {
		err := session.Do(func(_ *crypto.CryptoProcessor, g *fingerprinting.FingerprintGenerator) error {
			var err error
			out.B1, err = g.GenerateB1(fp)
			return err
		})
		if err != nil {
			return fmt.Errorf("derive b1: %w", err)
		}
	}
	return writeOutput(os.Stdout, cfg.Global.Output, out)
}
