package commands

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/xmok/rednote-signer/internal/crypto"
)

type payloadOutput struct {
	Length     int    `json:"length" yaml:"length"`
	PayloadHex string `json:"payload_hex" yaml:"payload_hex"`
	X3         string `json:"x3" yaml:"x3"`
}

func NewPayloadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payload",
		Short: "Build and dump the raw x3 payload",
		Long: `Build the binary payload that is XOR-masked into x3 and print it as hex
together with the resulting x3 string. Useful for comparing against captures.`,
		RunE: runPayload,
	}
	cmd.Flags().String("md5", "", "32-character hex digest of the request content")
	cmd.Flags().String("a1", "", "a1 cookie value")
	cmd.Flags().String("string", "", "request content string (its length is embedded)")
	cmd.Flags().Float64("timestamp", 0, "unix timestamp in seconds (defaults to now)")
	addSignerFlags(cmd)
	_ = cmd.MarkFlagRequired("md5")
	return cmd
}

func runPayload(cmd *cobra.Command, args []string) error {
	cfg, err := LoadAppConfig()
	if err != nil {
		return err
	}
	if err := applySignerFlags(cmd, cfg); err != nil {
		return err
	}

	digest, _ := cmd.Flags().GetString("md5")
	a1, _ := cmd.Flags().GetString("a1")
	content, _ := cmd.Flags().GetString("string")
	ts, _ := cmd.Flags().GetFloat64("timestamp")

	processor, err := crypto.NewCryptoProcessor(cfg.CryptoConfig(), logrus.StandardLogger())
	if err != nil {
		return err
	}
	payload, err := processor.BuildPayloadArray(digest, a1, cfg.Signer.AppID, content, ts)
	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}

	return writeOutput(os.Stdout, cfg.Global.Output, payloadOutput{
		Length:     len(payload),
		PayloadHex: hex.EncodeToString(payload),
		X3:         processor.BuildX3(payload),
	})
}
