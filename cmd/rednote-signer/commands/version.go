package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/xmok/rednote-signer/pkg/models"
)

func NewVersionCommand(version, commit, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print version information about rednote-signer and the signing protocol it emits.`,
		Run: func(cmd *cobra.Command, args []string) {
			crypto := models.DefaultCryptoConfig()
			fmt.Printf("rednote-signer Version: %s\n", version)
			fmt.Printf("Git Commit: %s\n", commit)
			fmt.Printf("Build Date: %s\n", buildDate)
			fmt.Printf("Signature Version: %s (sdk %s, %s)\n", crypto.SignatureVersion, crypto.SDKVersion, crypto.X3Prefix)
			fmt.Printf("Go Version: %s\n", runtime.Version())
			fmt.Printf("Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
