package commands

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/xmok/rednote-signer/internal/signing"
	"github.com/xmok/rednote-signer/pkg/utils"
)

func NewSignCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign one API request",
		Long: `Compute the x-s and x-t headers for one request and, unless disabled
in the signer config, x-s-common and the b3/xray trace ids.`,
		Example: `  rednote-signer sign --uri /api/sns/web/v1/homefeed --method POST \
    --cookie "a1=18c...; webId=ab12" --payload '{"num":18}'`,
		RunE: runSign,
	}

	cmd.Flags().String("uri", "", "request path, e.g. /api/sns/web/v1/feed")
	cmd.Flags().StringP("method", "X", "GET", "HTTP method (GET or POST)")
	cmd.Flags().String("a1", "", "a1 cookie value (defaults to the a1 entry of --cookie)")
	cmd.Flags().String("payload", "", "query parameters (GET) or body (POST) as a JSON object")
	cmd.Flags().Float64("timestamp", 0, "unix timestamp in seconds (defaults to now)")
	cmd.Flags().Bool("no-common", false, "skip x-s-common")
	cmd.Flags().Bool("no-trace", false, "skip the trace id headers")
	addSignerFlags(cmd)
	_ = cmd.MarkFlagRequired("uri")
	return cmd
}

func runSign(cmd *cobra.Command, args []string) error {
	cfg, err := LoadAppConfig()
	if err != nil {
		return err
	}
	if err := applySignerFlags(cmd, cfg); err != nil {
		return err
	}
	if noCommon, _ := cmd.Flags().GetBool("no-common"); noCommon {
		cfg.Signer.XSCommon = false
	}
	if noTrace, _ := cmd.Flags().GetBool("no-trace"); noTrace {
		cfg.Signer.TraceIDs = false
	}

	cookies, err := cookiesFromFlags(cmd)
	if err != nil {
		return err
	}
	payloadRaw, _ := cmd.Flags().GetString("payload")
	payload, err := parsePayload(payloadRaw)
	if err != nil {
		return err
	}

	req := signing.Request{Cookies: cookies, Payload: payload, AppID: cfg.Signer.AppID}
	req.URI, _ = cmd.Flags().GetString("uri")
	req.Method, _ = cmd.Flags().GetString("method")
	req.A1, _ = cmd.Flags().GetString("a1")
	req.Timestamp, _ = cmd.Flags().GetFloat64("timestamp")
	logrus.WithField("request", utils.RedactSecrets(req)).Debug("signing request")

	sm := newSessionManager(cfg, nil)
	session, err := sm.StartSession(cookies, cfg.Signer.UserAgent)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer func() { _ = sm.EndSession(session.ID) }()

	signer := signing.NewSigner(session, signerOptions(cfg), nil, logrus.StandardLogger())
	result, err := signer.SignHeaders(req)
	if err != nil {
		return err
	}
	return writeOutput(os.Stdout, cfg.Global.Output, result)
}
