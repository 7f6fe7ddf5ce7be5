package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

// apiCmd sends an arbitrary request through the session's interceptor, the
// way feature code issues CRUD calls: the stored token is attached and a 401
// ends the session.
func apiCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api <method> <path>",
		Short: "Send an authenticated request to the HR API and print the response",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := strings.ToUpper(args[0])
			data, _ := cmd.Flags().GetString("data")

			hc := &http.Client{Transport: a.orch.Client.Transport(), Timeout: a.cfg.HTTP.Timeout}
			rc := resty.NewWithClient(hc).
				SetBaseURL(a.cfg.Endpoint).
				SetHeader("Accept", "application/json")

			req := rc.R().SetContext(cmd.Context())
			if data != "" {
				req.SetHeader("Content-Type", "application/json").SetBody(data)
			}

			resp, err := req.Execute(method, args[1])
			if err != nil {
				return errors.Wrapf(err, "%s %s", method, args[1])
			}

			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "%d %s\n", resp.StatusCode(), http.StatusText(resp.StatusCode()))
			if body := resp.Body(); len(body) > 0 {
				_, _ = fmt.Fprintln(w, string(body))
			}
			if resp.StatusCode() == http.StatusUnauthorized {
				return errors.Newf("session ended, sign in again (next: %s)", a.nav.Location())
			}
			if resp.IsError() {
				return errors.Newf("request failed with status %d", resp.StatusCode())
			}
			return nil
		},
	}
	cmd.Flags().StringP("data", "d", "", "JSON request body")
	return cmd
}
