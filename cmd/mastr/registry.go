package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mastr/internal/registry"
)

func (a *app) registryCommand() *cobra.Command {
	var (
		service string
		port    string
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Authenticate against the MaStR SOAP API and describe the bound port",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := registry.Options{
				WSDLURL:  a.settings.WSDLURL,
				CacheTTL: a.settings.WSDLCacheTTL,
				Service:  service,
				Port:     port,
			}
			if !noCache {
				opts.CachePath = a.settings.WSDLCachePath
			}

			sess, err := registry.Open(cmd.Context(), a.credentialProvider(), opts, a.log)
			if err != nil {
				return failed(err)
			}
			defer sess.Client.Close()

			w := a.stdout
			fmt.Fprintf(w, "service:    %s\n", sess.Port.Service())
			fmt.Fprintf(w, "port:       %s\n", sess.Port.Name())
			fmt.Fprintf(w, "address:    %s\n", sess.Port.Address())
			fmt.Fprintf(w, "user:       %s\n", sess.User)
			fmt.Fprintf(w, "operations: %s\n", strings.Join(sess.Port.Operations(), ", "))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&service, "service", registry.DefaultService, "WSDL service to bind")
	f.StringVar(&port, "port", registry.DefaultPort, "WSDL port to bind")
	f.BoolVar(&noCache, "no-cache", false, "always fetch the WSDL instead of using the disk cache")
	return cmd
}
