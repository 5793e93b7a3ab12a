package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mastr/internal/credentials"
)

var services = []credentials.Service{credentials.Registry, credentials.Warehouse}

// loginCommand makes sure credentials are stored, prompting for whatever
// is missing.
func (a *app) loginCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "login [registry|warehouse]",
		Short:     "Store registry and warehouse credentials, prompting for missing ones",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{string(credentials.Registry), string(credentials.Warehouse)},
		RunE: func(cmd *cobra.Command, args []string) error {
			want := services
			if len(args) == 1 {
				want = []credentials.Service{credentials.Service(args[0])}
			}
			p := a.credentialProvider()
			for _, svc := range want {
				c, err := p.Get(cmd.Context(), svc)
				if err != nil {
					return failed(err)
				}
				fmt.Fprintf(a.stdout, "%s: %s\n", svc, c.User)
			}
			return nil
		},
	}
}
