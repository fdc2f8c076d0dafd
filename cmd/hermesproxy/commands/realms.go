package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/udisondev/hermesgo/internal/proxy"
	"github.com/udisondev/hermesgo/internal/version"
)

func realmsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "realms",
		Short: "Log in and print the realm list",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := proxy.New(cfg)
			if err != nil {
				return err
			}
			_, realms, err := p.Login(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tADDRESS\tPOPULATION\tCHARS\tSTATUS")
			for _, r := range realms {
				status := "online"
				if !r.Online() {
					status = "offline"
				}
				if r.Locked {
					status += ",locked"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%.2f\t%d\t%s\n", r.ID, r.Name, r.Address, r.Population, r.Characters, status)
			}
			return w.Flush()
		},
	}
}

func buildsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "builds",
		Short: "Print supported client builds",
		// конфиг не нужен
		PersistentPreRun: func(*cobra.Command, []string) {},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, b := range version.Supported() {
				info, err := version.Lookup(b)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-6s %s crypt=%s\n", b, info, info.Crypt)
			}
			return nil
		},
	}
}
