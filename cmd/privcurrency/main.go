// Command privcurrency runs a validator node, or drives one as a wallet
// client, for the privacy-preserving currency service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "privcurrency",
		Short: "Privacy-preserving currency node and wallet client",
	}
	root.AddCommand(newNodeCmd())
	root.AddCommand(newClientCmd())
	root.AddCommand(newDemoCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
