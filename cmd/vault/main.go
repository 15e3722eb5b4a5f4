// Command vault is the command-line interface to the vault ledger.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/vault/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cli.Execute(context.Background(), cmd); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
