// Command sweeptrace draws timestamped samples as a sweeping trace and
// records, replays and inspects scope sessions.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/roach88/sweeptrace/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
