// mediactl is the operator CLI. Unlike the admin HTTP endpoints it runs
// maintenance synchronously against the configured backends, which makes
// it suitable for cron and one-off migration work.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/wavecms/mediastore/pkg/mediastore/config"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	env, err := config.ReadEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := newRootCmd(env).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
