package main

import (
	"fmt"
	"os"

	"github.com/zinkosoft/sensestream/cmd"
	"github.com/zinkosoft/sensestream/internal/conf"
	"github.com/zinkosoft/sensestream/internal/errors"
	"github.com/zinkosoft/sensestream/internal/logging"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(errors.ExitCode(err))
	}

	logging.Init(logging.ParseLevel(settings.Main.LogLevel))

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		code := errors.ExitCode(err)
		if code == errors.ExitOK {
			code = 1
		}
		os.Exit(code)
	}
}
