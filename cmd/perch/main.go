package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/soyeahso/perch/internal/cli"
	"github.com/tillberg/autorestart"
)

func main() {
	// Optional .env for PERCH_* overrides; absence is fine.
	_ = godotenv.Load()

	// Dev convenience: swap in the new binary when it is rebuilt.
	go autorestart.RestartOnChange()

	// The command tree silences cobra's own error output, so the only
	// place an error reaches the user is here.
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "perch:", err)
		os.Exit(1)
	}
}
