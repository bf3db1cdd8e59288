package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/chainsafe/glitch-bridge/pkg/app/relayer"
	"github.com/chainsafe/glitch-bridge/pkg/config"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to configuration file")
	envPath    = flag.String("env", ".env", "Path to an optional .env file")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", *envPath, err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if cfg.RequireSignerKey() != nil {
		key, err := promptSignerKey()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read signer key: %v\n", err)
			os.Exit(1)
		}
		cfg.Destination.SignerPrivateKey = key
	}
	if err := cfg.RequireSignerKey(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if err := relayer.NewServer(cfg).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Relayer stopped with error: %v\n", err)
		os.Exit(1)
	}
}

// promptSignerKey reads the signer secret from the terminal without echo.
func promptSignerKey() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", config.ErrMissingSignerKey
	}

	fmt.Fprint(os.Stderr, "Destination signer private key or mnemonic: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}
