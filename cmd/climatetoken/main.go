// Command climatetoken issues API bearer tokens signed with the service's
// JWT secret.
//
// Usage:
//
//	climatetoken -config configs/config.yaml -subject panel -role operator -ttl 720h
//
// The secret is read from the config file, or from CLIMATE_JWT_SECRET when
// set. The signed token is written to stdout.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nerrad567/climate-control/internal/auth"
	"github.com/nerrad567/climate-control/internal/infrastructure/config"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run parses args, issues one token and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("climatetoken", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", configPathFromEnv(), "Path to config.yaml")
	subject := fs.String("subject", "", "Token subject (who the token is for)")
	role := fs.String("role", string(auth.RoleViewer), "Role: viewer, operator or admin")
	ttl := fs.Duration("ttl", 0, "Token lifetime (default security.jwt.access_token_ttl)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *subject == "" {
		fmt.Fprintln(stderr, "Usage: climatetoken -subject NAME [-role viewer|operator|admin] [-ttl 24h] [-config PATH]")
		fs.PrintDefaults()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: loading config: %v\n", err)
		return 1
	}

	lifetime := *ttl
	if lifetime == 0 {
		lifetime = time.Duration(cfg.Security.JWT.AccessTokenTTL) * time.Minute
	}

	token, err := auth.GenerateToken(*subject, auth.Role(*role), cfg.Security.JWT.Secret, lifetime)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, token)
	return 0
}

func configPathFromEnv() string {
	if path := os.Getenv("CLIMATE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
