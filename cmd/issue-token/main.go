package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/mocktest/engine/internal/config"
	"github.com/mocktest/engine/internal/logger"
	"github.com/mocktest/engine/internal/service"
)

func main() {
	userID := flag.Int("user", 0, "user ID carried in the token")
	name := flag.String("name", "", "display name carried in the token")
	perms := flag.String("perms", "", "comma-separated permissions, e.g. tests:read_all")
	expiry := flag.Duration("expiry", 0, "token lifetime (defaults to JWT_EXPIRY_HOURS)")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if *userID <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -user must be a positive ID")
		flag.Usage()
		os.Exit(2)
	}

	secret, ok := os.LookupEnv("JWT_SECRET")
	if !ok || secret == "" {
		secret = promptSecret()
	}
	if secret == "" {
		log.Fatal().Msg("JWT_SECRET is not set")
	}

	lifetime := cfg.JWTExpiry
	if *expiry > 0 {
		lifetime = *expiry
	}

	var permissions []string
	for _, p := range strings.Split(*perms, ",") {
		if p = strings.TrimSpace(p); p != "" {
			permissions = append(permissions, p)
		}
	}

	auth := service.NewAuthService(secret, lifetime)
	token, err := auth.GenerateToken(*userID, *name, permissions)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to sign token")
	}

	fmt.Fprintf(os.Stderr, "Token for user %d expires at %s\n", *userID, time.Now().Add(lifetime).Format(time.RFC3339))
	fmt.Println(token)
}

// promptSecret reads the signing secret without echo on a terminal, or a
// single line from piped stdin.
func promptSecret() string {
	fd := int(syscall.Stdin)
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Enter JWT secret: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(b))
	}

	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line)
}
