// Command delinked-login exercises the wallet login flow against a running
// server: it connects a local key wallet, signs the challenge and prints the
// resulting session and profile.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/delinked/delinked/client"
	"github.com/delinked/delinked/core"
)

func main() {
	serverURL := flag.String("server", "http://localhost:5000", "server base URL")
	keyHex := flag.String("key", "", "hex private key; a fresh key is generated when empty")
	roleStr := flag.String("role", "candidate", "role for first-time login (organizer or candidate)")
	tokenDir := flag.String("token-dir", "", "directory for the persisted token; in-memory when empty")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	role, err := core.ParseRole(*roleStr)
	if err != nil {
		fatal(logger, "invalid role", err)
	}

	if *keyHex == "" {
		key, err := crypto.GenerateKey()
		if err != nil {
			fatal(logger, "failed to generate key", err)
		}
		*keyHex = hex.EncodeToString(crypto.FromECDSA(key))
		logger.Info("generated ephemeral key", "key", *keyHex)
	}

	wallet, err := client.NewKeyWallet(*keyHex)
	if err != nil {
		fatal(logger, "invalid key", err)
	}
	defer wallet.Close()

	var tokens client.TokenStore = client.NewMemoryTokenStore()
	if *tokenDir != "" {
		tokens = client.NewFileTokenStore(*tokenDir)
	}

	selector := func(context.Context) (core.Role, error) { return role, nil }
	api := client.NewClient(*serverURL, tokens)
	flow := client.NewFlow(api, wallet, tokens, selector, logger)

	ctx := context.Background()
	state, err := flow.Login(ctx)
	if err != nil {
		fatal(logger, "login failed", err)
	}
	logger.Info("authenticated", "address", state.Address, "role", state.User.Role)

	profile, err := api.GetProfile(ctx, core.Role(state.User.Role))
	if err != nil {
		fatal(logger, "failed to fetch profile", err)
	}

	out, _ := json.MarshalIndent(map[string]any{
		"user":    state.User,
		"profile": profile,
	}, "", "  ")
	fmt.Println(string(out))
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
