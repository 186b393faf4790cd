// Command calendar-auth runs the OAuth consent flow for the bot's Google
// Calendar and writes the token file read by cmd/api.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"

	"github.com/wolfman30/wellness-commerce-bot/internal/calendar"
	appconfig "github.com/wolfman30/wellness-commerce-bot/internal/config"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	oauthCfg, err := calendar.OAuthConfig(cfg.GoogleCredentialsPath)
	if err != nil {
		log.Fatal(err)
	}

	authURL := oauthCfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Printf("Open this URL in a browser and authorise access:\n\n%s\n\nPaste the authorisation code: ", authURL)

	code, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		log.Fatalf("read code: %v", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		log.Fatal("authorisation code is required")
	}

	tok, err := oauthCfg.Exchange(context.Background(), code)
	if err != nil {
		log.Fatalf("exchange code: %v", err)
	}
	if err := calendar.SaveToken(cfg.GoogleTokenPath, tok); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("token saved to %s\n", cfg.GoogleTokenPath)
}
