// Command token mints a user JWT for calling the authenticated API locally.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"wendao-market/internal/auth"
)

func main() {
	userID := flag.String("user", "", "user id to embed in the token")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" || *userID == "" {
		fmt.Fprintln(os.Stderr, "usage: JWT_SECRET=... token -user <id> [-ttl 24h]")
		os.Exit(2)
	}

	token, err := auth.NewTokenManager(secret, *ttl).GenerateToken(*userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
