// ABOUTME: Generates HS256 access tokens for manual testing
// ABOUTME: Signs GoTrue-shaped claims with JWT_SECRET so local verification accepts them

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func main() {
	if len(os.Args) < 4 {
		fmt.Fprintf(os.Stderr, "Usage: JWT_SECRET=... %s <user-id> <email> <token-type>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Token types: valid, expiring, expired\n")
		os.Exit(1)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintf(os.Stderr, "JWT_SECRET is not set\n")
		os.Exit(1)
	}

	userID := os.Args[1]
	email := os.Args[2]
	tokenType := os.Args[3]

	now := time.Now()
	var exp time.Time
	switch tokenType {
	case "valid":
		exp = now.Add(time.Hour)
	case "expiring":
		// Inside the session refresh threshold
		exp = now.Add(30 * time.Second)
	case "expired":
		now = now.Add(-2 * time.Hour)
		exp = now.Add(time.Hour)
	default:
		fmt.Fprintf(os.Stderr, "Unknown token type: %s\n", tokenType)
		os.Exit(1)
	}

	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"role":  "authenticated",
		"aud":   "authenticated",
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sign: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(signed)
}
