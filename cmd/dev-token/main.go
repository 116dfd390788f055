package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/smarttransit/segment-booking/internal/utils"
	"github.com/smarttransit/segment-booking/pkg/jwt"
	"github.com/spf13/pflag"
)

func main() {
	newSecret := pflag.Bool("new-secret", false, "print a fresh JWT_SECRET and exit")
	email := pflag.String("email", "", "rider email to put in the token")
	name := pflag.String("name", "", "display name")
	roles := pflag.StringSlice("roles", []string{"passenger"}, "comma separated roles, e.g. passenger,admin")
	expiry := pflag.Duration("expiry", time.Hour, "token lifetime")
	pflag.Parse()

	if *newSecret {
		secret, err := utils.GenerateSecret(32)
		if err != nil {
			log.Fatalf("Failed to generate secret: %v", err)
		}
		fmt.Printf("JWT_SECRET=%s\n", secret)
		return
	}

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}
	if *email == "" {
		log.Fatal("--email is required")
	}

	token, err := jwt.NewService(secret, *expiry).GenerateAccessToken(*email, *name, *roles)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}
	fmt.Println(token)
}
