// tokengen выпускает access-токен для локальной разработки.
//
//	go run ./app/tokengen -email admin@example.com
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"user-management/internal/authz"
	"user-management/pkg/config"
	"user-management/pkg/service"
)

func main() {
	email := flag.String("email", "", "Token subject (user email)")
	role := flag.String("role", "", "Optional informational role claim")
	ttl := flag.Duration("ttl", 0, "Token lifetime, defaults to JWT_ACCESS_TOKEN_TTL")
	flag.Parse()

	if *email == "" {
		fmt.Fprintln(os.Stderr, "-email is required")
		flag.Usage()
		os.Exit(2)
	}

	roleClaim := ""
	if *role != "" {
		parsed, err := authz.ParseRole(*role)
		if err != nil {
			fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
			os.Exit(2)
		}
		roleClaim = parsed.String()
	}

	cfg := config.New()
	lifetime := cfg.JWT.AccessTokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	jwtSvc := service.NewJWTService(cfg.JWT.SecretKey, lifetime, zap.NewNop())
	token, err := jwtSvc.GenerateToken(*email, roleClaim)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "expires at %s\n", time.Now().Add(lifetime).Format(time.RFC3339))
	fmt.Println(token)
}
