package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/arnavshah/screening-planner/internal/config"
	"github.com/arnavshah/screening-planner/pkg/auth"
	"github.com/arnavshah/screening-planner/pkg/models"
)

func main() {
	roles := flag.String("roles", string(models.RoleProgramma), "comma separated roles")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "token lifetime")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: keygen [-roles ADMIN,PROGRAMMA] [-ttl 720h] <serviceID>")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}

	m, err := auth.NewManager(cfg.JWTSecret, *ttl)
	if err != nil {
		fmt.Println("Error: JWT_SECRET not found in environment or .env")
		os.Exit(1)
	}

	var granted []models.Role
	for _, r := range strings.Split(*roles, ",") {
		role := models.Role(strings.ToUpper(strings.TrimSpace(r)))
		if !role.Valid() {
			fmt.Printf("Error: unknown role %q\n", r)
			os.Exit(1)
		}
		granted = append(granted, role)
	}

	serviceID := flag.Arg(0)
	token, err := m.CreateToken(serviceID, "", granted)
	if err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	fmt.Printf("Generated token for %s:\n%s\n", serviceID, token)
}
