package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/fx"

	"lab-management-platform/internal/container"
	"lab-management-platform/internal/models"
	"lab-management-platform/internal/services"
)

func usage() {
	fmt.Println("Usage: go run cmd/admin-token/main.go <email> <organizationId>")
	fmt.Println("       go run cmd/admin-token/main.go -verify <userId>")
	fmt.Println("Example: go run cmd/admin-token/main.go alice@example.com 3f1c...")
}

func main() {
	verify := flag.String("verify", "", "report snapshot discrepancies for a user id")
	admin := flag.Bool("admin", false, "invite as organization admin")
	flag.Usage = usage
	flag.Parse()

	if *verify == "" && flag.NArg() < 2 {
		usage()
		os.Exit(1)
	}

	app := fx.New(
		container.Module,
		fx.NopLogger,
		fx.Invoke(func(access services.AccessService, invitations services.InvitationService) {
			ctx := context.Background()

			if *verify != "" {
				found, err := access.VerifyConsistency(ctx, *verify)
				if err != nil {
					log.Fatalf("Failed to verify user '%s': %v", *verify, err)
				}
				if len(found) == 0 {
					fmt.Printf("User '%s' is consistent\n", *verify)
					return
				}
				fmt.Printf("User '%s' has %d discrepancies:\n", *verify, len(found))
				for _, d := range found {
					fmt.Printf("  %s\n", d)
				}
				os.Exit(2)
			}

			email, organizationID := flag.Arg(0), flag.Arg(1)
			result, err := invitations.Invite(ctx, "admin-token", &models.InviteUserRequest{
				OrganizationID:    organizationID,
				Email:             email,
				OrganizationAdmin: *admin,
			})
			if err != nil {
				log.Fatalf("Failed to invite '%s': %v", email, err)
			}

			fmt.Printf("Invitation token for '%s' (user %s, resent=%t):\n", email, result.User.UserID, result.Resent)
			fmt.Printf("%s\n", result.Token)
		}),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	app.Stop(context.Background())
}
