package main

import (
	"fmt"
	"os"
)

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve":
		if err := runServe(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case "--help", "-h", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("vitalsbot — read-only health database explorer for Telegram")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  vitalsbot serve     Start the bot (default)")
	fmt.Println("  vitalsbot --help    Show this help message")
	fmt.Println()
	fmt.Println("Required environment:")
	fmt.Println("  TELEGRAM_BOT_TOKEN   Telegram bot API token")
	fmt.Println("  DATABASE_URL         PostgreSQL connection string")
	fmt.Println("  TG_ALLOWED_USER_ID   Telegram user ID allowed to talk to the bot")
}
