package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/marcelsud/webhook-sender/subscriptions"
)

/* validate-subscriptions - Standalone CLI tool to validate subscriptions.yaml
 * Usage: go run cmd/validate-subscriptions/main.go [subscriptions.yaml]
 * Exit codes: 0 = valid, 1 = invalid
 */

func main() {
	path := "subscriptions.yaml"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	fmt.Printf("Validating subscriptions file: %s\n", path)
	fmt.Println(strings.Repeat("-", 50))

	loader := subscriptions.NewLoader()
	if err := loader.Load(path); err != nil {
		fmt.Fprintf(os.Stderr, "VALIDATION FAILED\n\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	seeds := loader.List()
	fmt.Printf("VALIDATION PASSED\n\n")
	fmt.Printf("Loaded %d subscription(s) for %d owner(s):\n", len(seeds), len(loader.Owners()))

	for i, seed := range seeds {
		sub := seed.Subscription
		fmt.Printf("\n%d. Subscription: %s/%s\n", i+1, seed.Owner, sub.ID)
		fmt.Printf("   URI:     %s\n", sub.URI)
		fmt.Printf("   Filters: %s\n", strings.Join(sub.Filters, ", "))
		fmt.Printf("   Paused:  %t\n", sub.IsPaused)
		if len(sub.Headers) > 0 {
			fmt.Printf("   Headers: %d\n", len(sub.Headers))
		}
	}
}
