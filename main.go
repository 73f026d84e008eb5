// =============================================================================
// Faktury Export - Main Entry Point
// =============================================================================
//
// USAGE:
//   faktury export <ledger>    - Write the XML export document
//   faktury preview <ledger>   - Show the draft invoices
//   faktury submit <ledger>    - Create the invoices in Fakturoid
//   faktury check              - Test the Fakturoid connection
//   faktury serve              - Run the HTTP API
//   faktury version            - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : ingestion, invoicing, rendering, submission and the API
//   - pkg/       : shared file utilities
//
// =============================================================================

package main

import (
	"github.com/dpeterek-muni/faktury-export/cmd"
	"github.com/joho/godotenv"
)

func main() {
	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load()
	cmd.Execute()
}
