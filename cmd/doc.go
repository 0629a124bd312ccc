// Package cmd provides the command-line interface for templaudit.
//
// # Available Commands
//
//   - check: Render components and audit them for accessibility
//   - watch: Re-check components whenever their sources change
//   - list: List the components a file declares and their props
//   - version: Show build information
//
// # Command Examples
//
//	// Check a component with inline props
//	templaudit check components/card.templ --props '{"title":"Test"}'
//
//	// Check several components, eight at a time, failing on violations
//	templaudit check components/*.templ --parallel 8 --fail-on-violation
//
//	// Audit with axe-core in a headless browser
//	templaudit check components/card.templ --browser --engine axe
//
// # Configuration Integration
//
// Commands respect configuration from multiple sources in order of precedence:
//
//  1. Command-line flags (highest priority)
//  2. TEMPLAUDIT_CONFIG_FILE naming the configuration file
//  3. Environment variables (TEMPLAUDIT_<SECTION>_<OPTION>), including
//     those loaded from .env
//  4. Configuration file (.templaudit.yml)
//  5. Default values (lowest priority)
//
// # Exit Codes
//
// check exits non-zero when any check returns an error response, and with
// --fail-on-violation when any component has violations. Results are
// written to stdout either way; logs go to stderr.
package cmd
