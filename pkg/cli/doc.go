// Package cli provides the saazpay-cli command-line interface.
//
// # Overview
//
// The CLI scaffolds saazpay's page templates into a project so they can be
// edited and served by a saazpay server pointed at them.
//
// # Commands
//
// add: Copy a template folder into src/components
//
//	saazpay-cli add saazpay
//	saazpay-cli add -dir ./web -v saazpay
//
// Flags come before the folder name. Every copied file is printed, followed
// by a success line. Existing files are overwritten.
//
// # Exit Codes
//
// The CLI exits 1 with "Usage: saazpay-cli add template" when the command or
// folder name is missing, and with "Unknown template folder: <name>" for
// folders it does not ship.
package cli
