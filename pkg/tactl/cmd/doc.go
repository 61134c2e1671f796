// Package cmd implements the tactl command tree.
package cmd
