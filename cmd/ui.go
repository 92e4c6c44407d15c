/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	isTTY = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	// Color helpers
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	white  = color.New(color.FgWhite, color.Bold).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

// newSpinner starts a spinner on terminals; it returns nil otherwise
func newSpinner(suffix string) *spinner.Spinner {
	if !isTTY {
		return nil
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = suffix
	s.Start()
	return s
}

// stopSpinner stops s if it is running
func stopSpinner(s *spinner.Spinner) {
	if s != nil {
		s.Stop()
	}
}
