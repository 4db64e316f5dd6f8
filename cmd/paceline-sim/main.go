package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/openpace/paceline/internal/simulate"
	"github.com/openpace/paceline/pkg/logger"
)

// Default simulation constants.
const (
	defaultParticipants = 50
	defaultRecords      = 2000
	defaultDuplicates   = 200
	defaultMalformed    = 40
	defaultOutOfWindow  = 40
	defaultWrongMode    = 40
	defaultFeedLimit    = 50
	defaultTimeout      = 2 * time.Minute
)

func main() {
	var (
		participants = flag.Int("participants", defaultParticipants, "Roster size")
		records      = flag.Int("records", defaultRecords, "Well-formed activity records to generate")
		duplicates   = flag.Int("duplicates", defaultDuplicates, "Re-published duplicate records")
		malformed    = flag.Int("malformed", defaultMalformed, "Records with corrupt distance tags")
		outOfWindow  = flag.Int("out-of-window", defaultOutOfWindow, "Records before eligibility or after the end")
		wrongMode    = flag.Int("wrong-mode", defaultWrongMode, "Records of an excluded activity class")
		feedLimit    = flag.Int("feed", defaultFeedLimit, "Feed size to request from the snapshot")
		timeout      = flag.Duration("timeout", defaultTimeout, "Overall simulation deadline")
		logFile      = flag.String("log", "", "Log file for simulation output (default: simulation_TIMESTAMP.log)")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging")
		help         = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := simulate.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	config := &simulate.Config{
		Participants: *participants,
		Records:      *records,
		Duplicates:   *duplicates,
		Malformed:    *malformed,
		OutOfWindow:  *outOfWindow,
		WrongMode:    *wrongMode,
		FeedLimit:    *feedLimit,
		Timeout:      *timeout,
		LogFile:      *logFile,
		Verbose:      *verbose,
	}

	if err := simulate.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
