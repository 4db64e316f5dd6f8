// Package simulate drives the scoring engine end to end with a
// synthetic workload: generated rosters, records in mixed units,
// duplicates, malformed tags and out-of-window activity, then verifies
// the published snapshot against an independent expectation.
package simulate

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/openpace/paceline/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "simulation_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the simulation tool.
func ShowHelp() {
	os.Stdout.WriteString(`Paceline Scoring Simulator
==========================

Runs the scoring engine in-process against a generated workload and
verifies the resulting leaderboard, feed and membership phases.

Usage:
  go run cmd/paceline-sim/main.go [options]

Options:
  -participants int
        Roster size (default 50)
  -records int
        Well-formed activity records to generate (default 2000)
  -duplicates int
        Re-published duplicate records (default 200)
  -malformed int
        Records with corrupt distance tags (default 40)
  -out-of-window int
        Records before eligibility or after the end (default 40)
  -wrong-mode int
        Records of an excluded activity class (default 40)
  -feed int
        Feed size to request from the snapshot (default 50)
  -timeout duration
        Overall simulation deadline (default 2m)
  -log string
        Log file for simulation output (default: simulation_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Simulate with default settings
  go run cmd/paceline-sim/main.go

  # Heavier workload
  go run cmd/paceline-sim/main.go -participants 500 -records 50000

  # Only clean records
  go run cmd/paceline-sim/main.go -duplicates 0 -malformed 0 -out-of-window 0
`)
}
