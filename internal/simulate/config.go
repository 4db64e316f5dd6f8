package simulate

import "time"

// Config holds configuration for one simulation run.
type Config struct {
	Participants int           // Roster size
	Records      int           // Number of well-formed activity records
	Duplicates   int           // Extra re-publications of existing records
	Malformed    int           // Records with corrupt or missing distance tags
	OutOfWindow  int           // Records before eligibility or after the end
	WrongMode    int           // Records of a class the competition excludes
	FeedLimit    int           // Feed size to request from the snapshot
	Timeout      time.Duration // Overall simulation deadline
	LogFile      string        // Log file for simulation output
	Verbose      bool          // Enable verbose logging
}

// Stats holds simulation statistics.
type Stats struct {
	RecordsPublished  int
	DuplicatesAdded   int
	MalformedAdded    int
	OutOfWindowAdded  int
	WrongModeAdded    int
	EntriesRanked     int
	FeedItems         int
	VerifiedParticips int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
