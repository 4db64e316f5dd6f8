package simulate

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/openpace/paceline/internal/adapters/source"
	"github.com/openpace/paceline/internal/domain/model"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	distanceCaseCount  = 4
	unitCaseCount      = 3
)

// Constants for distance generation ranges, in the unit being emitted.
const (
	shortRunMin    = 1.0
	shortRunRange  = 4.0
	longRunMin     = 5.0
	longRunRange   = 15.0
	ultraMin       = 20.0
	ultraRange     = 80.0
	casualWalkMin  = 0.5
	casualWalkMax  = 3.0
	casualWalkSpan = 2.5
)

// Distance tag unit cases.
const (
	caseKilometers = 0
	caseMiles      = 1
	caseMeters     = 2
)

// randomFloat returns a random float64 between 0.0 and 1.0 using
// crypto/rand.
func randomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func randomIntn(n int64) int64 {
	v, _ := rand.Int(rand.Reader, big.NewInt(n))
	return v.Int64()
}

// plan is the full synthetic workload plus the independently computed
// expectation the snapshot is verified against.
type plan struct {
	competition model.Competition
	records     []model.RawRecord
	// expected total kilometers per participant, counting each
	// well-formed in-window record exactly once.
	expected map[model.Identity]float64
	// expectedCount is the accepted-activity count per participant.
	expectedCount map[model.Identity]int
}

// buildPlan generates the roster, the competition and every synthetic
// record class the engine has to survive: duplicates, malformed tags,
// out-of-window timestamps and wrong-mode activities.
func buildPlan(config *Config, now time.Time) *plan {
	participants := make([]model.Participant, config.Participants)
	eligibleFrom := now.Add(-30 * 24 * time.Hour)
	for i := range participants {
		participants[i] = model.Participant{
			Identity:     model.Identity("sim_" + uuid.NewString()),
			EligibleFrom: eligibleFrom,
		}
	}
	roster, err := model.NewRoster(participants)
	if err != nil {
		// Generated identities are unique by construction.
		panic(err)
	}

	p := &plan{
		competition: model.Competition{
			ID:            "simulated-league",
			Name:          "Simulated League",
			EndAt:         now.Add(30 * 24 * time.Hour),
			CourseTotalKm: 500,
			Mode:          model.ClassRun,
			Roster:        roster,
		},
		expected:      make(map[model.Identity]float64, config.Participants),
		expectedCount: make(map[model.Identity]int, config.Participants),
	}

	window := p.competition.EndAt.Sub(eligibleFrom)
	for i := 0; i < config.Records; i++ {
		author := participants[int(randomIntn(int64(len(participants))))]
		occurredAt := eligibleFrom.Add(time.Duration(randomIntn(int64(window.Seconds()))) * time.Second)
		if occurredAt.After(now) {
			occurredAt = now
		}
		km, rec := wellFormedRecord(i, author.Identity, occurredAt)
		p.records = append(p.records, rec)
		p.expected[author.Identity] += km
		p.expectedCount[author.Identity]++
	}

	// Duplicates re-publish existing records verbatim. They must not
	// change any total.
	for i := 0; i < config.Duplicates && len(p.records) > 0; i++ {
		p.records = append(p.records, p.records[int(randomIntn(int64(config.Records)))])
	}

	for i := 0; i < config.Malformed; i++ {
		author := participants[int(randomIntn(int64(len(participants))))]
		p.records = append(p.records, malformedRecord(i, author.Identity, now))
	}

	for i := 0; i < config.OutOfWindow; i++ {
		author := participants[int(randomIntn(int64(len(participants))))]
		occurredAt := eligibleFrom.Add(-time.Duration(i+1) * time.Hour)
		if i%2 == 1 {
			occurredAt = p.competition.EndAt.Add(time.Duration(i) * time.Hour)
		}
		_, rec := wellFormedRecord(config.Records+i, author.Identity, occurredAt)
		p.records = append(p.records, rec)
	}

	for i := 0; i < config.WrongMode; i++ {
		author := participants[int(randomIntn(int64(len(participants))))]
		rec := wellFormedRecordOf(author.Identity, now.Add(-time.Duration(i+1)*time.Minute), "cycling", "12.5", "km")
		p.records = append(p.records, rec)
	}

	shuffle(p.records)
	return p
}

// wellFormedRecord emits a valid running record in a random unit and
// returns its canonical kilometer value alongside it.
func wellFormedRecord(seq int, author model.Identity, occurredAt time.Time) (float64, model.RawRecord) {
	value := variedDistance()
	var unit string
	var km float64
	switch randomIntn(unitCaseCount) {
	case caseKilometers:
		unit, km = "km", value
	case caseMiles:
		unit, km = "mi", value*1.609344
	case caseMeters:
		// Re-scale so meter records stay within plausible bounds.
		value = value * 1000
		unit, km = "m", value/1000
	}
	rec := wellFormedRecordOf(author, occurredAt, "running", strconv.FormatFloat(value, 'f', 3, 64), unit)
	rec.ID = "sim_rec_" + strconv.Itoa(seq) + "_" + uuid.NewString()
	return km, rec
}

func wellFormedRecordOf(author model.Identity, occurredAt time.Time, exercise, distance, unit string) model.RawRecord {
	return model.RawRecord{
		ID:        "sim_rec_" + uuid.NewString(),
		Author:    author,
		CreatedAt: occurredAt,
		Tags: []model.Tag{
			{"distance", distance, unit},
			{"exercise", exercise},
			{"title", "Simulated workout"},
			{"duration", "00:42:00"},
		},
		Content: "simulated",
	}
}

// malformedRecord cycles through the corruption classes the normalizer
// has to absorb without aborting a refresh.
func malformedRecord(seq int, author model.Identity, now time.Time) model.RawRecord {
	rec := model.RawRecord{
		ID:        "sim_bad_" + strconv.Itoa(seq) + "_" + uuid.NewString(),
		Author:    author,
		CreatedAt: now.Add(-time.Duration(seq+1) * time.Minute),
		Content:   "simulated",
	}
	switch seq % 4 {
	case 0: // no distance tag at all
		rec.Tags = []model.Tag{{"exercise", "running"}}
	case 1: // non-numeric value
		rec.Tags = []model.Tag{{"distance", "far", "km"}, {"exercise", "running"}}
	case 2: // unknown unit
		rec.Tags = []model.Tag{{"distance", "5", "furlongs"}, {"exercise", "running"}}
	case 3: // implausible magnitude
		rec.Tags = []model.Tag{{"distance", "50000", "km"}, {"exercise", "running"}}
	}
	return rec
}

// variedDistance creates a distance value with varied distribution.
func variedDistance() float64 {
	switch randomIntn(distanceCaseCount) {
	case 0:
		return shortRunMin + randomFloat()*shortRunRange
	case 1:
		return longRunMin + randomFloat()*longRunRange
	case 2:
		return ultraMin + randomFloat()*ultraRange
	default:
		return casualWalkMin + randomFloat()*casualWalkSpan
	}
}

// shuffle randomizes record order so the engine's order-insensitivity
// is actually exercised.
func shuffle(records []model.RawRecord) {
	for i := len(records) - 1; i > 0; i-- {
		j := int(randomIntn(int64(i + 1)))
		records[i], records[j] = records[j], records[i]
	}
}

// publish feeds the plan's records into the in-memory source as
// activity records.
func (p *plan) publish(src *source.MemorySource) {
	src.Publish(source.KindActivity, p.records...)
}
