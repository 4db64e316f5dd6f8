// Package normalize converts raw activity records into canonical
// activities: distance in kilometers, classified activity type,
// validated bounds. It sits at the ingestion boundary so no downstream
// component ever re-parses raw tags.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/openpace/paceline/internal/domain/model"
)

// Tag keys the normalizer reads from raw records.
const (
	distanceTagKey = "distance"
	exerciseTagKey = "exercise"
	titleTagKey    = "title"
	durationTagKey = "duration"
)

// Distance handling constants. The bounds exist to discard corrupted or
// test data (a record claiming 50,000 km) without crashing the pipeline.
const (
	kmPerMile    = 1.609344
	kmPerMeter   = 0.001
	defaultMinKm = 0.01
	defaultMaxKm = 500.0
	timeBase     = 60
)

// Option applies a configuration option to the Normalizer.
type Option func(*Normalizer)

// WithBounds overrides the plausible distance range in kilometers.
func WithBounds(minKm, maxKm float64) Option {
	return func(n *Normalizer) {
		if minKm > 0 && maxKm > minKm {
			n.minKm = minKm
			n.maxKm = maxKm
		}
	}
}

// WithSynonyms merges extra activity-class synonyms into the table.
func WithSynonyms(extra map[string]model.ActivityClass) Option {
	return func(n *Normalizer) {
		for text, class := range extra {
			n.synonyms[strings.ToLower(text)] = class
		}
	}
}

// Normalizer turns RawRecords into canonical Activities. It never
// fails: any parse problem yields the rejection sentinel (DistanceKm 0,
// ClassOther) and the activity is still returned.
type Normalizer struct {
	minKm    float64
	maxKm    float64
	synonyms map[string]model.ActivityClass
}

// New creates a Normalizer with the default synonym table and bounds.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		minKm:    defaultMinKm,
		maxKm:    defaultMaxKm,
		synonyms: defaultSynonyms(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// defaultSynonyms maps the activity labels seen in the wild onto
// canonical classes. Unrecognized text classifies as ClassOther and is
// not auto-rejected; downstream filtering decides whether Other is
// acceptable for a given competition mode.
func defaultSynonyms() map[string]model.ActivityClass {
	return map[string]model.ActivityClass{
		"run":     model.ClassRun,
		"running": model.ClassRun,
		"jog":     model.ClassRun,
		"jogging": model.ClassRun,
		"cycle":   model.ClassCycle,
		"cycling": model.ClassCycle,
		"bike":    model.ClassCycle,
		"biking":  model.ClassCycle,
		"walk":    model.ClassWalk,
		"walking": model.ClassWalk,
		"hike":    model.ClassWalk,
		"hiking":  model.ClassWalk,
	}
}

// Normalize converts a raw record into a canonical Activity.
func (n *Normalizer) Normalize(raw model.RawRecord) model.Activity {
	a := model.Activity{
		RecordID:    raw.ID,
		Participant: raw.Author,
		OccurredAt:  raw.CreatedAt,
		Class:       model.ClassOther,
	}

	if tag, ok := raw.Tag(exerciseTagKey); ok {
		a.Class = n.Classify(tag.Value(0))
	}
	if tag, ok := raw.Tag(titleTagKey); ok {
		a.Title = tag.Value(0)
	}
	if tag, ok := raw.Tag(durationTagKey); ok {
		a.Duration = parseDuration(tag.Value(0))
	}

	tag, ok := raw.Tag(distanceTagKey)
	if !ok {
		return a // no distance tag: rejection sentinel stays
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(tag.Value(0)), 64)
	if err != nil {
		return a
	}
	a.RawUnit = strings.ToLower(strings.TrimSpace(tag.Value(1)))

	km, ok := toKilometers(value, a.RawUnit)
	if !ok || km < n.minKm || km > n.maxKm {
		return a // implausible or unconvertible: keep sentinel
	}
	a.DistanceKm = km
	return a
}

// Classify maps free-text activity labels through the synonym table.
func (n *Normalizer) Classify(text string) model.ActivityClass {
	class, ok := n.synonyms[strings.ToLower(strings.TrimSpace(text))]
	if !ok {
		return model.ClassOther
	}
	return class
}

// toKilometers converts a distance value to kilometers using fixed
// factors. An absent unit defaults to kilometers; an unrecognized unit
// is treated as corrupt data.
func toKilometers(value float64, unit string) (float64, bool) {
	switch unit {
	case "", "km", "kilometer", "kilometers":
		return value, true
	case "mi", "mile", "miles":
		return value * kmPerMile, true
	case "m", "meter", "meters":
		return value * kmPerMeter, true
	default:
		return 0, false
	}
}

// parseDuration accepts plain seconds ("1800"), mm:ss ("30:00") and
// hh:mm:ss ("1:30:00"). Anything else yields zero.
func parseDuration(text string) time.Duration {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(text, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	parts := strings.Split(text, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0
	}
	total := 0
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 {
			return 0
		}
		total = total*timeBase + v
	}
	return time.Duration(total) * time.Second
}
