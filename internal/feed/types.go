package feed

import (
	"errors"
	"time"
)

// DefaultMaxBodyLen is the largest body the publishing platform accepts.
const DefaultMaxBodyLen = 40000

// ErrFatal marks errors that must abort a run instead of being isolated to a
// single record (lost source connection, unwritable ledger, cancellation).
var ErrFatal = errors.New("fatal pipeline error")

// Candidate is one accident event selected by the source connector.
type Candidate struct {
	EventID     string
	NTSBNumber  *string
	LastChanged time.Time
}

// Document is the formatted submission built for a candidate.
type Document struct {
	EventID    string
	NTSBNumber *string
	Title      string
	Body       string
}

// InjuryCounts holds per-severity person counts. Nil pointers mean the source
// had no value for that severity.
type InjuryCounts struct {
	Fatal   *int64
	Serious *int64
	Minor   *int64
	None    *int64
}

// EventSummary is the events/aircraft join used for the title.
type EventSummary struct {
	Totals        InjuryCounts
	TotalInjuries *int64
	Ground        InjuryCounts
	Date          *time.Time
	Make          *string
	Model         *string
	City          *string
	State         *string
	Country       *string
}

// Narratives holds the four free-text narrative fields of an event.
type Narratives struct {
	Preliminary   *string
	Final         *string
	ProbableCause *string
	Incident      *string
}

// AircraftInfo backs the aircraft and owner/operator table.
type AircraftInfo struct {
	Make         *string
	Registration *string
	Model        *string
	Series       *string
	Category     *string
	Homebuilt    *string
}

// WeatherInfo backs the meteorological information and flight plan table.
type WeatherInfo struct {
	BasicCondition     *string
	LightCondition     *string
	ObsFacilityID      *string
	ObsElevationFt     *int64
	ObsTime            *int64
	ObsTimeZone        *string
	ObsDistanceNM      *float64
	TempF              *int64
	DewPointF          *int64
	NonCeilingSky      *string
	NonCeilingHeight   *int64
	WindSpeedKts       *int64
	GustKts            *int64
	WindDirectionDeg   *int64
	CeilingSky         *string
	CeilingHeight      *int64
	VisibilitySM       *float64
	AltimeterInHg      *float64
	FlightPlanFiled    *string
	DepartureCity      *string
	DepartureState     *string
	DepartureCountry   *string
	DestinationCity    *string
	DestinationState   *string
	DestinationCountry *string
	METAR              *string
}

// ImpactInfo backs the wreckage and impact table.
type ImpactInfo struct {
	Ground    InjuryCounts
	Totals    InjuryCounts
	Damage    *string
	Fire      *string
	Explosion *string
	Latitude  *string
	Longitude *string
}

// PersonCategory is the injury table's inj_person_category code.
type PersonCategory string

// Person categories aggregated into the impact table.
const (
	PersonCrew      PersonCategory = "Crew"
	PersonPassenger PersonCategory = "Pass"
)

// Severity is the injury table's injury_level code.
type Severity string

// Severity codes understood by the injury aggregation.
const (
	SeverityFatal   Severity = "FATL"
	SeveritySerious Severity = "SERS"
	SeverityMinor   Severity = "MINR"
	SeverityNone    Severity = "NONE"
)

// InjuryRow is one row of the per-event injury table.
type InjuryRow struct {
	Category PersonCategory
	Level    Severity
	Count    int64
}

// Result summarizes one pass of the publish loop.
type Result struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Add folds another result into r.
func (r *Result) Add(other Result) {
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
	r.Skipped += other.Skipped
}

// Processed reports how many records the pass has handled.
func (r Result) Processed() int {
	return r.Succeeded + r.Failed + r.Skipped
}
