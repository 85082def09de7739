package assembler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
)

type fakeQueries struct {
	summary    *feed.EventSummary
	narratives *feed.Narratives
	aircraft   *feed.AircraftInfo
	weather    *feed.WeatherInfo
	impact     *feed.ImpactInfo
	injuries   []feed.InjuryRow
	errs       map[string]error
}

func (f *fakeQueries) err(name string) error {
	return f.errs[name]
}

func (f *fakeQueries) EventSummary(context.Context, string) (*feed.EventSummary, error) {
	if err := f.err("summary"); err != nil {
		return nil, err
	}
	return f.summary, nil
}

func (f *fakeQueries) Narratives(context.Context, string) (*feed.Narratives, error) {
	if err := f.err("narratives"); err != nil {
		return nil, err
	}
	return f.narratives, nil
}

func (f *fakeQueries) Aircraft(context.Context, string) (*feed.AircraftInfo, error) {
	if err := f.err("aircraft"); err != nil {
		return nil, err
	}
	return f.aircraft, nil
}

func (f *fakeQueries) Weather(context.Context, string) (*feed.WeatherInfo, error) {
	if err := f.err("weather"); err != nil {
		return nil, err
	}
	return f.weather, nil
}

func (f *fakeQueries) Impact(context.Context, string) (*feed.ImpactInfo, error) {
	if err := f.err("impact"); err != nil {
		return nil, err
	}
	return f.impact, nil
}

func (f *fakeQueries) Injuries(context.Context, string) ([]feed.InjuryRow, error) {
	if err := f.err("injuries"); err != nil {
		return nil, err
	}
	return f.injuries, nil
}

func str(s string) *string { return &s }

func num(n int64) *int64 { return &n }

func flt(f float64) *float64 { return &f }

func fullQueries() *fakeQueries {
	date := time.Date(2022, 4, 1, 0, 0, 0, 0, time.UTC)
	return &fakeQueries{
		summary: &feed.EventSummary{
			TotalInjuries: num(3),
			Totals:        feed.InjuryCounts{Fatal: num(2), Minor: num(0)},
			Ground:        feed.InjuryCounts{Minor: num(1)},
			Date:          &date,
			Make:          str("CESSNA"),
			Model:         str("172S"),
			City:          str("Denver"),
			State:         str("CO"),
			Country:       str("USA"),
		},
		narratives: &feed.Narratives{
			Preliminary: str("The airplane departed."),
			Final:       str("The pilot reported."),
		},
		aircraft: &feed.AircraftInfo{
			Make:         str("CESSNA"),
			Registration: str("N12345"),
			Model:        str("172S"),
			Series:       str("SKYHAWK"),
		},
		weather: &feed.WeatherInfo{
			BasicCondition:   str("VMC"),
			ObsFacilityID:    str("KDEN"),
			ObsElevationFt:   num(5434),
			TempF:            num(75),
			DewPointF:        num(40),
			WindSpeedKts:     num(10),
			GustKts:          num(15),
			WindDirectionDeg: num(270),
			VisibilitySM:     flt(10),
			AltimeterInHg:    flt(30.1234),
		},
		impact: &feed.ImpactInfo{
			Ground:    feed.InjuryCounts{Minor: num(1)},
			Totals:    feed.InjuryCounts{Fatal: num(2)},
			Damage:    str("DEST"),
			Latitude:  str("394512N"),
			Longitude: str("1045200W"),
		},
		injuries: []feed.InjuryRow{
			{Category: feed.PersonCrew, Level: feed.SeverityFatal, Count: 1},
			{Category: feed.PersonPassenger, Level: feed.SeverityFatal, Count: 1},
		},
	}
}

func TestAssembleBuildsTitleAndBody(t *testing.T) {
	t.Parallel()

	a := New(fullQueries(), Config{}, zap.NewNop())
	doc, err := a.Assemble(context.Background(), feed.Candidate{EventID: "20220401X00001", NTSBNumber: str("CEN22LA123")})
	require.NoError(t, err)

	assert.Equal(t, "20220401X00001", doc.EventID)
	assert.Equal(t, "[2 Fatal, 1 Minor] [April 01 2022] CESSNA 172S, Denver/ CO USA", doc.Title)
	assert.True(t, strings.HasPrefix(doc.Body,
		"# NTSB Preliminary Narrative\n\nThe airplane departed.\n\n# NTSB Final Narrative\n\nThe pilot reported.\n\n---\n\n"))
	assert.Contains(t, doc.Body, "Model/Series: | 172S / SKYHAWK | Aircraft Category: |\n")
	assert.Contains(t, doc.Body, "Observation Facility, Elevation: | KDEN, 5434 ft MSL | Observation Time: |\n")
	assert.Contains(t, doc.Body, "Temperature/Dew Point: | 75°F / 40°F\n")
	assert.Contains(t, doc.Body, "Wind Speed/Gusts, Direction: | 10 / 15 knots, 270°\n")
	assert.Contains(t, doc.Body, "Visibility: | 10 statute miles\n")
	assert.Contains(t, doc.Body, "Altimeter Setting: | 30.12 inches Hg | Type of Flight Plan Filed: |\n")
	assert.Contains(t, doc.Body, "Crew Injuries: | 1 Fatal | Aircraft Damage: | DEST\n")
	assert.Contains(t, doc.Body, "Ground Injuries: | 1 Minor | Aircraft Explosion: |\n")
	assert.Contains(t, doc.Body, "Latitude, Longitude: | 394512N, 1045200W\n")
	assert.True(t, strings.HasSuffix(doc.Body, "with the NTSB Number **CEN22LA123**\n"))
}

func TestAssembleSignatureWithoutNTSBNumber(t *testing.T) {
	t.Parallel()

	a := New(&fakeQueries{}, Config{}, nil)
	doc, err := a.Assemble(context.Background(), feed.Candidate{EventID: "E1"})
	require.NoError(t, err)
	assert.Empty(t, doc.Title)
	assert.Equal(t, signature(nil), doc.Body)
	assert.Contains(t, doc.Body, "**No data**")
}

func TestAssembleOmitsFailedBlock(t *testing.T) {
	t.Parallel()

	q := fullQueries()
	q.errs = map[string]error{"weather": errors.New("bad column")}
	a := New(q, Config{}, zap.NewNop())

	doc, err := a.Assemble(context.Background(), feed.Candidate{EventID: "E1"})
	require.NoError(t, err)
	assert.NotContains(t, doc.Body, "Meteorological Information")
	assert.Contains(t, doc.Body, "Aircraft and Owner/Operator Information")
	assert.Contains(t, doc.Body, "Wreckage and Impact Information")
}

func TestAssembleOmitsImpactWhenInjuriesFail(t *testing.T) {
	t.Parallel()

	q := fullQueries()
	q.errs = map[string]error{"injuries": errors.New("bad column")}
	doc, err := New(q, Config{}, nil).Assemble(context.Background(), feed.Candidate{EventID: "E1"})
	require.NoError(t, err)
	assert.NotContains(t, doc.Body, "Wreckage and Impact Information")
}

func TestAssemblePropagatesFatalErrors(t *testing.T) {
	t.Parallel()

	q := fullQueries()
	q.errs = map[string]error{"narratives": fmt.Errorf("%w: connection lost", feed.ErrFatal)}
	_, err := New(q, Config{}, nil).Assemble(context.Background(), feed.Candidate{EventID: "E1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, feed.ErrFatal)
}

func TestAssembleTruncatesLongNarrative(t *testing.T) {
	t.Parallel()

	q := fullQueries()
	q.narratives = &feed.Narratives{Final: str(strings.Repeat("x", 50000))}
	doc, err := New(q, Config{MaxBodyLen: 20000}, nil).Assemble(context.Background(), feed.Candidate{EventID: "E1"})
	require.NoError(t, err)

	assert.Equal(t, 20000, utf8.RuneCountInString(doc.Body))
	idx := strings.Index(doc.Body, "## **Aircraft")
	require.Positive(t, idx)
	assert.Equal(t, "...", doc.Body[idx-3:idx])
}

func TestFitBodyTruncationScenario(t *testing.T) {
	t.Parallel()

	narrative := strings.Repeat("n", 50000)
	tables := strings.Repeat("t", 500)

	body, err := fitBody(narrative, tables, 40000)
	require.NoError(t, err)
	assert.Len(t, body, 40000)
	assert.Equal(t, tables, body[len(body)-500:])
	assert.Equal(t, "...", body[len(body)-503:len(body)-500])
}

func TestFitBodyKeepsShortNarrative(t *testing.T) {
	t.Parallel()

	body, err := fitBody("narr", "tables", 100)
	require.NoError(t, err)
	assert.Equal(t, "narrtables", body)
}

func TestFitBodyCountsRunes(t *testing.T) {
	t.Parallel()

	body, err := fitBody(strings.Repeat("é", 100), "°°", 50)
	require.NoError(t, err)
	assert.Equal(t, 50, utf8.RuneCountInString(body))
	assert.True(t, utf8.ValidString(body))
	assert.True(t, strings.HasSuffix(body, "...°°"))
}

func TestFitBodyTablesTooLong(t *testing.T) {
	t.Parallel()

	_, err := fitBody("narr", strings.Repeat("t", 11), 10)
	require.ErrorIs(t, err, ErrTablesTooLong)

	body, err := fitBody("narr", strings.Repeat("t", 9), 10)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("t", 9), body)
}

func TestNormalizeEncoding(t *testing.T) {
	t.Parallel()

	in := "ï¬\u0081quotedï¬\u0082 pilotâ\u0084¢s 270ï¿½ and 90�"
	assert.Equal(t, `"quoted" pilot's 270° and 90°`, normalizeEncoding(in))
}
