package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
)

func newMockExtract(t *testing.T) (pgxmock.PgxPoolIface, *Extract) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	extract, err := NewExtractWithPool(mock, "avall")
	require.NoError(t, err)
	return mock, extract
}

func TestStreamYieldsNormalizedCandidates(t *testing.T) {
	t.Parallel()

	mock, extract := newMockExtract(t)
	epoch := time.Date(2008, 1, 1, 0, 0, 0, 0, time.UTC)
	changed := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT count").
		WithArgs(epoch).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery("SELECT ev_id, ntsb_no, lchg_date").
		WithArgs(epoch).
		WillReturnRows(pgxmock.NewRows([]string{"ev_id", "ntsb_no", "lchg_date"}).
			AddRow("20240305X00001", "ERA24LA123", changed).
			AddRow("20240306X00002", "NONE", changed).
			AddRow("   ", nil, changed))

	total, seq, err := extract.Stream(context.Background(), epoch)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	var got []feed.Candidate
	for candidate, err := range seq {
		require.NoError(t, err)
		got = append(got, candidate)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "20240305X00001", got[0].EventID)
	require.NotNil(t, got[0].NTSBNumber)
	assert.Equal(t, "ERA24LA123", *got[0].NTSBNumber)
	assert.Equal(t, changed, got[0].LastChanged)
	assert.Equal(t, "20240306X00002", got[1].EventID)
	assert.Nil(t, got[1].NTSBNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStreamCountFailureIsFatal(t *testing.T) {
	t.Parallel()

	mock, extract := newMockExtract(t)
	mock.ExpectQuery("SELECT count").
		WithArgs(time.Time{}).
		WillReturnError(errors.New("relation \"events\" does not exist"))

	_, _, err := extract.Stream(context.Background(), time.Time{})
	require.Error(t, err)
	assert.ErrorIs(t, err, feed.ErrFatal)
}

func TestStreamQueryFailureYieldsFatal(t *testing.T) {
	t.Parallel()

	mock, extract := newMockExtract(t)
	mock.ExpectQuery("SELECT count").
		WithArgs(time.Time{}).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT ev_id").
		WithArgs(time.Time{}).
		WillReturnError(errors.New("connection reset"))

	_, seq, err := extract.Stream(context.Background(), time.Time{})
	require.NoError(t, err)

	var errs []error
	for _, err := range seq {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], feed.ErrFatal)
}

func TestEventSummaryMapsSentinelsToNil(t *testing.T) {
	t.Parallel()

	mock, extract := newMockExtract(t)
	evDate := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	cols := []string{
		"inj_tot_t", "inj_tot_f", "inj_tot_s", "inj_tot_m", "inj_tot_n",
		"inj_f_grnd", "inj_s_grnd", "inj_m_grnd",
		"ev_date", "acft_make", "acft_model",
		"ev_city", "ev_state", "ev_country",
	}
	mock.ExpectQuery("FROM events e").
		WithArgs("20240305X00001").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			int64(3), int64(2), nil, int64(1), nil,
			nil, nil, nil,
			evDate, "CESSNA", "172S",
			"Denver", "CO", "None",
		))

	summary, err := extract.EventSummary(context.Background(), "20240305X00001")
	require.NoError(t, err)
	require.NotNil(t, summary)
	require.NotNil(t, summary.TotalInjuries)
	assert.Equal(t, int64(3), *summary.TotalInjuries)
	require.NotNil(t, summary.Totals.Fatal)
	assert.Equal(t, int64(2), *summary.Totals.Fatal)
	assert.Nil(t, summary.Totals.Serious)
	require.NotNil(t, summary.Date)
	assert.True(t, evDate.Equal(*summary.Date))
	require.NotNil(t, summary.Make)
	assert.Equal(t, "CESSNA", *summary.Make)
	assert.Nil(t, summary.Country)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNarrativesMissingRowReturnsNil(t *testing.T) {
	t.Parallel()

	mock, extract := newMockExtract(t)
	mock.ExpectQuery("FROM narratives").
		WithArgs("20240305X00001").
		WillReturnRows(pgxmock.NewRows([]string{"narr_accp", "narr_accf", "narr_cause", "narr_inc"}))

	narr, err := extract.Narratives(context.Background(), "20240305X00001")
	require.NoError(t, err)
	assert.Nil(t, narr)
}

func TestWeatherReadsFloatsAndInts(t *testing.T) {
	t.Parallel()

	mock, extract := newMockExtract(t)
	cols := make([]string, 26)
	for i := range cols {
		cols[i] = fmt.Sprintf("c%d", i)
	}
	mock.ExpectQuery("wx_cond_basic").
		WithArgs("E1").
		WillReturnRows(pgxmock.NewRows(cols).AddRow(
			"VMC", "DAYL",
			"KDEN", int64(5434),
			int64(1453), "MST",
			float64(12),
			int64(75), int64(40),
			"FEW", int64(8000),
			int64(10), nil, int64(270),
			nil, nil,
			float64(10),
			float64(30.123),
			"NONE",
			"Denver", "CO", "USA",
			"Aspen", "CO", "USA",
			"METAR KDEN 051453Z",
		))

	wx, err := extract.Weather(context.Background(), "E1")
	require.NoError(t, err)
	require.NotNil(t, wx)
	require.NotNil(t, wx.ObsElevationFt)
	assert.Equal(t, int64(5434), *wx.ObsElevationFt)
	require.NotNil(t, wx.AltimeterInHg)
	assert.InDelta(t, 30.123, *wx.AltimeterInHg, 1e-9)
	assert.Nil(t, wx.GustKts)
	assert.Nil(t, wx.CeilingSky)
	assert.Nil(t, wx.FlightPlanFiled)
	require.NotNil(t, wx.DestinationCity)
	assert.Equal(t, "Aspen", *wx.DestinationCity)
}

func TestInjuriesDropsIncompleteRows(t *testing.T) {
	t.Parallel()

	mock, extract := newMockExtract(t)
	mock.ExpectQuery("FROM injury").
		WithArgs("E1").
		WillReturnRows(pgxmock.NewRows([]string{"inj_person_category", "injury_level", "inj_person_count"}).
			AddRow("Crew", "FATL", int64(1)).
			AddRow("Pass", "MINR", int64(2)).
			AddRow("Pass", nil, int64(4)).
			AddRow("Crew", "SERS", nil))

	rows, err := extract.Injuries(context.Background(), "E1")
	require.NoError(t, err)
	assert.Equal(t, []feed.InjuryRow{
		{Category: feed.PersonCrew, Level: feed.SeverityFatal, Count: 1},
		{Category: feed.PersonPassenger, Level: feed.SeverityMinor, Count: 2},
	}, rows)
}

func TestInjuriesKeepsNoneSeverity(t *testing.T) {
	t.Parallel()

	mock, extract := newMockExtract(t)
	mock.ExpectQuery("FROM injury").
		WithArgs("E1").
		WillReturnRows(pgxmock.NewRows([]string{"inj_person_category", "injury_level", "inj_person_count"}).
			AddRow("Crew", "NONE", int64(2)).
			AddRow("Pass", " NONE ", int64(5)).
			AddRow("Pass", "  ", int64(3)))

	rows, err := extract.Injuries(context.Background(), "E1")
	require.NoError(t, err)
	assert.Equal(t, []feed.InjuryRow{
		{Category: feed.PersonCrew, Level: feed.SeverityNone, Count: 2},
		{Category: feed.PersonPassenger, Level: feed.SeverityNone, Count: 5},
	}, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubQueryErrorsEscalateOnlyWhenFatal(t *testing.T) {
	t.Parallel()

	mock, extract := newMockExtract(t)
	mock.ExpectQuery("FROM aircraft").WithArgs("E1").WillReturnError(errors.New("invalid input syntax"))
	mock.ExpectQuery("FROM aircraft").WithArgs("E1").WillReturnError(context.Canceled)

	_, err := extract.Aircraft(context.Background(), "E1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, feed.ErrFatal)

	_, err = extract.Aircraft(context.Background(), "E1")
	require.Error(t, err)
	assert.ErrorIs(t, err, feed.ErrFatal)
}

func TestOpenRejectsInvalidExtractName(t *testing.T) {
	t.Parallel()

	opener, err := NewOpener(Config{DSN: "postgres://localhost/ntsb"})
	require.NoError(t, err)

	_, err = opener.Open(context.Background(), "avall; DROP TABLE events")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid extract name")
}

func TestNewOpenerRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := NewOpener(Config{})
	require.Error(t, err)
}

func TestMissingSchemasKeepsInputOrder(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	extracts := []string{"up01jan", "avall", "up15jan"}
	mock.ExpectQuery("FROM information_schema.schemata").
		WithArgs(extracts).
		WillReturnRows(pgxmock.NewRows([]string{"schema_name"}).AddRow("avall"))

	missing, err := missingSchemas(context.Background(), mock, extracts)
	require.NoError(t, err)
	assert.Equal(t, []string{"up01jan", "up15jan"}, missing)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMissingSchemasQueryFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	mock.ExpectQuery("FROM information_schema.schemata").
		WithArgs([]string{"avall"}).
		WillReturnError(errors.New("permission denied"))

	_, err = missingSchemas(context.Background(), mock, []string{"avall"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")

	missing, err := missingSchemas(context.Background(), mock, nil)
	require.NoError(t, err)
	assert.Empty(t, missing)
}
