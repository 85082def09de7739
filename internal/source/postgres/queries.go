package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
)

const eventSummaryQuery = `
SELECT
	e.inj_tot_t, e.inj_tot_f, e.inj_tot_s, e.inj_tot_m, e.inj_tot_n,
	e.inj_f_grnd, e.inj_s_grnd, e.inj_m_grnd,
	e.ev_date::date,
	a.acft_make, a.acft_model,
	e.ev_city, e.ev_state, e.ev_country
FROM events e
LEFT JOIN aircraft a ON a.ev_id = e.ev_id
WHERE e.ev_id = $1
ORDER BY a.aircraft_key
LIMIT 1`

// EventSummary loads the fields used to build the title.
func (e *Extract) EventSummary(ctx context.Context, eventID string) (*feed.EventSummary, error) {
	var (
		totT, totF, totS, totM, totN pgtype.Int8
		grndF, grndS, grndM          pgtype.Int8
		evDate                       pgtype.Date
		acftMake, model              pgtype.Text
		city, state, country         pgtype.Text
	)
	found, err := e.queryRow(ctx, "event summary", eventSummaryQuery, eventID,
		&totT, &totF, &totS, &totM, &totN,
		&grndF, &grndS, &grndM,
		&evDate,
		&acftMake, &model,
		&city, &state, &country,
	)
	if err != nil || !found {
		return nil, err
	}
	return &feed.EventSummary{
		TotalInjuries: normalizeInt(totT),
		Totals: feed.InjuryCounts{
			Fatal:   normalizeInt(totF),
			Serious: normalizeInt(totS),
			Minor:   normalizeInt(totM),
			None:    normalizeInt(totN),
		},
		Ground: feed.InjuryCounts{
			Fatal:   normalizeInt(grndF),
			Serious: normalizeInt(grndS),
			Minor:   normalizeInt(grndM),
		},
		Date:    normalizeDate(evDate),
		Make:    normalizeText(acftMake),
		Model:   normalizeText(model),
		City:    normalizeText(city),
		State:   normalizeText(state),
		Country: normalizeText(country),
	}, nil
}

const narrativesQuery = `
SELECT narr_accp, narr_accf, narr_cause, narr_inc
FROM narratives
WHERE ev_id = $1
ORDER BY aircraft_key
LIMIT 1`

// Narratives loads the preliminary, final, probable cause, and incident narratives.
func (e *Extract) Narratives(ctx context.Context, eventID string) (*feed.Narratives, error) {
	var prelim, final, cause, incident pgtype.Text
	found, err := e.queryRow(ctx, "narratives", narrativesQuery, eventID, &prelim, &final, &cause, &incident)
	if err != nil || !found {
		return nil, err
	}
	return &feed.Narratives{
		Preliminary:   normalizeText(prelim),
		Final:         normalizeText(final),
		ProbableCause: normalizeText(cause),
		Incident:      normalizeText(incident),
	}, nil
}

const aircraftQuery = `
SELECT acft_make, regis_no, acft_model, acft_series, acft_category, homebuilt
FROM aircraft
WHERE ev_id = $1
ORDER BY aircraft_key
LIMIT 1`

// Aircraft loads the aircraft and owner/operator fields.
func (e *Extract) Aircraft(ctx context.Context, eventID string) (*feed.AircraftInfo, error) {
	var acftMake, regis, model, series, category, homebuilt pgtype.Text
	found, err := e.queryRow(ctx, "aircraft", aircraftQuery, eventID,
		&acftMake, &regis, &model, &series, &category, &homebuilt)
	if err != nil || !found {
		return nil, err
	}
	return &feed.AircraftInfo{
		Make:         normalizeText(acftMake),
		Registration: normalizeText(regis),
		Model:        normalizeText(model),
		Series:       normalizeText(series),
		Category:     normalizeText(category),
		Homebuilt:    normalizeText(homebuilt),
	}, nil
}

const weatherQuery = `
SELECT
	e.wx_cond_basic, e.light_cond,
	e.wx_obs_fac_id, e.wx_obs_elev,
	e.wx_obs_time, e.wx_obs_tmzn,
	e.wx_obs_dist,
	e.wx_temp, e.wx_dew_pt,
	e.sky_cond_nonceil, e.sky_nonceil_ht,
	e.wind_vel_kts, e.gust_kts, e.wind_dir_deg,
	e.sky_cond_ceil, e.sky_ceil_ht,
	e.vis_sm,
	e.altimeter,
	a.flt_plan_filed,
	a.dprt_city, a.dprt_state, a.dprt_country,
	a.dest_city, a.dest_state, a.dest_country,
	e.metar
FROM events e
LEFT JOIN aircraft a ON a.ev_id = e.ev_id
WHERE e.ev_id = $1
ORDER BY a.aircraft_key
LIMIT 1`

// Weather loads the meteorological and flight plan fields.
func (e *Extract) Weather(ctx context.Context, eventID string) (*feed.WeatherInfo, error) {
	var (
		basic, light           pgtype.Text
		facID                  pgtype.Text
		elev, obsTime          pgtype.Int8
		tmzn                   pgtype.Text
		dist                   pgtype.Float8
		temp, dew              pgtype.Int8
		nonCeil                pgtype.Text
		nonCeilHt              pgtype.Int8
		windVel, gust, windDir pgtype.Int8
		ceil                   pgtype.Text
		ceilHt                 pgtype.Int8
		vis, altimeter         pgtype.Float8
		planFiled              pgtype.Text
		dprtCity, dprtState    pgtype.Text
		dprtCountry            pgtype.Text
		destCity, destState    pgtype.Text
		destCountry, metar     pgtype.Text
	)
	found, err := e.queryRow(ctx, "weather", weatherQuery, eventID,
		&basic, &light,
		&facID, &elev,
		&obsTime, &tmzn,
		&dist,
		&temp, &dew,
		&nonCeil, &nonCeilHt,
		&windVel, &gust, &windDir,
		&ceil, &ceilHt,
		&vis,
		&altimeter,
		&planFiled,
		&dprtCity, &dprtState, &dprtCountry,
		&destCity, &destState, &destCountry,
		&metar,
	)
	if err != nil || !found {
		return nil, err
	}
	return &feed.WeatherInfo{
		BasicCondition:     normalizeText(basic),
		LightCondition:     normalizeText(light),
		ObsFacilityID:      normalizeText(facID),
		ObsElevationFt:     normalizeInt(elev),
		ObsTime:            normalizeInt(obsTime),
		ObsTimeZone:        normalizeText(tmzn),
		ObsDistanceNM:      normalizeFloat(dist),
		TempF:              normalizeInt(temp),
		DewPointF:          normalizeInt(dew),
		NonCeilingSky:      normalizeText(nonCeil),
		NonCeilingHeight:   normalizeInt(nonCeilHt),
		WindSpeedKts:       normalizeInt(windVel),
		GustKts:            normalizeInt(gust),
		WindDirectionDeg:   normalizeInt(windDir),
		CeilingSky:         normalizeText(ceil),
		CeilingHeight:      normalizeInt(ceilHt),
		VisibilitySM:       normalizeFloat(vis),
		AltimeterInHg:      normalizeFloat(altimeter),
		FlightPlanFiled:    normalizeText(planFiled),
		DepartureCity:      normalizeText(dprtCity),
		DepartureState:     normalizeText(dprtState),
		DepartureCountry:   normalizeText(dprtCountry),
		DestinationCity:    normalizeText(destCity),
		DestinationState:   normalizeText(destState),
		DestinationCountry: normalizeText(destCountry),
		METAR:              normalizeText(metar),
	}, nil
}

const impactQuery = `
SELECT
	e.inj_f_grnd, e.inj_s_grnd, e.inj_m_grnd,
	e.inj_tot_f, e.inj_tot_s, e.inj_tot_m, e.inj_tot_n,
	a.damage, a.acft_fire, a.acft_expl,
	e.latitude, e.longitude
FROM events e
LEFT JOIN aircraft a ON a.ev_id = e.ev_id
WHERE e.ev_id = $1
ORDER BY a.aircraft_key
LIMIT 1`

// Impact loads the wreckage, damage, and event-level injury fields.
func (e *Extract) Impact(ctx context.Context, eventID string) (*feed.ImpactInfo, error) {
	var (
		grndF, grndS, grndM     pgtype.Int8
		totF, totS, totM, totN  pgtype.Int8
		damage, fire, explosion pgtype.Text
		latitude, longitude     pgtype.Text
	)
	found, err := e.queryRow(ctx, "impact", impactQuery, eventID,
		&grndF, &grndS, &grndM,
		&totF, &totS, &totM, &totN,
		&damage, &fire, &explosion,
		&latitude, &longitude,
	)
	if err != nil || !found {
		return nil, err
	}
	return &feed.ImpactInfo{
		Ground: feed.InjuryCounts{
			Fatal:   normalizeInt(grndF),
			Serious: normalizeInt(grndS),
			Minor:   normalizeInt(grndM),
		},
		Totals: feed.InjuryCounts{
			Fatal:   normalizeInt(totF),
			Serious: normalizeInt(totS),
			Minor:   normalizeInt(totM),
			None:    normalizeInt(totN),
		},
		Damage:    normalizeText(damage),
		Fire:      normalizeText(fire),
		Explosion: normalizeText(explosion),
		Latitude:  normalizeText(latitude),
		Longitude: normalizeText(longitude),
	}, nil
}

const injuriesQuery = `
SELECT inj_person_category, injury_level, inj_person_count
FROM injury
WHERE ev_id = $1`

// Injuries loads every injury row of the event. Rows without a category,
// level, or count are dropped.
func (e *Extract) Injuries(ctx context.Context, eventID string) ([]feed.InjuryRow, error) {
	rows, err := e.pool.Query(ctx, injuriesQuery, eventID)
	if err != nil {
		return nil, queryError("injuries", eventID, err)
	}
	defer rows.Close()

	var out []feed.InjuryRow
	for rows.Next() {
		var (
			category, level pgtype.Text
			count           pgtype.Int8
		)
		if err := rows.Scan(&category, &level, &count); err != nil {
			return nil, fmt.Errorf("scan injury row for %s: %w", eventID, err)
		}
		cat, lvl, n := normalizeText(category), normalizeCode(level), normalizeInt(count)
		if cat == nil || lvl == nil || n == nil {
			continue
		}
		out = append(out, feed.InjuryRow{
			Category: feed.PersonCategory(*cat),
			Level:    feed.Severity(*lvl),
			Count:    *n,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, queryError("injuries", eventID, err)
	}
	return out, nil
}
