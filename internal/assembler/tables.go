package assembler

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/JakeFAU/ntsb-publisher/internal/feed"
)

// table is a four-column markdown table of label/value pairs.
type table struct {
	title string
	rows  [][4]string
}

func (t table) String() string {
	var b strings.Builder
	b.WriteString("## **" + t.title + "**\n")
	b.WriteString("Category|Data|Category|Data\n")
	b.WriteString(":--|:--|:--|:--\n")
	for _, r := range t.rows {
		line := r[0] + " | " + r[1] + " | " + r[2] + " | " + r[3]
		b.WriteString(strings.TrimRight(line, " ") + "\n")
	}
	b.WriteString("\n")
	return b.String()
}

func aircraftTable(a *feed.AircraftInfo) string {
	if a == nil {
		return ""
	}
	return table{
		title: "Aircraft and Owner/Operator Information",
		rows: [][4]string{
			{"Aircraft Make:", text(a.Make), "Registration:", text(a.Registration)},
			{"Model/Series:", join(" / ", a.Model, a.Series), "Aircraft Category:", text(a.Category)},
			{"Amateur Built:", text(a.Homebuilt), "", ""},
		},
	}.String()
}

func weatherTable(w *feed.WeatherInfo) string {
	if w == nil {
		return ""
	}
	return table{
		title: "Meteorological Information and Flight Plan",
		rows: [][4]string{
			{"Conditions at Accident Site:", text(w.BasicCondition), "Condition of Light:", text(w.LightCondition)},
			{
				"Observation Facility, Elevation:", join(", ", w.ObsFacilityID, unit(w.ObsElevationFt, " ft MSL")),
				"Observation Time:", join(" ", intText(w.ObsTime), w.ObsTimeZone),
			},
			{
				"Distance from Accident Site:", text(floatUnit(w.ObsDistanceNM, " nautical miles")),
				"Temperature/Dew Point:", join(" / ", unit(w.TempF, "°F"), unit(w.DewPointF, "°F")),
			},
			{
				"Lowest Cloud Condition:", join(", ", w.NonCeilingSky, unit(w.NonCeilingHeight, " ft AGL")),
				"Wind Speed/Gusts, Direction:", wind(w),
			},
			{
				"Lowest Ceiling:", join(" / ", w.CeilingSky, unit(w.CeilingHeight, " ft AGL")),
				"Visibility:", visibility(w.VisibilitySM),
			},
			{"Altimeter Setting:", altimeter(w.AltimeterInHg), "Type of Flight Plan Filed:", text(w.FlightPlanFiled)},
			{
				"Departure Point:", join(", ", w.DepartureCity, w.DepartureState, w.DepartureCountry),
				"Destination:", join(", ", w.DestinationCity, w.DestinationState, w.DestinationCountry),
			},
			{"METAR:", text(w.METAR), "", ""},
		},
	}.String()
}

func impactTable(i *feed.ImpactInfo, people personInjuries) string {
	if i == nil {
		return ""
	}
	return table{
		title: "Wreckage and Impact Information",
		rows: [][4]string{
			{"Crew Injuries:", people.Crew.String(), "Aircraft Damage:", text(i.Damage)},
			{"Passenger Injuries:", people.Passenger.String(), "Aircraft Fire:", text(i.Fire)},
			{"Ground Injuries:", tallyOf(i.Ground).String(), "Aircraft Explosion:", text(i.Explosion)},
			{"Total Injuries:", tallyOf(i.Totals).String(), "Latitude, Longitude:", join(", ", i.Latitude, i.Longitude)},
		},
	}.String()
}

// wind renders "speed / gust knots, direction°".
func wind(w *feed.WeatherInfo) string {
	out := join(" / ", intText(w.WindSpeedKts), intText(w.GustKts))
	if out != "" {
		out += " knots"
	}
	if w.WindDirectionDeg != nil {
		if out != "" {
			out += ", "
		}
		out += strconv.FormatInt(*w.WindDirectionDeg, 10) + "°"
	}
	return out
}

func visibility(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.0f statute miles", *v)
}

func altimeter(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(math.Round(*v*100)/100, 'f', -1, 64) + " inches Hg"
}

func text(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// join concatenates the present values with sep. It returns "" when none are present.
func join(sep string, values ...*string) string {
	return strings.Join(appendPresent(nil, values...), sep)
}

func intText(n *int64) *string {
	if n == nil {
		return nil
	}
	s := strconv.FormatInt(*n, 10)
	return &s
}

func unit(n *int64, suffix string) *string {
	s := intText(n)
	if s == nil {
		return nil
	}
	out := *s + suffix
	return &out
}

func floatUnit(f *float64, suffix string) *string {
	if f == nil {
		return nil
	}
	s := strconv.FormatFloat(*f, 'f', -1, 64) + suffix
	return &s
}
