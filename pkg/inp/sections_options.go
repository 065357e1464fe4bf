package inp

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dd0wney/cluso-hydraulics/pkg/network"
	"github.com/dd0wney/cluso-hydraulics/pkg/units"
)

// optionKeys lists multi-word option names, longest first
var optionKeys = []string{
	"DEMAND MULTIPLIER", "SPECIFIC GRAVITY", "EMITTER EXPONENT",
	"UNITS", "HEADLOSS", "VISCOSITY", "TRIALS", "ACCURACY", "UNBALANCED",
	"PATTERN", "CHECKFREQ", "MAXCHECK", "DAMPLIMIT", "HYDRAULICS",
	"QUALITY", "DIFFUSIVITY", "TOLERANCE", "MAP", "HEADERROR", "FLOWCHANGE",
	"DEMAND MODEL", "MINIMUM PRESSURE", "REQUIRED PRESSURE", "PRESSURE EXPONENT",
}

// splitKey matches the longest known key at the start of a line and returns
// it with the remaining fields. Unknown keys use the first field.
func splitKey(l Line, keys []string) (string, []string) {
	up := strings.ToUpper(strings.Join(l.Fields, " "))
	for _, k := range keys {
		kw := strings.Fields(k)
		if len(l.Fields) >= len(kw) && (up == k || strings.HasPrefix(up, k+" ")) {
			return k, l.Fields[len(kw):]
		}
	}
	return strings.ToUpper(l.Fields[0]), l.Fields[1:]
}

func parseOptions(net *network.Network, lines []Line) error {
	errs := newRowErrors("OPTIONS")
	o := &net.Options
	if o.Extra == nil {
		o.Extra = map[string]string{}
	}
	for _, l := range lines {
		key, rest := splitKey(l, optionKeys)
		if len(rest) == 0 {
			errs.add(l, "option %s has no value", key)
			continue
		}
		valueLine := Line{No: l.No, Text: l.Text, Fields: rest}
		switch key {
		case "UNITS":
			u, err := units.ParseFlowUnits(rest[0])
			if err != nil {
				errs.add(l, "%v", err)
				continue
			}
			o.Units = u
		case "HEADLOSS":
			f, err := network.ParseHeadloss(rest[0])
			if err != nil {
				errs.add(l, "%v", err)
				continue
			}
			o.Headloss = f
		case "SPECIFIC GRAVITY":
			o.SpecificGravity, _ = errs.float(valueLine, 0, "specific gravity")
		case "VISCOSITY":
			o.Viscosity, _ = errs.float(valueLine, 0, "viscosity")
		case "TRIALS":
			o.Trials = errs.whole(valueLine, 0, "trials")
		case "ACCURACY":
			o.Accuracy, _ = errs.float(valueLine, 0, "accuracy")
		case "UNBALANCED":
			p, err := network.ParseUnbalanced(rest)
			if err != nil {
				errs.add(l, "%v", err)
				continue
			}
			o.Unbalanced = p
		case "PATTERN":
			o.Pattern = rest[0]
		case "DEMAND MULTIPLIER":
			o.DemandMultiplier, _ = errs.float(valueLine, 0, "demand multiplier")
		case "CHECKFREQ":
			o.CheckFreq = errs.whole(valueLine, 0, "checkfreq")
		case "MAXCHECK":
			o.MaxCheck = errs.whole(valueLine, 0, "maxcheck")
		case "DAMPLIMIT":
			o.DampLimit, _ = errs.float(valueLine, 0, "damplimit")
		default:
			o.Extra[key] = strings.Join(rest, " ")
		}
	}
	return errs.err()
}

var timeKeys = []string{
	"HYDRAULIC TIMESTEP", "QUALITY TIMESTEP", "PATTERN TIMESTEP", "PATTERN START",
	"REPORT TIMESTEP", "REPORT START", "START CLOCKTIME", "RULE TIMESTEP",
	"DURATION", "STATISTIC",
}

func parseTimes(net *network.Network, lines []Line) error {
	errs := newRowErrors("TIMES")
	t := &net.Times
	for _, l := range lines {
		key, rest := splitKey(l, timeKeys)
		if len(rest) == 0 {
			errs.add(l, "%s has no value", key)
			continue
		}
		if key == "STATISTIC" {
			t.Statistic = strings.ToUpper(rest[0])
			continue
		}
		d, err := parseDuration(rest)
		if err != nil {
			errs.add(l, "%v", err)
			continue
		}
		switch key {
		case "DURATION":
			t.Duration = d
		case "HYDRAULIC TIMESTEP":
			t.HydraulicStep = d
		case "QUALITY TIMESTEP":
			t.QualityStep = d
		case "PATTERN TIMESTEP":
			t.PatternStep = d
		case "PATTERN START":
			t.PatternStart = d
		case "REPORT TIMESTEP":
			t.ReportStep = d
		case "REPORT START":
			t.ReportStart = d
		case "START CLOCKTIME":
			t.StartClock = d
		case "RULE TIMESTEP":
		default:
			errs.add(l, "unknown time option %q", key)
		}
	}
	return errs.err()
}

func (e *rowErrors) whole(l Line, i int, name string) int {
	v, ok := e.float(l, i, name)
	if !ok {
		return 0
	}
	if v != float64(int(v)) {
		e.add(l, "%s must be a whole number, got %v", name, v)
		return 0
	}
	return int(v)
}

// parseDuration reads a time value in any of the forms
//
//	decimal hours          "2.5"
//	hours:minutes[:secs]   "1:30", "0:00:30"
//	value with unit        "30 MIN", "2 HOURS", "1 DAY", "45 SEC"
//	clock time             "6 PM", "12:30 am"
func parseDuration(fields []string) (time.Duration, error) {
	if len(fields) == 0 {
		return 0, fmt.Errorf("missing time value")
	}
	base, err := parseClockValue(fields[0])
	if err != nil {
		return 0, err
	}
	if len(fields) == 1 {
		return base, nil
	}

	unit := strings.ToUpper(fields[1])
	hours := base.Hours()
	switch {
	case unit == "AM" || unit == "PM":
		if hours < 0 || hours >= 13 {
			return 0, fmt.Errorf("invalid clock time %q %s", fields[0], fields[1])
		}
		if hours >= 12 {
			base -= 12 * time.Hour
		}
		if unit == "PM" {
			base += 12 * time.Hour
		}
		return base, nil
	case strings.HasPrefix(unit, "SEC"):
		return time.Duration(hours * float64(time.Second)), nil
	case strings.HasPrefix(unit, "MIN"):
		return time.Duration(hours * float64(time.Minute)), nil
	case strings.HasPrefix(unit, "HOUR"):
		return base, nil
	case strings.HasPrefix(unit, "DAY"):
		return time.Duration(hours * 24 * float64(time.Hour)), nil
	}
	return 0, fmt.Errorf("unknown time unit %q", fields[1])
}

// parseClockValue reads "h", "h.h", "h:mm" or "h:mm:ss" as a duration.
func parseClockValue(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	var total float64
	scale := 3600.0
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		total += v * scale
		scale /= 60
	}
	return time.Duration(total * float64(time.Second)), nil
}
