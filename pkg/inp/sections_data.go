package inp

import (
	"strconv"
	"strings"

	"github.com/dd0wney/cluso-hydraulics/pkg/network"
)

func parseTitle(net *network.Network, lines []Line) error {
	for _, l := range lines {
		net.Title = append(net.Title, l.Text)
	}
	return nil
}

// ID  multiplier ...   (a pattern may continue over several lines)
func parsePatterns(net *network.Network, lines []Line) error {
	errs := newRowErrors("PATTERNS")
	for _, l := range lines {
		mults := make([]float64, 0, len(l.Fields)-1)
		ok := true
		for i := 1; i < len(l.Fields); i++ {
			v, good := errs.float(l, i, "multiplier")
			if !good {
				ok = false
				break
			}
			mults = append(mults, v)
		}
		if ok {
			net.AddPattern(l.Fields[0], mults...)
		}
	}
	return errs.err()
}

// ID  X  Y
func parseCurves(net *network.Network, lines []Line) error {
	errs := newRowErrors("CURVES")
	for _, l := range lines {
		if !errs.need(l, 3) {
			continue
		}
		x, ok1 := errs.float(l, 1, "x value")
		y, ok2 := errs.float(l, 2, "y value")
		if !ok1 || !ok2 {
			continue
		}
		id := l.Fields[0]
		fresh := !net.HasCurve(id)
		c := net.AddCurve(id, network.Point{X: x, Y: y})
		if fresh {
			c.Kind = curveKindFromComment(l.Comment)
		}
	}
	return errs.err()
}

func curveKindFromComment(comment string) network.CurveKind {
	tag, _, found := strings.Cut(strings.ToUpper(comment), ":")
	if !found {
		return network.CurveUnknown
	}
	switch strings.TrimSpace(tag) {
	case "PUMP":
		return network.CurvePump
	case "EFFICIENCY":
		return network.CurveEfficiency
	case "VOLUME":
		return network.CurveVolume
	case "HEADLOSS":
		return network.CurveHeadLoss
	}
	return network.CurveUnknown
}

//	LINK id OPEN|CLOSED|setting IF NODE id ABOVE|BELOW value
//	LINK id OPEN|CLOSED|setting AT TIME t
//	LINK id OPEN|CLOSED|setting AT CLOCKTIME t [AM|PM]
func parseControls(net *network.Network, lines []Line) error {
	errs := newRowErrors("CONTROLS")
	for _, l := range lines {
		if !errs.need(l, 6) {
			continue
		}
		if upper(l, 0) != "LINK" {
			errs.add(l, "control must start with LINK")
			continue
		}
		ctl := network.Control{Link: l.Fields[1]}
		if status, err := network.ParseStatus(l.Fields[2]); err == nil {
			ctl.Status = status
		} else if v, perr := strconv.ParseFloat(l.Fields[2], 64); perr == nil {
			ctl.HasSetting = true
			ctl.Setting = v
			ctl.Status = network.Active
		} else {
			errs.add(l, "invalid control action %q", l.Fields[2])
			continue
		}

		switch upper(l, 3) {
		case "IF":
			if !errs.need(l, 8) {
				continue
			}
			if upper(l, 4) != "NODE" {
				errs.add(l, "expected NODE after IF")
				continue
			}
			ctl.Node = l.Fields[5]
			switch upper(l, 6) {
			case "ABOVE":
				ctl.Trigger = network.TriggerAbove
			case "BELOW":
				ctl.Trigger = network.TriggerBelow
			default:
				errs.add(l, "expected ABOVE or BELOW, got %q", l.Fields[6])
				continue
			}
			v, ok := errs.float(l, 7, "control level")
			if !ok {
				continue
			}
			ctl.Value = v
		case "AT":
			switch upper(l, 4) {
			case "TIME":
				ctl.Trigger = network.TriggerTime
			case "CLOCKTIME":
				ctl.Trigger = network.TriggerClockTime
			default:
				errs.add(l, "expected TIME or CLOCKTIME, got %q", l.Fields[4])
				continue
			}
			d, err := parseDuration(l.Fields[5:])
			if err != nil {
				errs.add(l, "%v", err)
				continue
			}
			ctl.Seconds = int64(d.Seconds())
		default:
			errs.add(l, "expected IF or AT, got %q", l.Fields[3])
			continue
		}
		net.Controls = append(net.Controls, ctl)
	}
	return errs.err()
}

// Rules are kept verbatim, grouped by their RULE header.
func parseRules(net *network.Network, lines []Line) error {
	errs := newRowErrors("RULES")
	for _, l := range lines {
		if upper(l, 0) == "RULE" {
			if !errs.need(l, 2) {
				continue
			}
			net.Rules = append(net.Rules, network.Rule{ID: l.Fields[1]})
			continue
		}
		if len(net.Rules) == 0 {
			errs.add(l, "rule clause before any RULE header")
			continue
		}
		r := &net.Rules[len(net.Rules)-1]
		r.Lines = append(r.Lines, l.Text)
	}
	return errs.err()
}

//	GLOBAL EFFIC|PRICE|PATTERN value
//	PUMP id EFFIC|PRICE|PATTERN value
//	DEMAND CHARGE value
func parseEnergy(net *network.Network, lines []Line) error {
	errs := newRowErrors("ENERGY")
	e := &net.Energy
	if e.Pumps == nil {
		e.Pumps = map[string]network.PumpEnergy{}
	}
	for _, l := range lines {
		if !errs.need(l, 3) {
			continue
		}
		switch upper(l, 0) {
		case "GLOBAL":
			switch key := upper(l, 1); {
			case strings.HasPrefix(key, "EFFIC"):
				e.GlobalEfficiency, _ = errs.float(l, 2, "efficiency")
			case key == "PRICE":
				e.GlobalPrice, _ = errs.float(l, 2, "price")
			case key == "PATTERN":
				e.GlobalPattern = l.Fields[2]
			default:
				errs.add(l, "unknown GLOBAL energy keyword %q", l.Fields[1])
			}
		case "DEMAND":
			e.DemandCharge, _ = errs.float(l, 2, "demand charge")
		case "PUMP":
			if !errs.need(l, 4) {
				continue
			}
			id := l.Fields[1]
			pe := e.Pumps[id]
			switch key := upper(l, 2); {
			case strings.HasPrefix(key, "EFFIC"):
				if v, err := strconv.ParseFloat(l.Fields[3], 64); err == nil {
					pe.Efficiency = v
				} else {
					pe.EfficiencyCurve = l.Fields[3]
					if c, err := net.Curve(l.Fields[3]); err == nil {
						c.Kind = network.CurveEfficiency
					}
				}
			case key == "PRICE":
				pe.Price, _ = errs.float(l, 3, "price")
			case key == "PATTERN":
				pe.PricePattern = l.Fields[3]
			default:
				errs.add(l, "unknown PUMP energy keyword %q", l.Fields[2])
			}
			e.Pumps[id] = pe
		default:
			errs.add(l, "unknown energy statement %q", l.Fields[0])
		}
	}
	return errs.err()
}

// Reactions are retained as keyword/value lines; quality is not simulated.
func parseReactions(net *network.Network, lines []Line) error {
	errs := newRowErrors("REACTIONS")
	for _, l := range lines {
		if !errs.need(l, 2) {
			continue
		}
		n := len(l.Fields)
		keyword := make([]string, n-1)
		copy(keyword, l.Fields[:n-1])
		net.Reactions = append(net.Reactions, network.Reaction{Keyword: keyword, Value: l.Fields[n-1]})
	}
	return errs.err()
}

func parseReport(net *network.Network, lines []Line) error {
	for _, l := range lines {
		n := len(l.Fields)
		if n == 1 {
			net.Report[strings.ToUpper(l.Fields[0])] = ""
			continue
		}
		net.Report[strings.ToUpper(strings.Join(l.Fields[:n-1], " "))] = l.Fields[n-1]
	}
	return nil
}
