package inp

import (
	"strconv"
	"strings"

	"github.com/dd0wney/cluso-hydraulics/pkg/network"
)

// ID  Node1  Node2  Length  Diameter  Roughness  [MinorLoss  [Status]]
func parsePipes(net *network.Network, lines []Line) error {
	errs := newRowErrors("PIPES")
	for _, l := range lines {
		if !errs.need(l, 6) {
			continue
		}
		length, ok1 := errs.float(l, 3, "length")
		diam, ok2 := errs.float(l, 4, "diameter")
		rough, ok3 := errs.float(l, 5, "roughness")
		minor, ok4 := errs.optFloat(l, 6, "minor loss", 0)
		if !(ok1 && ok2 && ok3 && ok4) {
			continue
		}

		attrs := &network.PipeAttrs{Length: length, Diameter: diam, Roughness: rough, MinorLoss: minor}
		status := network.Open
		switch s := upper(l, 7); s {
		case "", "OPEN":
		case "CLOSED":
			status = network.Closed
		case "CV":
			attrs.CheckValve = true
		default:
			errs.add(l, "invalid pipe status %q", s)
			continue
		}

		errs.wrap(net.AddLink(&network.Link{
			ID: l.Fields[0], Kind: network.Pipe, From: l.Fields[1], To: l.Fields[2],
			Status: status, Pipe: attrs,
		}), l)
	}
	return errs.err()
}

// ID  Node1  Node2  keyword value ...  (HEAD curve | POWER hp | SPEED s | PATTERN id)
func parsePumps(net *network.Network, lines []Line) error {
	errs := newRowErrors("PUMPS")
	for _, l := range lines {
		if !errs.need(l, 5) {
			continue
		}
		attrs := &network.PumpAttrs{Speed: 1}
		ok := true
		for i := 3; i+1 < len(l.Fields); i += 2 {
			value := l.Fields[i+1]
			switch upper(l, i) {
			case "HEAD":
				attrs.HeadCurve = value
				if c, err := net.Curve(value); err == nil {
					c.Kind = network.CurvePump
				}
			case "POWER":
				attrs.Power, ok = errs.float(l, i+1, "power")
			case "SPEED":
				attrs.Speed, ok = errs.float(l, i+1, "speed")
			case "PATTERN":
				attrs.SpeedPattern = value
			default:
				errs.add(l, "unknown pump keyword %q", l.Fields[i])
				ok = false
			}
			if !ok {
				break
			}
		}
		if len(l.Fields)%2 == 0 {
			errs.add(l, "pump keyword %q has no value", l.Fields[len(l.Fields)-1])
			continue
		}
		if !ok {
			continue
		}
		errs.wrap(net.AddLink(&network.Link{
			ID: l.Fields[0], Kind: network.Pump, From: l.Fields[1], To: l.Fields[2],
			Status: network.Open, Pump: attrs,
		}), l)
	}
	return errs.err()
}

// ID  Node1  Node2  Diameter  Type  Setting  [MinorLoss]
func parseValves(net *network.Network, lines []Line) error {
	errs := newRowErrors("VALVES")
	for _, l := range lines {
		if !errs.need(l, 6) {
			continue
		}
		diam, ok1 := errs.float(l, 3, "diameter")
		vtype, err := network.ParseValveType(l.Fields[4])
		if err != nil {
			errs.add(l, "%v", err)
			continue
		}
		attrs := &network.ValveAttrs{Diameter: diam, Type: vtype}
		ok2 := true
		if vtype == network.GPV {
			attrs.Curve = l.Fields[5]
			if c, err := net.Curve(attrs.Curve); err == nil {
				c.Kind = network.CurveHeadLoss
			}
		} else {
			attrs.Setting, ok2 = errs.float(l, 5, "setting")
		}
		minor, ok3 := errs.optFloat(l, 6, "minor loss", 0)
		if !(ok1 && ok2 && ok3) {
			continue
		}
		attrs.MinorLoss = minor

		errs.wrap(net.AddLink(&network.Link{
			ID: l.Fields[0], Kind: network.Valve, From: l.Fields[1], To: l.Fields[2],
			Status: network.Active, Valve: attrs,
		}), l)
	}
	return errs.err()
}

// ID  OPEN|CLOSED|ACTIVE|setting
//
// A numeric value sets a pump's speed or a valve's setting; OPEN and CLOSED
// on a valve fix its status so it no longer regulates.
func parseStatus(net *network.Network, lines []Line) error {
	errs := newRowErrors("STATUS")
	for _, l := range lines {
		if !errs.need(l, 2) {
			continue
		}
		link, err := net.Link(l.Fields[0])
		if err != nil {
			errs.add(l, "%v", err)
			continue
		}
		word := strings.ToUpper(l.Fields[1])
		if status, err := network.ParseStatus(word); err == nil {
			if status == network.Active && link.Kind != network.Valve {
				errs.add(l, "only valves can be ACTIVE")
				continue
			}
			link.Status = status
			continue
		}

		v, perr := strconv.ParseFloat(l.Fields[1], 64)
		if perr != nil {
			errs.add(l, "invalid status or setting %q", l.Fields[1])
			continue
		}
		switch link.Kind {
		case network.Pump:
			link.Pump.Speed = v
			link.Status = network.Open
			if v == 0 {
				link.Status = network.Closed
			}
		case network.Valve:
			link.Valve.Setting = v
			link.Status = network.Active
		default:
			errs.add(l, "pipe %q cannot take a numeric setting", link.ID)
		}
	}
	return errs.err()
}
