package inp

import (
	"github.com/dd0wney/cluso-hydraulics/pkg/network"
)

// ID  Elevation  [Demand  [Pattern]]
func parseJunctions(net *network.Network, lines []Line) error {
	errs := newRowErrors("JUNCTIONS")
	for _, l := range lines {
		if !errs.need(l, 2) {
			continue
		}
		elev, ok1 := errs.float(l, 1, "elevation")
		demand, ok2 := errs.optFloat(l, 2, "demand", 0)
		if !ok1 || !ok2 {
			continue
		}
		errs.wrap(net.AddNode(&network.Node{
			ID:            l.Fields[0],
			Kind:          network.Junction,
			Elevation:     elev,
			BaseDemand:    demand,
			DemandPattern: errs.optString(l, 3),
		}), l)
	}
	return errs.err()
}

// ID  Head  [Pattern]
func parseReservoirs(net *network.Network, lines []Line) error {
	errs := newRowErrors("RESERVOIRS")
	for _, l := range lines {
		if !errs.need(l, 2) {
			continue
		}
		head, ok := errs.float(l, 1, "head")
		if !ok {
			continue
		}
		errs.wrap(net.AddNode(&network.Node{
			ID:          l.Fields[0],
			Kind:        network.Reservoir,
			Elevation:   head,
			Head:        head,
			HeadPattern: errs.optString(l, 2),
		}), l)
	}
	return errs.err()
}

// ID  Elevation  InitLevel  MinLevel  MaxLevel  Diameter  [MinVol  [VolCurve]]
func parseTanks(net *network.Network, lines []Line) error {
	errs := newRowErrors("TANKS")
	for _, l := range lines {
		if !errs.need(l, 6) {
			continue
		}
		var vals [6]float64
		ok := true
		names := [...]string{"", "elevation", "initial level", "minimum level", "maximum level", "diameter"}
		for i := 1; i <= 5; i++ {
			v, good := errs.float(l, i, names[i])
			vals[i] = v
			ok = ok && good
		}
		minVol, good := errs.optFloat(l, 6, "minimum volume", 0)
		if !ok || !good {
			continue
		}
		curve := errs.optString(l, 7)
		if curve == "*" {
			curve = ""
		}
		if curve != "" {
			if c, err := net.Curve(curve); err == nil {
				c.Kind = network.CurveVolume
			}
		}
		errs.wrap(net.AddNode(&network.Node{
			ID:          l.Fields[0],
			Kind:        network.Tank,
			Elevation:   vals[1],
			InitLevel:   vals[2],
			MinLevel:    vals[3],
			MaxLevel:    vals[4],
			Diameter:    vals[5],
			MinVolume:   minVol,
			VolumeCurve: curve,
		}), l)
	}
	return errs.err()
}
