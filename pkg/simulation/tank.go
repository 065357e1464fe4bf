package simulation

import (
	"math"

	"github.com/dd0wney/cluso-hydraulics/pkg/network"
	"github.com/dd0wney/cluso-hydraulics/pkg/units"
)

// tank carries the storage geometry of one tank in ft and ft³
type tank struct {
	node     int
	id       string
	elev     float64
	min, max float64 // levels
	area     float64

	// volume maps level to volume and level maps it back; both are nil for
	// cylindrical tanks
	volume, level *network.Curve
}

func newTanks(net *network.Network, conv *units.Converter) ([]tank, error) {
	var tanks []tank
	for i, node := range net.Nodes() {
		if node.Kind != network.Tank {
			continue
		}
		d := conv.TankDiameterIn(node.Diameter)
		tk := tank{
			node: i,
			id:   node.ID,
			elev: conv.LengthIn(node.Elevation),
			min:  conv.LengthIn(node.MinLevel),
			max:  conv.LengthIn(node.MaxLevel),
			area: math.Pi * d * d / 4,
		}
		if node.VolumeCurve != "" {
			c, err := net.Curve(node.VolumeCurve)
			if err != nil {
				return nil, network.MissingCurve("volume", "tank "+node.ID, node.VolumeCurve)
			}
			tk.volume = &network.Curve{ID: c.ID, Kind: network.CurveVolume}
			tk.level = &network.Curve{ID: c.ID, Kind: network.CurveVolume}
			for _, p := range c.Points {
				x, y := conv.LengthIn(p.X), conv.VolumeIn(p.Y)
				tk.volume.Points = append(tk.volume.Points, network.Point{X: x, Y: y})
				tk.level.Points = append(tk.level.Points, network.Point{X: y, Y: x})
			}
		}
		tanks = append(tanks, tk)
	}
	return tanks, nil
}

// advance returns the head after net inflow q (cfs) for dt seconds, held
// within the tank's level limits
func (tk *tank) advance(head, q, dt float64) float64 {
	level := head - tk.elev
	switch {
	case tk.volume != nil:
		v, _ := tk.volume.Interpolate(level)
		level, _ = tk.level.Interpolate(v + q*dt)
	case tk.area > 0:
		level += q * dt / tk.area
	}
	return tk.elev + math.Min(math.Max(level, tk.min), tk.max)
}
