package network

import (
	"encoding/hex"
	"fmt"
	"io"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a BLAKE2b-256 digest of everything that affects the
// hydraulic solution. Cosmetic data, rules and titles are excluded.
func (n *Network) Fingerprint() string {
	h, _ := blake2b.New256(nil)
	n.writeCanonical(h)
	return hex.EncodeToString(h.Sum(nil))
}

func (n *Network) writeCanonical(w io.Writer) {
	o := n.Options
	fmt.Fprintf(w, "options|%s|%s|%g|%g|%d|%g|%s|%s|%g|%d|%d|%g\n",
		o.Units, o.Headloss, o.SpecificGravity, o.Viscosity, o.Trials, o.Accuracy,
		o.Unbalanced, o.Pattern, o.DemandMultiplier, o.CheckFreq, o.MaxCheck, o.DampLimit)
	t := n.Times
	fmt.Fprintf(w, "times|%d|%d|%d|%d|%d|%d|%d|%s\n", t.Duration, t.HydraulicStep, t.PatternStep, t.PatternStart,
		t.ReportStep, t.ReportStart, t.StartClock, t.Statistic)

	for _, node := range n.nodes {
		fmt.Fprintf(w, "node|%s|%d|%g|%g|%s|%g|%s|%g|%g|%g|%g|%g|%s\n",
			node.ID, node.Kind, node.Elevation, node.BaseDemand, node.DemandPattern,
			node.Head, node.HeadPattern, node.InitLevel, node.MinLevel, node.MaxLevel,
			node.Diameter, node.MinVolume, node.VolumeCurve)
	}
	for _, link := range n.links {
		fmt.Fprintf(w, "link|%s|%d|%s|%s|%s", link.ID, link.Kind, link.From, link.To, link.Status)
		switch {
		case link.Pipe != nil:
			p := link.Pipe
			fmt.Fprintf(w, "|%g|%g|%g|%g|%t", p.Length, p.Diameter, p.Roughness, p.MinorLoss, p.CheckValve)
		case link.Pump != nil:
			p := link.Pump
			fmt.Fprintf(w, "|%s|%g|%g|%s", p.HeadCurve, p.Power, p.Speed, p.SpeedPattern)
		case link.Valve != nil:
			v := link.Valve
			fmt.Fprintf(w, "|%s|%g|%g|%g|%s", v.Type, v.Diameter, v.Setting, v.MinorLoss, v.Curve)
		}
		io.WriteString(w, "\n")
	}

	ids := make([]string, 0, len(n.patterns))
	for id := range n.patterns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "pattern|%s|%v\n", id, n.patterns[id].Multipliers)
	}

	ids = ids[:0]
	for id := range n.curves {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(w, "curve|%s|%v\n", id, n.curves[id].Points)
	}

	for _, c := range n.Controls {
		fmt.Fprintf(w, "control|%s\n", c)
	}
}
