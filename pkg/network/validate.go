package network

import (
	"github.com/dd0wney/cluso-hydraulics/pkg/units"
	"github.com/dd0wney/cluso-hydraulics/pkg/validation"
)

// Validate checks every model invariant and returns a *ValidationError
// listing all violations, or nil.
func (n *Network) Validate() error {
	c := validation.NewCollector("network")

	n.validateOptions(c.For("options", ""))
	for _, node := range n.nodes {
		n.validateNode(c.For(node.Kind.String(), node.ID), node)
	}
	for _, link := range n.links {
		n.validateLink(c.For(link.Kind.String(), link.ID), link)
	}
	for _, p := range n.Patterns() {
		if len(p.Multipliers) == 0 {
			c.For("pattern", p.ID).Addf("multipliers", "pattern is empty")
		}
	}
	for _, curve := range n.Curves() {
		validateCurve(c.For("curve", curve.ID), curve)
	}
	for i, ctl := range n.Controls {
		n.validateControl(c.For("control", ctl.Link), i, ctl)
	}

	if len(n.nodes) > 0 && len(n.Reservoirs())+len(n.Tanks()) == 0 {
		c.For("network", "").Addf("", "no reservoir or tank fixes the hydraulic grade")
	}

	if c.HasErrors() {
		return &ValidationError{Violations: c.Violations()}
	}
	return nil
}

// Lint returns soft findings that do not block a solve, such as negative
// pattern multipliers.
func (n *Network) Lint() []validation.Violation {
	c := validation.NewCollector("network")
	for _, p := range n.Patterns() {
		for i, m := range p.Multipliers {
			if m < 0 {
				c.For("pattern", p.ID).Addf("multipliers", "period %d has negative multiplier %g", i, m)
			}
		}
	}
	for _, node := range n.nodes {
		if node.Kind == Junction && node.BaseDemand < 0 {
			c.For("junction", node.ID).Addf("demand", "negative demand %g is treated as inflow", node.BaseDemand)
		}
	}
	return c.Violations()
}

func (n *Network) validateOptions(c *validation.Collector) {
	o := n.Options
	c.Custom("units", func() error {
		_, err := units.ParseFlowUnits(string(o.Units))
		return err
	})
	c.OneOf("headloss", string(o.Headloss), []string{string(HazenWilliams), string(DarcyWeisbach), string(ChezyManning)})
	c.MinInt("trials", o.Trials, 1)
	c.RangeFloat("accuracy", o.Accuracy, 1e-12, 1)
	c.MinInt("unbalanced", o.Unbalanced.ExtraTrials, 0)
	c.NonNegativeFloat("demand_multiplier", o.DemandMultiplier).Finite("demand_multiplier", o.DemandMultiplier)
	c.PositiveFloat("specific_gravity", o.SpecificGravity)
	c.PositiveFloat("viscosity", o.Viscosity)
	c.MinInt("checkfreq", o.CheckFreq, 1)
	c.MinInt("maxcheck", o.MaxCheck, 0)
	c.NonNegativeFloat("damplimit", o.DampLimit)

	t := n.Times
	c.When(t.Duration > 0, func(c *validation.Collector) {
		c.Custom("hydraulic_timestep", func() error {
			if t.HydraulicStep <= 0 {
				return errPositiveStep
			}
			return nil
		})
	})
	c.Custom("pattern_timestep", func() error {
		if t.PatternStep <= 0 {
			return errPositiveStep
		}
		return nil
	})
}

func (n *Network) validateNode(c *validation.Collector, node *Node) {
	c.Custom("id", func() error { return validation.ValidateID(node.ID) })
	switch node.Kind {
	case Junction:
		c.Finite("elevation", node.Elevation).Finite("demand", node.BaseDemand)
		c.Reference("pattern", "pattern", node.DemandPattern, n.HasPattern)
	case Reservoir:
		c.Finite("head", node.Head)
		c.Reference("pattern", "pattern", node.HeadPattern, n.HasPattern)
	case Tank:
		c.Finite("elevation", node.Elevation)
		c.NonNegativeFloat("min_level", node.MinLevel)
		c.Ordered("min_level", node.MinLevel, "init_level", node.InitLevel)
		c.Ordered("init_level", node.InitLevel, "max_level", node.MaxLevel)
		c.NonNegativeFloat("min_volume", node.MinVolume)
		c.When(node.VolumeCurve == "", func(c *validation.Collector) {
			c.PositiveFloat("diameter", node.Diameter)
		})
		c.Reference("volume_curve", "curve", node.VolumeCurve, n.HasCurve)
	}
}

func (n *Network) validateLink(c *validation.Collector, link *Link) {
	c.Custom("id", func() error { return validation.ValidateID(link.ID) })
	c.Reference("from", "node", link.From, n.HasNode)
	c.Reference("to", "node", link.To, n.HasNode)
	c.Required("from", link.From).Required("to", link.To)
	if link.From != "" && link.From == link.To {
		c.Addf("to", "link connects node %q to itself", link.From)
	}

	switch link.Kind {
	case Pipe:
		if link.Pipe == nil {
			c.Addf("", "pipe has no attributes")
			return
		}
		p := link.Pipe
		c.PositiveFloat("length", p.Length)
		c.PositiveFloat("diameter", p.Diameter)
		c.PositiveFloat("roughness", p.Roughness)
		c.NonNegativeFloat("minor_loss", p.MinorLoss)
	case Pump:
		if link.Pump == nil {
			c.Addf("", "pump has no attributes")
			return
		}
		p := link.Pump
		if p.HeadCurve == "" && !(p.Power > 0) {
			c.Addf("", "pump needs a HEAD curve or positive POWER")
		}
		c.Reference("head_curve", "curve", p.HeadCurve, n.HasCurve)
		if curve, err := n.Curve(p.HeadCurve); err == nil {
			validatePumpCurve(c, curve)
		}
		c.NonNegativeFloat("speed", p.Speed)
		c.Reference("speed_pattern", "pattern", p.SpeedPattern, n.HasPattern)
	case Valve:
		if link.Valve == nil {
			c.Addf("", "valve has no attributes")
			return
		}
		v := link.Valve
		c.PositiveFloat("diameter", v.Diameter)
		c.NonNegativeFloat("minor_loss", v.MinorLoss)
		c.OneOf("type", string(v.Type), []string{string(PRV), string(PSV), string(PBV), string(FCV), string(TCV), string(GPV)})
		switch v.Type {
		case GPV:
			c.Required("curve", v.Curve)
			c.Reference("curve", "curve", v.Curve, n.HasCurve)
		case FCV, TCV:
			c.NonNegativeFloat("setting", v.Setting)
		}
		if v.Type == PRV || v.Type == PSV || v.Type == FCV {
			for _, end := range []string{link.From, link.To} {
				if node, err := n.Node(end); err == nil && node.Kind.FixedHead() {
					c.Addf("", "%s cannot connect directly to %s %q", v.Type, node.Kind, end)
				}
			}
		}
	}
}

func validateCurve(c *validation.Collector, curve *Curve) {
	if len(curve.Points) == 0 {
		c.Addf("points", "curve has no points")
		return
	}
	for i := 1; i < len(curve.Points); i++ {
		if curve.Points[i].X <= curve.Points[i-1].X {
			c.Addf("points", "x values must increase (point %d)", i+1)
			return
		}
	}
}

func validatePumpCurve(c *validation.Collector, curve *Curve) {
	pts := curve.Points
	switch len(pts) {
	case 0:
		return
	case 1:
		if !(pts[0].X > 0 && pts[0].Y > 0) {
			c.Addf("head_curve", "single-point curve needs positive flow and head")
		}
		return
	}
	for i := 1; i < len(pts); i++ {
		if pts[i].Y >= pts[i-1].Y {
			c.Addf("head_curve", "curve %q head must decrease with flow", curve.ID)
			return
		}
	}
}

func (n *Network) validateControl(c *validation.Collector, i int, ctl Control) {
	field := "controls"
	link, err := n.Link(ctl.Link)
	if err != nil {
		c.Addf(field, "control %d references unknown link %q", i+1, ctl.Link)
		return
	}
	switch ctl.Trigger {
	case TriggerAbove, TriggerBelow:
		c.Reference(field, "node", ctl.Node, n.HasNode)
		c.Finite(field, ctl.Value)
		if node, err := n.Node(ctl.Node); err == nil && node.Kind == Reservoir {
			c.Addf(field, "control %d tests reservoir %q, which has no level or pressure", i+1, ctl.Node)
		}
	case TriggerTime, TriggerClockTime:
		if ctl.Seconds < 0 {
			c.Addf(field, "control %d has negative time", i+1)
		}
	}
	if ctl.HasSetting && link.Kind == Pipe {
		c.Addf(field, "control %d sets a numeric setting on pipe %q", i+1, link.ID)
	}
}
