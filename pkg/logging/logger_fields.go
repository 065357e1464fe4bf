package logging

import "time"

func String(key, value string) Field             { return Field{Key: key, Value: value} }
func Int(key string, value int) Field            { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field        { return Field{Key: key, Value: value} }
func Float64(key string, v float64) Field        { return Field{Key: key, Value: v} }
func Bool(key string, value bool) Field          { return Field{Key: key, Value: value} }
func Any(key string, value any) Field            { return Field{Key: key, Value: value} }
func Duration(key string, d time.Duration) Field { return Field{Key: key, Value: d.String()} }

// Error records err's message under "error"; a nil error records null
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error"}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Component(name string) Field   { return String("component", name) }
func Operation(op string) Field     { return String("operation", op) }
func Latency(d time.Duration) Field { return Duration("latency", d) }
func Count(n int) Field             { return Int("count", n) }
func Path(p string) Field           { return String("path", p) }

// Network model and solver fields

func NodeID(id string) Field        { return String("node", id) }
func LinkID(id string) Field        { return String("link", id) }
func Section(name string) Field     { return String("section", name) }
func Trial(n int) Field             { return Int("trial", n) }
func RelativeError(v float64) Field { return Float64("relative_error", v) }
func RunID(id string) Field         { return String("run_id", id) }

// SimTime records simulation time as seconds from the start of the run
func SimTime(seconds int64) Field { return Int64("sim_time", seconds) }
