package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dd0wney/cluso-hydraulics/pkg/export"
)

// EnvPrefix starts every recognised environment variable
const EnvPrefix = "HYDRO_"

// ApplyEnv overrides settings from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}
	var errs []string
	bad := func(name, v string, err error) {
		errs = append(errs, fmt.Sprintf("%s%s=%q: %v", EnvPrefix, name, v, err))
	}

	if v, ok := get("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}
	if v, ok := get("LOG_FORMAT"); ok {
		c.Log.Format = strings.ToLower(v)
	}
	if v, ok := get("DUPLICATES"); ok {
		c.Load.Duplicates = strings.ToLower(v)
	}
	if v, ok := get("WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			bad("WORKERS", v, err)
		}
		c.Simulation.Workers = n
	}
	if v, ok := get("DURATION"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			bad("DURATION", v, err)
		}
		c.Simulation.Duration = d
	}
	if v, ok := get("STEP"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			bad("STEP", v, err)
		}
		c.Simulation.Step = d
	}
	if v, ok := get("REQUIRED_PRESSURE"); ok {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			bad("REQUIRED_PRESSURE", v, err)
		}
		c.Simulation.RequiredPressure = p
	}
	if v, ok := get("ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := get("JWT_SECRET"); ok {
		c.Server.JWTSecret = v
	}
	if v, ok := get("EXPORT_DIR"); ok {
		if c.Export.File == nil {
			c.Export.File = &export.FileConfig{}
		}
		c.Export.File.Dir = v
	}
	if v, ok := get("DATABASE_URL"); ok {
		if c.Export.Postgres == nil {
			c.Export.Postgres = &export.PostgresConfig{}
		}
		c.Export.Postgres.URL = v
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return nil
}
