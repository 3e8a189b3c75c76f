package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"resplan/internal/calendar"
	"resplan/internal/capacity"
	"resplan/internal/effort"
)

// Environment keys read from resplan.env and the process environment.
const (
	EnvCapacityFactor   = "RESPLAN_CAPACITY_FACTOR"
	EnvThreshold        = "RESPLAN_OVER_ALLOCATION_THRESHOLD"
	EnvHighUtilization  = "RESPLAN_HIGH_UTILIZATION"
	EnvHoursPerDay      = "RESPLAN_HOURS_PER_DAY"
	EnvBuffer           = "RESPLAN_BUFFER"
	EnvCompletionPhases = "RESPLAN_COMPLETION_PHASES"
	EnvStrict           = "RESPLAN_STRICT"
	EnvListenAddr       = "RESPLAN_LISTEN_ADDR"
	EnvActor            = "RESPLAN_ACTOR"
)

const (
	DefaultListenAddr = ":8080"
	DefaultActor      = "cli"
)

// Config holds engine tuning shared by the CLI and the HTTP server. Zero numeric
// values mean "use the engine default".
type Config struct {
	CapacityFactor   float64
	DefaultThreshold float64
	HighUtilization  float64
	HoursPerDay      float64
	Buffer           float64
	CompletionPhases []string
	Strict           bool
	ListenAddr       string
	Actor            string
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		CompletionPhases: capacity.DefaultCompletionPhases(),
		ListenAddr:       DefaultListenAddr,
		Actor:            DefaultActor,
	}
}

// Load reads the settings file at path when it exists, then applies RESPLAN_*
// variables from the process environment on top.
func Load(path string) (Config, error) {
	values := map[string]string{}
	if strings.TrimSpace(path) != "" {
		fileValues, err := godotenv.Read(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read settings %s: %w", path, err)
		}
		for k, v := range fileValues {
			values[k] = v
		}
	}
	for _, key := range keys() {
		if v, ok := os.LookupEnv(key); ok {
			values[key] = v
		}
	}
	return FromValues(values)
}

// FromValues builds a Config from key/value pairs, starting from Default.
func FromValues(values map[string]string) (Config, error) {
	cfg := Default()
	var errs []string
	floatValue := func(key string, dst *float64) {
		raw := strings.TrimSpace(values[key])
		if raw == "" {
			return
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			errs = append(errs, fmt.Sprintf("%s: invalid number %q", key, raw))
			return
		}
		*dst = v
	}
	floatValue(EnvCapacityFactor, &cfg.CapacityFactor)
	floatValue(EnvThreshold, &cfg.DefaultThreshold)
	floatValue(EnvHighUtilization, &cfg.HighUtilization)
	floatValue(EnvHoursPerDay, &cfg.HoursPerDay)
	floatValue(EnvBuffer, &cfg.Buffer)

	if raw := strings.TrimSpace(values[EnvCompletionPhases]); raw != "" {
		cfg.CompletionPhases = splitList(raw)
	}
	if raw := strings.TrimSpace(values[EnvStrict]); raw != "" {
		strict, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid boolean %q", EnvStrict, raw))
		} else {
			cfg.Strict = strict
		}
	}
	if raw := strings.TrimSpace(values[EnvListenAddr]); raw != "" {
		cfg.ListenAddr = raw
	}
	if raw := strings.TrimSpace(values[EnvActor]); raw != "" {
		cfg.Actor = raw
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid settings: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// Encode renders the config as resplan.env content.
func (c Config) Encode() (string, error) {
	values := map[string]string{
		EnvCompletionPhases: strings.Join(c.CompletionPhases, ","),
		EnvStrict:           strconv.FormatBool(c.Strict),
		EnvListenAddr:       c.ListenAddr,
		EnvActor:            c.Actor,
	}
	setFloat := func(key string, v float64) {
		if v > 0 {
			values[key] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	setFloat(EnvCapacityFactor, c.CapacityFactor)
	setFloat(EnvThreshold, c.DefaultThreshold)
	setFloat(EnvHighUtilization, c.HighUtilization)
	setFloat(EnvHoursPerDay, c.HoursPerDay)
	setFloat(EnvBuffer, c.Buffer)
	out, err := godotenv.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode settings: %w", err)
	}
	return out + "\n", nil
}

func (c Config) CalendarOptions() calendar.Options {
	return calendar.Options{CapacityFactor: c.CapacityFactor}
}

func (c Config) EffortOptions() effort.Options {
	return effort.Options{HoursPerDay: c.HoursPerDay, DefaultBuffer: c.Buffer}
}

func (c Config) CapacityOptions() capacity.Options {
	return capacity.Options{
		DefaultThreshold: c.DefaultThreshold,
		HighUtilization:  c.HighUtilization,
		CompletionPhases: c.CompletionPhases,
	}
}

func keys() []string {
	return []string{
		EnvCapacityFactor,
		EnvThreshold,
		EnvHighUtilization,
		EnvHoursPerDay,
		EnvBuffer,
		EnvCompletionPhases,
		EnvStrict,
		EnvListenAddr,
		EnvActor,
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
