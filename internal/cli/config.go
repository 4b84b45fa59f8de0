package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rtm0/climanim/internal/anim"
	"github.com/rtm0/climanim/internal/pipeline"
	"github.com/rtm0/climanim/internal/render"
	"github.com/rtm0/climanim/internal/season"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Config is the effective configuration of a run.
type Config struct {
	Verbose      bool
	Concurrency  int
	OutputDir    string
	ScalePolicy  string
	MergeYears   bool
	SeasonYear   bool
	MonthlyDelay duration
	WinterDelay  duration
	Render       render.Options
	Datasets     []pipeline.Dataset

	policy anim.ScalePolicy
}

// minFrameDelay is the shortest delay a GIF can store, one centisecond.
// Bare numbers are read as nanoseconds and fall below it.
const minFrameDelay = 10 * time.Millisecond

// duration prints as a Go duration string in TOML.
type duration time.Duration

func (d duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// LoadConfig reads and checks the configuration held by cfg. Paths have their
// environment variables expanded.
func LoadConfig(cfg *viper.Viper) (*Config, error) {
	c := &Config{
		Verbose:     cfg.GetBool("Verbose"),
		Concurrency: cfg.GetInt("Concurrency"),
		OutputDir:   os.ExpandEnv(cfg.GetString("OutputDir")),
		ScalePolicy: cfg.GetString("ScalePolicy"),
		MergeYears:  cfg.GetBool("MergeYears"),
		SeasonYear:  cfg.GetBool("SeasonYear"),
		Render: render.Options{
			Width:      cfg.GetInt("Render.Width"),
			Height:     cfg.GetInt("Render.Height"),
			DPI:        cfg.GetInt("Render.DPI"),
			ColorMap:   cfg.GetString("Render.ColorMap"),
			Shapefiles: expandStringSlice(cfg.GetStringSlice("Render.Shapefiles")),
		},
	}
	if c.Concurrency < 1 {
		return nil, fmt.Errorf("climanim: Concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	var err error
	if c.policy, err = anim.ParseScalePolicy(c.ScalePolicy); err != nil {
		return nil, fmt.Errorf("climanim: %w", err)
	}
	c.ScalePolicy = c.policy.String()
	for _, d := range []struct {
		key string
		dst *duration
	}{{"MonthlyDelay", &c.MonthlyDelay}, {"WinterDelay", &c.WinterDelay}} {
		v, err := cast.ToDurationE(cfg.Get(d.key))
		if err != nil {
			return nil, fmt.Errorf("climanim: invalid %s: %w", d.key, err)
		}
		if v < minFrameDelay {
			return nil, fmt.Errorf("climanim: %s must be at least %v, got %v", d.key, minFrameDelay, v)
		}
		*d.dst = duration(v)
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 || c.Render.DPI <= 0 {
		return nil, fmt.Errorf("climanim: invalid image size %dx%d at %d dpi",
			c.Render.Width, c.Render.Height, c.Render.DPI)
	}
	if _, err := render.NewColorMap(c.Render.ColorMap); err != nil {
		return nil, fmt.Errorf("climanim: %w", err)
	}
	if c.Datasets, err = getDatasets("Datasets", cfg); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) pipelineOptions() pipeline.Options {
	return pipeline.Options{
		OutputDir: c.OutputDir,
		Policy:    c.policy,
		Season: season.Options{
			MergeYears: c.MergeYears,
			SeasonYear: c.SeasonYear,
		},
		MonthlyDelay: time.Duration(c.MonthlyDelay),
		WinterDelay:  time.Duration(c.WinterDelay),
	}
}

func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// getDatasets returns the datasets from a viper configuration, accounting for
// the fact that they are typed when they come from the defaults and generic
// tables when they come from a configuration file.
func getDatasets(varName string, cfg *viper.Viper) ([]pipeline.Dataset, error) {
	switch v := cfg.Get(varName).(type) {
	case []pipeline.Dataset:
		return v, nil
	case []map[string]interface{}:
		tables := make([]interface{}, len(v))
		for i, t := range v {
			tables[i] = t
		}
		return datasetsFromTables(varName, tables)
	case []interface{}:
		return datasetsFromTables(varName, v)
	default:
		return nil, fmt.Errorf("climanim: invalid type for %s: %#v", varName, v)
	}
}

func datasetsFromTables(varName string, tables []interface{}) ([]pipeline.Dataset, error) {
	out := make([]pipeline.Dataset, 0, len(tables))
	names := make(map[string]bool)
	for i, t := range tables {
		m, err := cast.ToStringMapStringE(t)
		if err != nil {
			return nil, fmt.Errorf("climanim: %s[%d]: %w", varName, i, err)
		}
		get := func(key string) string {
			for k, v := range m {
				if strings.EqualFold(k, key) {
					return v
				}
			}
			return ""
		}
		ds := pipeline.Dataset{
			Name:          get("Name"),
			Dir:           os.ExpandEnv(get("Dir")),
			Pattern:       get("Pattern"),
			Variable:      get("Variable"),
			MonthlyOutput: get("MonthlyOutput"),
			MonthlyTitle:  get("MonthlyTitle"),
			WinterOutput:  get("WinterOutput"),
			WinterTitle:   get("WinterTitle"),
		}
		if ds.Name == "" {
			ds.Name = fmt.Sprintf("dataset%d", i)
		}
		if names[ds.Name] {
			return nil, fmt.Errorf("climanim: %s: duplicate dataset name %q", varName, ds.Name)
		}
		names[ds.Name] = true
		if ds.Variable == "" {
			return nil, fmt.Errorf("climanim: %s: dataset %q has no Variable", varName, ds.Name)
		}
		if ds.Pattern == "" {
			ds.Pattern = "*.nc"
		}
		if ds.MonthlyOutput == "" {
			ds.MonthlyOutput = ds.Name + "_monthly_evolution.gif"
		}
		if ds.WinterOutput == "" {
			ds.WinterOutput = ds.Name + "_winter_mean.gif"
		}
		if ds.MonthlyTitle == "" {
			ds.MonthlyTitle = ds.Name + " Monthly Evolution"
		}
		if ds.WinterTitle == "" {
			ds.WinterTitle = ds.Name + " Winter Mean Temperature"
		}
		out = append(out, ds)
	}
	return out, nil
}
