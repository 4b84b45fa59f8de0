// Package cli holds the climanim commands and their configuration.
package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rtm0/climanim/internal/dataset"
	"github.com/rtm0/climanim/internal/pipeline"
	"github.com/rtm0/climanim/internal/render"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version is the version of climanim.
const Version = "0.1.0"

// Cfg holds configuration information.
var Cfg *viper.Viper

type option struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

var options []option

func init() {
	options = []option{
		{
			name: "config",
			usage: `
              config specifies the configuration file location (TOML).`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Verbose",
			usage: `
              Verbose turns on debug logging.`,
			shorthand:  "v",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Concurrency",
			usage: `
              Concurrency is the number of datasets processed at the same
              time. Files of one dataset are always read one after another.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "OutputDir",
			usage: `
              OutputDir is the directory the animations are written to.
              Environment variables are expanded.`,
			shorthand:  "o",
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "ScalePolicy",
			usage: `
              ScalePolicy selects how color scales are shared: "global" uses
              one scale for all frames of an animation, "per-file" one scale
              for the frames of each input file.`,
			defaultVal: "global",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "MergeYears",
			usage: `
              MergeYears combines winter means of the same year found in
              different files into one frame.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "SeasonYear",
			usage: `
              SeasonYear counts December towards the winter of the following
              year instead of its own calendar year.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "MonthlyDelay",
			usage: `
              MonthlyDelay is how long each frame of the monthly animations
              is shown.`,
			defaultVal: "200ms",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "WinterDelay",
			usage: `
              WinterDelay is how long each frame of the winter animations is
              shown.`,
			defaultVal: "500ms",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Render.Width",
			usage: `
              Render.Width is the image width in pixels.`,
			defaultVal: render.DefaultOptions.Width,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Render.Height",
			usage: `
              Render.Height is the image height in pixels.`,
			defaultVal: render.DefaultOptions.Height,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Render.DPI",
			usage: `
              Render.DPI is the resolution used to size text and lines.`,
			defaultVal: render.DefaultOptions.DPI,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Render.ColorMap",
			usage: fmt.Sprintf(`
              Render.ColorMap is the color map of the fields, one of %s.`,
				strings.Join(render.ColorMapNames(), ", ")),
			defaultVal: render.DefaultColorMap,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Render.Shapefiles",
			usage: `
              Render.Shapefiles lists shapefiles in longitude/latitude whose
              shapes are drawn over fields with coordinates, for example
              coastlines. Environment variables are expanded.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("CLIMANIM")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 {
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
	Cfg.SetDefault("Datasets", pipeline.DefaultDatasets)

	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(configCmd)
	Root.AddCommand(inspectCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		Cfg.SetConfigType("toml")
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("climanim: problem reading configuration file: %w", err)
		}
	}
	return nil
}

// newLogger returns the text logger of the commands, writing to the command's
// output.
func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.OutOrStdout(), &slog.HandlerOptions{Level: level}))
}

// Root is the main command. Without a subcommand it runs all datasets.
var Root = &cobra.Command{
	Use:   "climanim",
	Short: "Animate gridded temperature datasets.",
	Long: `climanim renders animated GIFs of gridded temperature datasets stored in
NetCDF files: the monthly evolution over the whole record and the winter (DJF)
mean of every year.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'CLIMANIM_var' where 'var' is
the name of the variable to be set, with dots replaced by underscores.
Datasets can only be configured in the configuration file.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
	RunE:              run,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of climanim.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "climanim v%s\n", Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Create the animations.",
	Long: `run creates the monthly and winter animations of every configured
dataset. Datasets without input files are skipped.`,
	RunE:              run,
	DisableAutoGenTag: true,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the configuration.",
	Long: `config prints the effective configuration in TOML format. The output can
be used as a configuration file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := LoadConfig(Cfg)
		if err != nil {
			return err
		}
		return toml.NewEncoder(cmd.OutOrStdout()).Encode(c)
	},
	DisableAutoGenTag: true,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE [VARIABLE]",
	Short: "Summarize a NetCDF file.",
	Long: `inspect logs a summary of FILE: the variable, its units, the shape of one
time step, the number of time steps and coordinates and the first and last
dates. Without VARIABLE, the variables of the configured datasets are tried in
order.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := LoadConfig(Cfg)
		if err != nil {
			return err
		}
		logger := newLogger(cmd, c.Verbose)
		var vars []string
		if len(args) == 2 {
			vars = []string{args[1]}
		} else {
			for _, ds := range c.Datasets {
				vars = append(vars, ds.Variable)
			}
		}
		var lastErr error
		for _, v := range vars {
			s, err := dataset.NewScanner(args[0], v)
			if err != nil {
				lastErr = err
				logger.Debug("Could not open file", "file", args[0], "var", v, "err", err)
				continue
			}
			logger.Info("File summary", append([]any{"file", args[0]}, s.Summary()...)...)
			s.Close()
			return nil
		}
		if lastErr == nil {
			return fmt.Errorf("no variable to inspect in %s", args[0])
		}
		return fmt.Errorf("inspecting %s: %w", args[0], lastErr)
	},
	DisableAutoGenTag: true,
}

// run creates the animations of every configured dataset.
func run(cmd *cobra.Command, args []string) error {
	c, err := LoadConfig(Cfg)
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c.Render)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.OutputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	logger := newLogger(cmd, c.Verbose)
	runner := pipeline.NewRunner(logger, r, c.pipelineOptions())
	var written int
	for _, res := range runner.RunAll(c.Datasets, c.Concurrency) {
		written += len(res.Written())
	}
	logger.Info("GIF creation complete", "written", written)
	return nil
}
