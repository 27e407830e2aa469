// Package main is the entry point for the earquiz CLI
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/james-see/earquiz/internal/bootstrap"
	"github.com/james-see/earquiz/internal/config"
	"github.com/james-see/earquiz/pkg/api"
	"github.com/james-see/earquiz/pkg/drill"
	"github.com/james-see/earquiz/pkg/export"
	"github.com/james-see/earquiz/pkg/tui"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// options holds the flag values of one command tree
type options struct {
	bands           string
	order           string
	boostCut        string
	priority        string
	disableAdjacent int
	dualBand        bool
	seed            int64
	start           string

	count      int
	outputFile string
	title      string
	tempo      float64
	force      bool
	questions  int
	serverPort int
}

func newRootCmd() *cobra.Command {
	o := &options{}

	rootCmd := &cobra.Command{
		Use:   "earquiz",
		Short: "EQ ear training drills",
		Long: `earquiz generates frequency ear-training drills: which band of a graphic
EQ is boosted or cut, alone or as a pair.

Defaults come from the EARQUIZ_* environment variables (or .env) and can be
overridden per command.

Examples:
  earquiz sequence --bands iso15 --boost-cut +-
  earquiz next -n 5 --start -1k --boost-cut +-
  earquiz pick -n 10 --dual
  earquiz export Exercise1.mid
  earquiz tui
  earquiz serve --port 8080`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global drill flags
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&o.bands, "bands", "b", "", "Preset name or comma separated bands, e.g. 125,250,1k")
	pf.StringVar(&o.order, "order", "", "Band order: asc, desc or shuffle")
	pf.StringVar(&o.boostCut, "boost-cut", "", "Polarity: +, - or +-")
	pf.StringVar(&o.priority, "priority", "", "With +-: 1 boosts and cuts each band in turn, 2 boosts all bands first")
	pf.IntVar(&o.disableAdjacent, "disable-adjacent", 0, "Dual band: skip pairs within this many neighbouring bands")
	pf.BoolVar(&o.dualBand, "dual", false, "Drill pairs of bands")
	pf.Int64Var(&o.seed, "seed", 0, "Random seed for shuffle and pick (0: time based)")

	sequenceCmd := &cobra.Command{
		Use:   "sequence",
		Short: "Print the full drill cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSequence(cmd, o)
		},
	}
	sequenceCmd.Flags().StringVarP(&o.start, "start", "s", "", "Start band; negative starts the boost/cut alternation on a cut")

	nextCmd := &cobra.Command{
		Use:   "next",
		Short: "Print drills in cycle order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNext(cmd, o)
		},
	}
	nextCmd.Flags().IntVarP(&o.count, "count", "n", 1, "Number of drills")
	nextCmd.Flags().StringVarP(&o.start, "start", "s", "", "Start band; negative starts the boost/cut alternation on a cut")

	pickCmd := &cobra.Command{
		Use:   "pick",
		Short: "Print random drills, never the same twice in a row",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPick(cmd, o)
		},
	}
	pickCmd.Flags().IntVarP(&o.count, "count", "n", 1, "Number of drills")

	bandsCmd := &cobra.Command{
		Use:   "bands",
		Short: "List band presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBands(cmd)
		},
	}

	exportCmd := &cobra.Command{
		Use:   "export <output.mid|.json|.txt>",
		Short: "Write the drill cycle to an exercise file",
		Long: `Writes the drill cycle to a file whose format follows the extension.
MIDI files carry one marker and note per drill, for playback in a DAW.
An existing file is kept and the name is bumped (Exercise1.mid becomes
Exercise2.mid) unless --force is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, o, args[0])
		},
	}
	exportCmd.Flags().StringVarP(&o.start, "start", "s", "", "Start band")
	exportCmd.Flags().StringVarP(&o.title, "title", "t", "earquiz", "Exercise title")
	exportCmd.Flags().Float64Var(&o.tempo, "tempo", 120, "MIDI tempo in BPM")
	exportCmd.Flags().BoolVarP(&o.force, "force", "f", false, "Overwrite an existing file")

	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "Launch interactive terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := drillConfig(cmd, o)
			if err != nil {
				return err
			}
			opts := []tui.Option{tui.WithQuestions(o.questions)}
			if o.seed != 0 {
				opts = append(opts, tui.WithSeed(o.seed))
			}
			return tui.Run(cfg, opts...)
		},
	}
	tuiCmd.Flags().IntVarP(&o.questions, "questions", "q", 10, "Questions per test")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, o)
		},
	}
	serveCmd.Flags().IntVarP(&o.serverPort, "port", "p", 0, "Server port (default: $PORT or 8080)")

	rootCmd.AddCommand(sequenceCmd, nextCmd, pickCmd, bandsCmd, exportCmd, tuiCmd, serveCmd)
	return rootCmd
}

// drillConfig starts from the environment and applies the flags that were set
func drillConfig(cmd *cobra.Command, o *options) (drill.Config, error) {
	env := config.Load()
	flags := cmd.Flags()
	if flags.Changed("bands") {
		env.Bands = o.bands
	}
	if flags.Changed("order") {
		env.Order = o.order
	}
	if flags.Changed("boost-cut") {
		env.BoostCut = o.boostCut
	}
	if flags.Changed("priority") {
		env.Priority = o.priority
	}
	if flags.Changed("disable-adjacent") {
		env.DisableAdjacent = strconv.Itoa(o.disableAdjacent)
	}
	if flags.Changed("dual") {
		env.DualBand = strconv.FormatBool(o.dualBand)
	}
	return env.DrillConfig()
}

func newGenerator(cmd *cobra.Command, o *options) (*drill.Generator, error) {
	cfg, err := drillConfig(cmd, o)
	if err != nil {
		return nil, err
	}
	if o.seed != 0 {
		return drill.New(cfg, drill.WithSeed(o.seed)), nil
	}
	return drill.New(cfg), nil
}

func parseStart(s string) (*drill.Band, error) {
	if s == "" {
		return nil, nil
	}
	b, err := drill.ParseBand(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", drill.ErrInvalidFrequency, err)
	}
	return &b, nil
}

func generate(gen *drill.Generator, start string) ([]drill.Drill, error) {
	b, err := parseStart(start)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return gen.Generate()
	}
	return gen.GenerateFrom(*b)
}

func runSequence(cmd *cobra.Command, o *options) error {
	gen, err := newGenerator(cmd, o)
	if err != nil {
		return err
	}
	seq, err := generate(gen, o.start)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), export.FormatCueSheet(seq))
	return nil
}

func runNext(cmd *cobra.Command, o *options) error {
	gen, err := newGenerator(cmd, o)
	if err != nil {
		return err
	}
	start, err := parseStart(o.start)
	if err != nil {
		return err
	}
	for i := 0; i < o.count; i++ {
		var d drill.Drill
		if i == 0 && start != nil {
			d, err = gen.NextFrom(*start)
		} else {
			d, err = gen.Next()
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), d)
	}
	return nil
}

func runPick(cmd *cobra.Command, o *options) error {
	gen, err := newGenerator(cmd, o)
	if err != nil {
		return err
	}
	for i := 0; i < o.count; i++ {
		d, err := gen.RandomPick()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), d)
	}
	return nil
}

func runBands(cmd *cobra.Command) error {
	for _, name := range drill.PresetNames() {
		bands, err := drill.Preset(name)
		if err != nil {
			return err
		}
		labels := make([]string, len(bands))
		for i, b := range bands {
			labels[i] = drill.FormatBand(float64(b))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-9s %s\n", name, strings.Join(labels, ","))
	}
	return nil
}

func runExport(cmd *cobra.Command, o *options, output string) error {
	if export.DetectFormat(output) == export.FormatUnknown {
		return fmt.Errorf("%w: %s", export.ErrUnknownFormat, output)
	}
	gen, err := newGenerator(cmd, o)
	if err != nil {
		return err
	}
	seq, err := generate(gen, o.start)
	if err != nil {
		return err
	}
	if !o.force {
		if output, err = export.UniquePath(output); err != nil {
			return err
		}
	}

	exp := export.New()
	exp.MIDI().SetTempo(o.tempo)
	if err := exp.WriteFile(output, o.title, seq); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d drills -> %s\n", len(seq), output)
	return nil
}

func runServe(cmd *cobra.Command, o *options) error {
	env := config.Load()
	cfg, err := drillConfig(cmd, o)
	if err != nil {
		return err
	}
	port := o.serverPort
	if port == 0 {
		if port, err = strconv.Atoi(env.Port); err != nil {
			return fmt.Errorf("invalid PORT %q: %w", env.Port, err)
		}
	}

	flush := bootstrap.InitSentry(env)
	defer flush()

	store, err := bootstrap.OpenStore(env)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Starting API server on port %d...\n", port)
	return api.StartServer(port, cfg, store)
}
