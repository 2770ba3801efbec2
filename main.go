package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"atr-radar.klederson.com/internal/app"
	"atr-radar.klederson.com/internal/config"
	"atr-radar.klederson.com/internal/ingest"
	"atr-radar.klederson.com/internal/logging"
	"atr-radar.klederson.com/internal/position"
	"atr-radar.klederson.com/internal/publish"
)

var (
	flagConfig       string
	flagDemo         bool
	flagURL          string
	flagToken        string
	flagReplay       string
	flagSpeed        float64
	flagReaderHeight float64
	flagTagHeight    float64
	flagExportDir    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "atr-radar",
		Short: "ATR Radar - Terminal positioning display for ATR7000 RFID readers",
		Long: `ATR Radar consumes directionality events from a Zebra ATR7000 reader,
projects each reading onto the floor plane and keeps a debounced position
history per tag, displayed on a circular ASCII radar.

Connect to the reader's event stream with --url, play back a recorded
CSV log with --replay, or use --demo for simulated tags.`,
		SilenceUsage: true,
		RunE:         run,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Config file (YAML); defaults to atr-radar.yaml or $"+config.EnvFile)
	pf.Float64Var(&flagReaderHeight, "reader-height", position.DefaultReaderHeight, "Reader height above the floor in meters")
	pf.Float64Var(&flagTagHeight, "tag-height", position.DefaultTagHeight, "Expected tag height above the floor in meters")

	rootCmd.Flags().BoolVar(&flagDemo, "demo", false, "Run in demo mode with simulated tags (no reader required)")
	rootCmd.Flags().StringVar(&flagURL, "url", "", "Reader event stream URL (ws:// or wss://)")
	rootCmd.Flags().StringVar(&flagToken, "token", "", "Bearer token for the reader stream")
	rootCmd.Flags().StringVar(&flagReplay, "replay", "", "Play back a recorded CSV log in the radar")
	rootCmd.Flags().Float64Var(&flagSpeed, "speed", 1, "Replay speed factor (0 = as fast as possible)")
	rootCmd.Flags().StringVar(&flagExportDir, "export-dir", ".", "Directory for snapshot exports ([E] key)")

	rootCmd.AddCommand(newReplayCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies flag overrides. Only flags
// set on the command line override the file and environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("reader-height") {
		cfg.Reader.HeightM = flagReaderHeight
	}
	if flags.Changed("tag-height") {
		cfg.Reader.TagHeightM = flagTagHeight
	}
	if flags.Changed("url") {
		cfg.Stream.URL = flagURL
	}
	if flags.Changed("token") {
		cfg.Stream.Token = flagToken
	}
	return cfg, nil
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// The TUI owns the terminal; logs go to a file.
	logFile, err := logging.OpenFile(cfg.Log.File)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: logFile})

	source, name, err := selectSource(cfg)
	if err != nil {
		return err
	}

	var pub *publish.Publisher
	if cfg.NATS.URL != "" {
		pub = publish.NewPublisher(cfg.NATS.Subject)
		if err := pub.Connect(cfg.NATS.URL); err != nil {
			logging.Warn().Err(err).Msg("position forwarding disabled")
			pub = nil
		}
	}

	model := app.New(app.Options{
		Config:     cfg,
		Source:     source,
		SourceName: name,
		Publisher:  pub,
		ExportDir:  flagExportDir,
	})

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithFPS(config.TargetFPS),
	)

	if err := model.Start(p); err != nil {
		fmt.Fprintf(os.Stderr, "\nError: %v\n\n", err)
		fmt.Fprintln(os.Stderr, "Could not reach the reader event stream.")
		fmt.Fprintln(os.Stderr, "Try one of:")
		fmt.Fprintln(os.Stderr, "  ./atr-radar --url ws://<reader>/ws --token <token>")
		fmt.Fprintln(os.Stderr, "  ./atr-radar --replay events.csv")
		fmt.Fprintln(os.Stderr, "  ./atr-radar --demo    (demo mode, no reader needed)")
		return err
	}

	_, err = p.Run()
	model.Stop()
	logging.Info().Interface("stats", model.Ingestor().Stats()).Msg("session ended")
	return err
}

func selectSource(cfg *config.Config) (ingest.Source, string, error) {
	switch {
	case flagDemo:
		return ingest.NewDemoSource(config.DemoTagCount, config.DemoEmitPeriod), "demo", nil
	case flagReplay != "":
		return ingest.NewReplaySource(flagReplay, flagSpeed), flagReplay, nil
	case cfg.Stream.URL != "":
		return ingest.NewWebSocketSource(cfg.Stream.URL, cfg.Stream.Token), cfg.Stream.URL, nil
	default:
		return nil, "", fmt.Errorf("no event source: pass --url, --replay or --demo (or set stream.url)")
	}
}
