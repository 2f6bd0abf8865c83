// Package main provides the entry point for the Lector CLI application.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lector/internal/cache"
	"github.com/dgnsrekt/lector/internal/extract"
	"github.com/dgnsrekt/lector/internal/observability"
	"github.com/dgnsrekt/lector/tts"
	"github.com/dgnsrekt/lector/tts/engines"
	"github.com/dgnsrekt/lector/tts/sentence"
	"github.com/dgnsrekt/lector/ui"
	"github.com/dgnsrekt/lector/utils"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	serverURL  string
	engineName string
	voice      string
	rate       float64
	width      uint
	mouse      bool
	autoPlay   bool

	rootCmd = &cobra.Command{
		Use:   "lector [FILE]",
		Short: "Read documents aloud in the terminal",
		Long: paragraph(
			fmt.Sprintf("\nRead documents aloud, %s.", keyword("one sentence at a time")),
		),
		Example: paragraph("lector book.epub\nlector --engine piper notes.md\ncat notes.txt | lector"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return extract.Extensions(), cobra.ShellCompDirectiveFilterFileExt
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	// grab config values from Viper
	width = viper.GetUint("width")
	mouse = viper.GetBool("mouse")
	serverURL = viper.GetString("server.url")

	// Speech flags override the tts section of the config file.
	for _, name := range []string{"engine", "voice", "rate"} {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			viper.Set("tts."+name, f.Value.String())
		}
	}

	if cmd.Flags().Changed("width") {
		return nil
	}

	// Detect terminal width
	if term.IsTerminal(int(os.Stdout.Fd())) && width == 0 {
		w, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err == nil {
			width = uint(w) //nolint:gosec
		}
		if width > 100 {
			width = 100
		}
	}
	return nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

func execute(_ *cobra.Command, args []string) error {
	// if stdin is a pipe then read it as plain text. note that you can also
	// explicitly use a - to read from stdin.
	if len(args) == 0 || args[0] == "-" {
		yes, err := stdinIsPipe()
		if err != nil {
			return err
		}
		if !yes {
			return errors.New("nothing to read: pass a file or pipe text into lector")
		}
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("unable to read from stdin: %w", err)
		}
		return runTUI("", string(b))
	}

	path := utils.ExpandPath(args[0])
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("unable to open file: %w", err)
	}
	if !extract.Supported(path) {
		return fmt.Errorf("%w: %s", extract.ErrUnsupportedFormat, filepath.Base(path))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("unable to get absolute path: %w", err)
	}
	return runTUI(abs, "")
}

func runTUI(path string, content string) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	ttsCfg, err := tts.LoadConfigFromViper()
	if err != nil {
		return err
	}

	cfg.Path = path
	cfg.Content = content
	cfg.Width = width
	cfg.EnableMouse = mouse
	cfg.AutoPlay = cfg.AutoPlay || autoPlay || ttsCfg.AutoPlay
	if _, ok := os.LookupEnv("LECTOR_HIGHLIGHT_COLOR"); !ok {
		cfg.HighlightColor = ttsCfg.HighlightColor
	}
	if !ttsCfg.HighlightEnabled {
		cfg.HighlightColor = "none"
	}

	engine, err := engines.New(ttsCfg)
	if err != nil {
		return fmt.Errorf("unable to create speech engine: %w", err)
	}

	params := ttsCfg.VoiceParams()
	if params.Voice != "" && engine.Available() {
		if v, err := engines.MatchVoice(engine, params.Voice); err == nil {
			params.Voice = v.ID
		} else {
			log.Warn("Voice not found, using the engine default", "voice", params.Voice)
			params.Voice = ""
		}
	}

	sink := ui.NewSink()
	ctrl := tts.NewController(engine, sentence.NewParser(),
		tts.WithHighlightSink(sink),
		tts.WithReporter(sink),
		tts.WithMetrics(observability.NewMetrics("lector")),
		tts.WithVoiceParams(params),
	)
	ctrl.OnStateChange(sink.StateChanged)
	defer ctrl.Close() //nolint:errcheck

	load, closeLoader, err := newLoader()
	if err != nil {
		return err
	}
	defer closeLoader() //nolint:errcheck

	// Run Bubble Tea program
	if _, err := ui.NewProgram(cfg, ctrl, sink, load).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}

	return nil
}

// newLoader returns the document loader: the extraction server when one is
// configured, otherwise in-process extraction with an on-disk cache.
func newLoader() (ui.Loader, func() error, error) {
	if serverURL != "" {
		log.Debug("Using extraction server", "url", serverURL)
		return ui.RemoteLoader(extract.NewClient(serverURL)), func() error { return nil }, nil
	}

	cfg := cache.DefaultConfig()
	if dir, err := gap.NewScope(gap.User, "lector").CacheDir(); err == nil {
		cfg.DiskPath = filepath.Join(dir, "extract")
	} else {
		cfg.DiskCapacity = 0
	}

	c, err := cache.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open extraction cache: %w", err)
	}
	return ui.LocalLoader(extract.New(extract.WithCache(c))), c.Close, nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVarP(&engineName, "engine", "e", "", fmt.Sprintf("speech engine (%s)", strings.Join(tts.ValidEngines, ", ")))
	rootCmd.Flags().StringVar(&serverURL, "server", "", "extract documents through a lector server at this URL")
	rootCmd.Flags().StringVar(&voice, "voice", "", "voice ID or name")
	rootCmd.Flags().Float64VarP(&rate, "rate", "r", 1.0, "speaking rate (0.1 to 10)")
	rootCmd.Flags().UintVarP(&width, "width", "w", 0, "word-wrap at width (set to 0 to use the terminal width)")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel")
	rootCmd.Flags().BoolVarP(&autoPlay, "autoplay", "a", false, "start reading as soon as the document is loaded")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("width", rootCmd.Flags().Lookup("width"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))
	_ = viper.BindPFlag("server.url", rootCmd.Flags().Lookup("server"))

	registerDefaults(viper.GetViper())

	rootCmd.AddCommand(configCmd, manCmd, serveCmd, segmentCmd, voicesCmd)
}

func configDirs() ([]string, error) {
	scope := gap.NewScope(gap.User, "lector")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		return nil, err
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "lector")}, dirs...)
	}

	if c := os.Getenv("LECTOR_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}
	return dirs, nil
}

func tryLoadConfigFromDefaultPlaces() {
	dirs, err := configDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("lector")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("lector")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "lector.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
