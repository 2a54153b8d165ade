package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-bridge/action"
	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/runner"
	"github.com/wippyai/wasm-bridge/script"
	"github.com/wippyai/wasm-bridge/spectest"
)

func main() {
	var (
		scriptFile  = flag.String("script", "", "Path to wast2json script (.json)")
		configFile  = flag.String("config", "", "Path to YAML config")
		schema      = flag.Bool("schema", false, "Print the command JSON schema and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Debug logging")
	)
	flag.Parse()

	if *schema {
		data, err := action.Schema()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
		return
	}

	if *scriptFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: spectest -script <file.json> [-config config.yaml] [-v]")
		fmt.Fprintln(os.Stderr, "       spectest -script <file.json> -i  (interactive mode)")
		fmt.Fprintln(os.Stderr, "       spectest -schema")
		os.Exit(1)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	s, err := loadScript(*scriptFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		// Log lines would tear the alternate screen.
		setLoggers(zap.NewNop())
		if err := runInteractive(*scriptFile, s, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logger, err := newLogger(cfg.LogLevel, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	setLoggers(logger)

	if err := run(s, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*runner.Config, error) {
	cfg := &runner.Config{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadScript reads a script; module files are resolved relative to it.
func loadScript(path string) (*script.Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	dir := filepath.Dir(path)
	return script.Parse(data, func(name string) ([]byte, error) {
		return os.ReadFile(filepath.Join(dir, name))
	})
}

func newLogger(level string, verbose bool) (*zap.Logger, error) {
	var zcfg zap.Config
	if verbose {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
		zcfg.Sampling = nil
	}

	if level != "" && !verbose {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	if term.IsTerminal(int(os.Stderr.Fd())) {
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	}
	return zcfg.Build()
}

func setLoggers(logger *zap.Logger) {
	engine.SetLogger(logger.Named("engine"))
	spectest.SetLogger(logger.Named("spectest"))
	runner.SetLogger(logger.Named("runner"))
	script.SetLogger(logger.Named("script"))
}

func run(s *script.Script, cfg *runner.Config) error {
	ctx := context.Background()

	r, err := runner.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create runner: %w", err)
	}
	defer r.Close(ctx)

	report := script.Run(ctx, r, s, nil)
	fmt.Println(formatReport(report))

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d steps failed", report.Failed, report.Total())
	}
	return nil
}

func formatReport(r script.Report) string {
	out := titleStyle.Render("Spectest") + " " + r.Source + "\n\n"
	for _, f := range r.Failures {
		out += errorStyle.Render(fmt.Sprintf("FAIL %s: %v", f.Step, f.Failure)) + "\n"
	}
	if len(r.Failures) > 0 {
		out += "\n"
	}
	out += passStyle.Render(fmt.Sprintf("%d passed", r.Passed)) + "  " +
		errorStyle.Render(fmt.Sprintf("%d failed", r.Failed)) + "  " +
		skipStyle.Render(fmt.Sprintf("%d skipped", r.Skipped))
	return out
}
