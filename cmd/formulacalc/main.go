package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vogtb/go-formula/packages/formula"
)

var version = "dev"

// common holds the flags every subcommand accepts
type common struct {
	settingsPath string
	r1c1         bool
	verbose      bool
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.settingsPath, "settings", "", "YAML settings file")
	fs.BoolVar(&c.r1c1, "r1c1", false, "read references in R1C1 notation")
	fs.BoolVar(&c.verbose, "v", false, "verbose logging")
}

// env is what a subcommand runs with once flags and settings are resolved
type env struct {
	logger   *slog.Logger
	settings formula.CalculationSettings
	parse    formula.ParseOptions
	stdout   io.Writer
}

func (c *common) resolve(stdout, stderr io.Writer) (*env, error) {
	cfg, err := loadConfig(c.settingsPath)
	if err != nil {
		return nil, err
	}
	level := cfg.logLevel()
	if c.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	settings, err := cfg.settings()
	if err != nil {
		return nil, err
	}
	parse, err := cfg.parseOptions()
	if err != nil {
		return nil, err
	}
	if c.r1c1 {
		parse.ReferenceMode = formula.AddressModeR1C1
	}
	logger.Debug("settings resolved",
		"date_system", settings.DateSystem.String(),
		"culture", settings.Culture.String(),
		"reference_mode", parse.ReferenceMode.String())
	return &env{logger: logger, settings: settings, parse: parse, stdout: stdout}, nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usageText())
		return 2
	}

	var cmd func(*env, []string) error
	switch args[0] {
	case "eval":
		cmd = runEval
	case "workbook":
		cmd = runWorkbook
	case "lint":
		cmd = runLint
	case "version", "-version", "--version":
		fmt.Fprintln(stdout, version)
		return 0
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usageText())
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usageText())
		return 2
	}

	var c common
	var sheet string
	fs := flag.NewFlagSet("formulacalc "+args[0], flag.ContinueOnError)
	fs.SetOutput(stderr)
	c.register(fs)
	if args[0] == "workbook" {
		fs.StringVar(&sheet, "sheet", "", "only print this worksheet")
	}
	fs.Usage = func() {
		fmt.Fprint(stderr, usageText())
	}
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	rest := fs.Args()
	if len(rest) != 1 {
		fs.Usage()
		return 2
	}
	if sheet != "" {
		rest = append(rest, sheet)
	}

	e, err := c.resolve(stdout, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if err := cmd(e, rest); err != nil {
		e.logger.Error(args[0]+" failed", "err", err)
		return 1
	}
	return 0
}

func usageText() string {
	return `Usage:

 formulacalc eval [-settings FILE] [-r1c1] [-v] FORMULA
 formulacalc workbook [-settings FILE] [-r1c1] [-v] [-sheet NAME] FILE.xlsx
 formulacalc lint [-settings FILE] [-r1c1] [-v] FORMULA
 formulacalc version

commands:

  eval        evaluate a standalone formula and print the result
  workbook    load an xlsx file, evaluate every formula cell and print
              address, formula and value separated by tabs
  lint        parse a formula, print its canonical form and report unknown
              functions with suggestions

flags:

  -settings FILE   YAML file with date_system, culture, precision_digits,
                   max_depth, reference_mode, decimal_separator,
                   argument_separator and log_level
  -r1c1            read references in R1C1 notation
  -v               debug logging on stderr
  -sheet NAME      workbook: only print this worksheet
`
}
