package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/vogtb/go-formula/packages/formula"
)

// config is the optional settings file. flags override it.
type config struct {
	DateSystem        string `yaml:"date_system"`   // "1900" or "1904"
	Culture           string `yaml:"culture"`       // BCP 47 tag, e.g. "de-DE"
	PrecisionDigits   int    `yaml:"precision_digits"`
	MaxDepth          int    `yaml:"max_depth"`
	ReferenceMode     string `yaml:"reference_mode"` // "a1" or "r1c1"
	DecimalSeparator  string `yaml:"decimal_separator"`
	ArgumentSeparator string `yaml:"argument_separator"`
	LogLevel          string `yaml:"log_level"`
}

func loadConfig(path string) (config, error) {
	var cfg config
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

func (c config) settings() (formula.CalculationSettings, error) {
	s := formula.DefaultCalculationSettings()
	switch c.DateSystem {
	case "", "1900":
	case "1904":
		s.DateSystem = formula.DateSystem1904
	default:
		return s, fmt.Errorf("unsupported date system %q", c.DateSystem)
	}
	if c.Culture != "" {
		tag, err := language.Parse(c.Culture)
		if err != nil {
			return s, fmt.Errorf("culture: %w", err)
		}
		s.Culture = tag
	}
	if c.PrecisionDigits != 0 {
		s.PrecisionDigits = c.PrecisionDigits
	}
	s.MaxDepth = c.MaxDepth
	return s, nil
}

func (c config) parseOptions() (formula.ParseOptions, error) {
	var o formula.ParseOptions
	switch strings.ToLower(c.ReferenceMode) {
	case "", "a1":
	case "r1c1":
		o.ReferenceMode = formula.AddressModeR1C1
	default:
		return o, fmt.Errorf("unsupported reference mode %q", c.ReferenceMode)
	}
	var err error
	if o.DecimalSeparator, err = separator(c.DecimalSeparator); err != nil {
		return o, fmt.Errorf("decimal separator: %w", err)
	}
	if o.ArgumentSeparator, err = separator(c.ArgumentSeparator); err != nil {
		return o, fmt.Errorf("argument separator: %w", err)
	}
	return o, nil
}

func separator(s string) (rune, error) {
	r := []rune(s)
	switch len(r) {
	case 0:
		return 0, nil
	case 1:
		return r[0], nil
	}
	return 0, fmt.Errorf("%q is not a single character", s)
}

func (c config) logLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
