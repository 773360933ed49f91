// Command ucp-init writes a starter merchant configuration, or validates an
// existing one with -validate.
package main

import (
	"encoding/json"
	"flag"
	"log/slog"
	"os"

	"github.com/go-faster/errors"

	"github.com/ucpify/ucpify/internal/merchant"
)

func main() {
	var (
		out      string
		force    bool
		validate string
	)

	flag.StringVar(&out, "out", "ucp.config.json", "path to write the sample configuration")
	flag.BoolVar(&force, "force", false, "overwrite an existing configuration file")
	flag.StringVar(&validate, "validate", "", "validate an existing configuration file and exit")
	flag.Parse()

	if validate != "" {
		cfg, err := merchant.Load(validate)
		if err != nil {
			slog.Error("configuration is invalid", slog.String("path", validate), slog.String("error", err.Error()))
			os.Exit(1)
		}
		slog.Info("configuration is valid",
			slog.String("path", validate),
			slog.String("merchant", cfg.Name),
			slog.Int("items", len(cfg.Items)),
		)
		return
	}

	if err := writeSample(out, force); err != nil {
		slog.Error("init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("wrote sample merchant configuration", slog.String("path", out))
}

func writeSample(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return errors.Errorf("%s already exists (use -force to overwrite)", path)
		}
	}

	data, err := json.MarshalIndent(merchant.Sample(), "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode sample config")
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "write config file")
	}
	return nil
}
