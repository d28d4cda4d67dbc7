package commands

import (
	"context"
	"errors"

	"github.com/colonyops/taskrelay/internal/core/config"
	"github.com/colonyops/taskrelay/pkg/iojson"
	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"
)

type ConfigValidateCmd struct {
	flags  *Flags
	format string
}

// NewConfigValidateCmd creates a new config validate command.
func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

// Register adds the config validate command to the application.
func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "taskrelay config validate [options]",
				Description: "Validates the configuration file, checking the timezone, URLs, message templates and file paths.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
				},
				Action: cmd.run,
			},
		},
	})

	return app
}

type validationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type validationReport struct {
	Valid    bool                       `json:"valid"`
	Errors   []validationError          `json:"errors,omitempty"`
	Warnings []config.ValidationWarning `json:"warnings,omitempty"`
}

func buildReport(cfg *config.Config, configPath string) validationReport {
	report := validationReport{Warnings: cfg.Warnings()}

	err := cfg.ValidateDeep(configPath)
	if err == nil {
		report.Valid = true
		return report
	}

	var fieldErrs criterio.FieldErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			report.Errors = append(report.Errors, validationError{Field: fe.Field, Message: fe.Err.Error()})
		}
		return report
	}

	report.Errors = append(report.Errors, validationError{Message: err.Error()})
	return report
}

func (cmd *ConfigValidateCmd) run(ctx context.Context, c *cli.Command) error {
	report := buildReport(cmd.flags.Config, cmd.flags.ConfigPath)

	if cmd.format == "json" {
		if err := iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, report); err != nil {
			return err
		}
		if !report.Valid {
			return cli.Exit("", 1)
		}
		return nil
	}

	p := newPrinter(c.Root().Writer)

	for _, warn := range report.Warnings {
		p.Infof("%s: %s", warn.Category, warn.Message)
		if warn.Item != "" {
			p.Printf("  Item: %s", warn.Item)
		}
	}

	for _, e := range report.Errors {
		if e.Field != "" {
			p.Errorf("%s: %s", e.Field, e.Message)
			continue
		}
		p.Errorf("%s", e.Message)
	}

	p.Printf("")
	if report.Valid {
		p.Successf("Configuration is valid")
		return nil
	}

	p.Errorf("%d error(s) found", len(report.Errors))
	return cli.Exit("", 1)
}
