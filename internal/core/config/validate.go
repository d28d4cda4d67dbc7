package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/colonyops/taskrelay/internal/core/notify"
	"github.com/colonyops/taskrelay/pkg/tmpl"
	"github.com/hay-kot/criterio"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep runs Validate and then the checks that touch the outside world:
// the config file and data dir on disk, the zone database, URL syntax and a
// trial render of each template. An empty configPath skips the file check.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		criterio.Run("config_file", configPath, pathIs(false)),
		criterio.Run("data_dir", c.DataDir, pathIs(true)),
		criterio.Run("timezone", c.Timezone, zoneExists),
		criterio.Run("remote.url", c.Remote.URL, httpURL),
		criterio.Run("notify.webhook_url", c.Notify.WebhookURL, httpURL),
		c.validateTemplates(),
	)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Server.Token == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Server",
			Item:     "token",
			Message:  "no token set, the sync server accepts unauthenticated requests",
		})
	}

	if c.Notify.WebhookURL == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Notify",
			Item:     "webhook_url",
			Message:  "no webhook set, notifications are only logged",
		})
	}

	if c.Reminders.WarningCooldown < c.Reminders.AlertInterval {
		warnings = append(warnings, ValidationWarning{
			Category: "Reminders",
			Item:     "warning_cooldown",
			Message:  "cooldown is shorter than the alert interval, warnings repeat on every tick",
		})
	}

	return warnings
}

// pathIs returns a rule accepting an empty path, a path that does not exist
// yet, or an existing path whose directory-ness matches wantDir.
func pathIs(wantDir bool) func(string) error {
	return func(path string) error {
		if path == "" {
			return nil
		}
		info, err := os.Stat(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil
		case err != nil:
			return fmt.Errorf("cannot access: %w", err)
		case wantDir && !info.IsDir():
			return fmt.Errorf("%s exists but is not a directory", path)
		case !wantDir && info.IsDir():
			return fmt.Errorf("%s is a directory, not a file", path)
		}
		return nil
	}
}

func zoneExists(name string) error {
	if _, err := time.LoadLocation(name); err != nil {
		return fmt.Errorf("unknown zone %q", name)
	}
	return nil
}

// httpURL accepts empty values and absolute http(s) URLs.
func httpURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}

// validateTemplates renders each message template against sample input so
// that field typos surface before the first tick.
func (c *Config) validateTemplates() error {
	var errs criterio.FieldErrorsBuilder

	r := tmpl.New(c.Location())
	now := time.Now()

	if _, err := r.Render(c.Notify.Templates.Alert, notify.SampleAlertData(now)); err != nil {
		errs = errs.Append("notify.templates.alert", fmt.Errorf("template error: %w", err))
	}
	if _, err := r.Render(c.Notify.Templates.Digest, notify.SampleDigestData(now)); err != nil {
		errs = errs.Append("notify.templates.digest", fmt.Errorf("template error: %w", err))
	}

	return errs.ToError()
}
