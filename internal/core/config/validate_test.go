package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	return &cfg
}

func TestValidateDeep_Defaults(t *testing.T) {
	assert.NoError(t, validConfig(t).ValidateDeep(""))
}

func TestValidateDeep_UnknownZone(t *testing.T) {
	cfg := validConfig(t)
	cfg.Timezone = "Mars/Olympus_Mons"

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Len(t, fieldErrs, 1)
	assert.Equal(t, "timezone", fieldErrs[0].Field)
}

func TestValidateDeep_URLs(t *testing.T) {
	cfg := validConfig(t)
	cfg.Remote.URL = "relay.example.com"
	cfg.Notify.WebhookURL = "ftp://hooks.example.com"

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Len(t, fieldErrs, 2)
	assert.Equal(t, "remote.url", fieldErrs[0].Field)
	assert.Equal(t, "notify.webhook_url", fieldErrs[1].Field)
}

func TestValidateDeep_TemplateFieldTypo(t *testing.T) {
	cfg := validConfig(t)
	cfg.Notify.Templates.Alert = "{{ range .Critical }}{{ .Name }}{{ end }}"
	cfg.Notify.Templates.Digest = "{{ .Groups "

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Len(t, fieldErrs, 2)
	assert.Contains(t, fieldErrs[0].Field, "notify.templates.alert")
	assert.Contains(t, fieldErrs[0].Err.Error(), "template error")
	assert.Contains(t, fieldErrs[1].Field, "notify.templates.digest")
}

func TestValidateDeep_DataDirIsFile(t *testing.T) {
	cfg := validConfig(t)
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	cfg.DataDir = file

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Equal(t, "data_dir", fieldErrs[0].Field)
}

func TestValidateDeep_ConfigPathIsDir(t *testing.T) {
	cfg := validConfig(t)

	err := cfg.ValidateDeep(t.TempDir())

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.Equal(t, "config_file", fieldErrs[0].Field)
}

func TestWarnings(t *testing.T) {
	cfg := validConfig(t)
	warnings := cfg.Warnings()
	require.Len(t, warnings, 2)
	assert.Equal(t, "Server", warnings[0].Category)
	assert.Equal(t, "Notify", warnings[1].Category)

	cfg.Server.Token = "x"
	cfg.Notify.WebhookURL = "https://hooks.example.com"
	assert.Empty(t, cfg.Warnings())
}
