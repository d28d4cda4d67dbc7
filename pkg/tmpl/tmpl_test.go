package tmpl

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		tmpl    string
		data    any
		want    string
		wantErr bool
	}{
		{
			name: "simple substitution",
			tmpl: "hello {{ .Name }}",
			data: map[string]string{"Name": "world"},
			want: "hello world",
		},
		{
			name: "join and upper",
			tmpl: `{{ upper (join .Tags ",") }}`,
			data: map[string][]string{"Tags": {"a", "b"}},
			want: "A,B",
		},
		{
			name:    "missing key is an error",
			tmpl:    "{{ .Nope }}",
			data:    map[string]string{},
			wantErr: true,
		},
		{
			name:    "syntax error",
			tmpl:    "{{ .Name ",
			data:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.tmpl, tt.data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderer_ClockUsesZone(t *testing.T) {
	madrid, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	due := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	got, err := New(madrid).Render("{{ clock .Due }}", map[string]time.Time{"Due": due})
	require.NoError(t, err)
	assert.Equal(t, "Mon 02 Jun 12:00", got)
}

func TestUntil(t *testing.T) {
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "now"},
		{20 * time.Second, "now"},
		{45 * time.Minute, "in 45m"},
		{65 * time.Minute, "in 1h05m"},
		{26 * time.Hour, "in 1d02h"},
		{-10 * time.Minute, "overdue by 10m"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Until(now, now.Add(tt.d)))
		})
	}
}
