package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigDefaults(t *testing.T) {
	config, err := ParseConfig([]byte(`
[server]
port = ":9999"

[database]
dsn = ":memory:"

[[gsheet]]
sheet_id = "abc"
sheet_name = "Standings"
`))
	require.NoError(t, err)

	assert.Equal(t, "Authorization", config.Auth.TokenHeader)
	assert.Equal(t, "X-Student-Matric", config.API.StudentIDHeader)
	assert.Equal(t, "./migrations", config.Database.MigrationsDir)
	assert.Equal(t, 30*time.Second, config.CacheTTL())
	assert.Equal(t, 7*24*time.Hour, config.SessionTTL())
	assert.Equal(t, "A2:G", config.GSheet[0].StandingsRange)
	assert.False(t, config.Competition.AllowNegativePoints)

	startsAt, err := config.StartsAt()
	require.NoError(t, err)
	assert.True(t, startsAt.IsZero())
}

func TestParseConfigErrors(t *testing.T) {
	_, err := ParseConfig([]byte(`[server]
enable_auth = true
`))
	assert.ErrorContains(t, err, "port")

	_, err = ParseConfig([]byte(`
[server]
port = ":9999"
[competition]
starts_at = "next monday"
`))
	assert.ErrorContains(t, err, "starts_at")
}

func TestStartsAtFormats(t *testing.T) {
	config := &Config{}

	config.Competition.StartsAt = "2024-03-04"
	got, err := config.StartsAt()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), got)

	config.Competition.StartsAt = "2024-03-04T09:30:00+01:00"
	got, err = config.StartsAt()
	require.NoError(t, err)
	assert.Equal(t, int64(1709541000), got.Unix())
}
