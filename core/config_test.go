package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	t.Setenv("ENV", "qa")
	t.Setenv("QA_BACKEND_BASEURL", "http://school.test/api/")
	t.Setenv("QA_SERVER_SESSIONTTL", "90s")
	t.Setenv("QA_DATABASE_ENABLED", "true")

	conf := NewConfig()

	assert.Equal(t, "QA", conf.Env)
	assert.False(t, conf.TestMode)
	assert.Equal(t, "http://school.test/api", conf.Backend.BaseURL)
	assert.Equal(t, 90*time.Second, conf.Server.SessionTTL)
	assert.True(t, conf.Database.Enabled)
	assert.Equal(t, "/attendance/bulk", conf.Backend.Paths.Save)
}
