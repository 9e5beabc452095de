package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"TEST_DURATION_SECONDS", "TEST_QUESTION_TOTAL", "TEST_QUESTIONS_PER_SUBJECT", "TICK_INTERVAL_MS", "ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, 3600, cfg.Test.DurationSeconds)
	assert.Equal(t, 6, cfg.Test.QuestionTotal)
	assert.Equal(t, 0, cfg.Test.QuestionsPerSubject)
	assert.Equal(t, time.Second, cfg.Test.TickInterval)
	assert.Nil(t, cfg.AllowedOrigins)
	assert.NotEmpty(t, cfg.InstanceID)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("TEST_DURATION_SECONDS", "900")
	t.Setenv("TEST_QUESTIONS_PER_SUBJECT", "2")
	t.Setenv("TICK_INTERVAL_MS", "250")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("INSTANCE_ID", "node-7")

	cfg := Load()

	assert.Equal(t, 900, cfg.Test.DurationSeconds)
	assert.Equal(t, 2, cfg.Test.QuestionsPerSubject)
	assert.Equal(t, 250*time.Millisecond, cfg.Test.TickInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "node-7", cfg.InstanceID)
}

func TestLoad_BadNumbersFallBack(t *testing.T) {
	t.Setenv("TEST_QUESTION_TOTAL", "six")
	t.Setenv("TICK_INTERVAL_MS", "-5")

	cfg := Load()

	assert.Equal(t, 6, cfg.Test.QuestionTotal)
	assert.Equal(t, time.Second, cfg.Test.TickInterval)
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "login:4", CacheKey.UserSessionKey(4))
	assert.Equal(t, "user:4:active_session", CacheKey.ActiveSessionKey(4))
	assert.Equal(t, "user:*:active_session", CacheKey.ActiveSessionPattern())
	assert.Equal(t, "user:4:session_snapshot", CacheKey.SessionSnapshotKey(4))
	assert.Equal(t, "user:4:session_events", CacheKey.SessionEventChannel(4))
}
