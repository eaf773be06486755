package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailclassifier/pkg/config"
)

func TestPoolConfig(t *testing.T) {
	cfg := config.DBConfig{
		Host:        "db.internal",
		Port:        5433,
		User:        "app",
		Password:    "p@ss/word",
		Name:        "mail",
		SlowQueryMS: 250,
		MaxConns:    20,
		MinConns:    4,
	}

	poolCfg, err := poolConfig(cfg, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "db.internal", poolCfg.ConnConfig.Host)
	assert.Equal(t, uint16(5433), poolCfg.ConnConfig.Port)
	assert.Equal(t, "p@ss/word", poolCfg.ConnConfig.Password)
	assert.Equal(t, "mail", poolCfg.ConnConfig.Database)
	assert.Equal(t, int32(20), poolCfg.MaxConns)
	assert.Equal(t, int32(4), poolCfg.MinConns)

	tracer, ok := poolCfg.ConnConfig.Tracer.(*SlowQueryTracer)
	require.True(t, ok)
	assert.Equal(t, 250*time.Millisecond, tracer.slowThreshold)
}

func TestPoolConfig_Defaults(t *testing.T) {
	poolCfg, err := poolConfig(config.DBConfig{Host: "localhost", Port: 5432, User: "u", Name: "d"}, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, int32(defaultMaxConns), poolCfg.MaxConns)
	assert.Equal(t, int32(defaultMinConns), poolCfg.MinConns)
}
