package queue

import (
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/hugh/brokerdesk/pkg/config"
	"github.com/hugh/brokerdesk/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisConfig(t *testing.T) *config.RedisConfig {
	t.Helper()
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return &config.RedisConfig{Host: mr.Host(), Port: port}
}

func TestClientEnqueue(t *testing.T) {
	cfg := redisConfig(t)
	client := NewClient(cfg)
	defer client.Close()

	info, err := client.Enqueue(asynq.NewTask("quota:reconcile_all", nil), asynq.Queue("low"))
	require.NoError(t, err)
	assert.Equal(t, "low", info.Queue)
	assert.Equal(t, asynq.TaskStatePending, info.State)
}

func TestSchedulerRegister(t *testing.T) {
	cfg := redisConfig(t)
	scheduler := NewScheduler(cfg, util.DiscardLogger())

	id, err := scheduler.Register("0 3 * * *", asynq.NewTask("quota:reconcile_all", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = scheduler.Register("not a cron", asynq.NewTask("quota:reconcile_all", nil))
	assert.Error(t, err)
}
