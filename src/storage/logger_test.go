package storage

import (
	"DeliveryInsight/src/config"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	logger, err := NewLogger(path)
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })
	return logger, path
}

func TestLogWritesEntry(t *testing.T) {
	logger, path := newTestLogger(t)

	logger.Infof("删除行数: %d", 5)
	logger.Warning("outliers\n")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "] INFO: 删除行数: 5")
	assert.True(t, strings.HasSuffix(lines[1], "WARNING: outliers"))
}

func TestSetLevelFilters(t *testing.T) {
	logger, path := newTestLogger(t)
	logger.SetLevel(WARNING)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Error("shown")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "ERROR: shown")
}

func TestSubscribeReceivesEntries(t *testing.T) {
	logger, _ := newTestLogger(t)
	ch := logger.Subscribe()

	logger.Info("hello")

	select {
	case msg := <-ch:
		assert.Contains(t, msg, "INFO: hello")
	case <-time.After(time.Second):
		t.Fatal("no entry delivered to subscriber")
	}

	logger.Unsubscribe(ch)
	_, open := <-ch
	assert.False(t, open)

	// 取消订阅后继续写日志不应阻塞或 panic
	logger.Info("after")
}

func TestCheckRotate(t *testing.T) {
	logger, path := newTestLogger(t)
	cfg := &config.Config{LogMaxSize: "1 * 64"}

	for i := 0; i < 5; i++ {
		logger.Info("a line long enough to push the file over the limit")
	}
	require.NoError(t, logger.CheckRotate(cfg))

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "app.*.log"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	logger.Info("fresh")
	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.NotZero(t, info.Size())
}

func TestRotateFailureKeepsWriting(t *testing.T) {
	logger, path := newTestLogger(t)
	fixed := time.Date(2022, 3, 19, 8, 0, 0, 0, time.Local)
	timeNow = func() time.Time { return fixed }
	t.Cleanup(func() { timeNow = time.Now })

	// 轮转目标被非空目录占用，改名失败
	rotated := filepath.Join(filepath.Dir(path), "app.20220319080000.log")
	require.NoError(t, os.MkdirAll(filepath.Join(rotated, "keep"), 0755))

	logger.Info("before rotation")
	err := logger.CheckRotate(&config.Config{LogMaxSize: "10"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "重命名失败")

	logger.Info("after failed rotation")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "before rotation")
	assert.Contains(t, string(data), "after failed rotation")
}

func TestCheckRotateDisabled(t *testing.T) {
	logger, _ := newTestLogger(t)
	logger.Info("x")
	assert.NoError(t, logger.CheckRotate(&config.Config{}))
}

func TestReopen(t *testing.T) {
	logger, path := newTestLogger(t)
	logger.Info("before")

	moved := path + ".1"
	require.NoError(t, os.Rename(path, moved))
	require.NoError(t, logger.Reopen(""))
	logger.Info("after")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "after")
	assert.NotContains(t, string(data), "before")
}

func TestEval(t *testing.T) {
	assert.Equal(t, int64(10*1024*1024), eval("10 * 1024 * 1024"))
	assert.Equal(t, int64(2048), eval("2048"))
	assert.Equal(t, int64(0), eval(""))
	assert.Equal(t, int64(0), eval("ten * 2"))
}
