package utilities

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestIDGenerator_UniqueUnderConcurrency(t *testing.T) {
	g, err := NewIDGenerator(3)
	require.NoError(t, err)

	var (
		mu   sync.Mutex
		seen = map[int64]struct{}{}
		wg   sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 250; j++ {
				id := g.Next()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 1000)
}

func TestNewIDGenerator_RejectsBadNode(t *testing.T) {
	_, err := NewIDGenerator(5000)
	assert.Error(t, err)
}

func TestNewKSUID(t *testing.T) {
	a, b := NewKSUID(), NewKSUID()
	assert.Len(t, a, 27)
	assert.NotEqual(t, a, b)
}

func TestPageParams(t *testing.T) {
	limit, offset := PageParams(url.Values{"limit": {"10"}, "offset": {"20"}})
	assert.Equal(t, uint(10), limit)
	assert.Equal(t, uint(20), offset)

	limit, offset = PageParams(url.Values{"limit": {"-1"}, "offset": {"x"}})
	assert.Zero(t, limit)
	assert.Zero(t, offset)
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"kobzar"}`))
	require.NoError(t, DecodeJSON(r, &v))
	assert.Equal(t, "kobzar", v.Name)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
	assert.Error(t, DecodeJSON(r, &v))
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, http.StatusConflict, "quota_exhausted", "limit reached")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"limit reached","code":"quota_exhausted"}`, rr.Body.String())
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, levelFromString("debug"))
	assert.Equal(t, zapcore.WarnLevel, levelFromString("warning"))
	assert.Equal(t, zapcore.InfoLevel, levelFromString("nonsense"))
}

func TestInit_WritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookcrossing.log")
	lg, err := Init(Config{Level: "info", File: path, MaxAgeDays: 1})
	require.NoError(t, err)

	lg.Sugar().Infow("request created", "request_id", 1)
	_ = lg.Sync()

	matches, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	b, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"request created"`)
}

func TestIDGeneratorFromEnv(t *testing.T) {
	t.Setenv("SNOWFLAKE_NODE", "")
	g, err := IDGeneratorFromEnv(NodeCLI)
	require.NoError(t, err)
	assert.Equal(t, NodeCLI, snowflake.ParseInt64(g.Next()).Node())

	t.Setenv("SNOWFLAKE_NODE", "17")
	g, err = IDGeneratorFromEnv(NodeCLI)
	require.NoError(t, err)
	assert.Equal(t, int64(17), snowflake.ParseInt64(g.Next()).Node())

	assert.NotEqual(t, NodeAPI, NodeCLI)
}
