package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/rtp-engine/internal/config"
	"github.com/wfunc/rtp-engine/internal/game/rtp"
	"github.com/wfunc/rtp-engine/internal/models"
	"github.com/wfunc/rtp-engine/internal/repository"
	"github.com/wfunc/rtp-engine/internal/service"
	"github.com/wfunc/rtp-engine/internal/utils"
	ws "github.com/wfunc/rtp-engine/internal/websocket"
	"go.uber.org/zap"
)

const testOperatorKey = "test-operator-key"

// newTestRouter 构造完整接线的测试路由器
func newTestRouter(t *testing.T) *Router {
	t.Helper()
	gin.SetMode(gin.TestMode)

	keyHash, err := utils.HashKey(testOperatorKey)
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "test"},
		Security: config.SecurityConfig{
			JWTSecret:       "test-secret",
			OperatorKeyHash: keyHash,
			TokenExpiry:     time.Hour,
		},
	}

	db := repository.TestDB(t)
	runRepo := repository.NewSimulationRunRepository(db)
	snapshotRepo := repository.NewSpinSnapshotRepository(db)

	log := zap.NewNop()
	hub := ws.NewHub(log)
	go hub.Run()

	simulator := service.NewSimulator(service.SimulatorOptions{
		TargetRTP: 0.95,
		Gains:     rtp.PIDConfig{Kp: 0.8, Ki: 0.015, Kd: 0.15},
		ReelCount: 3,
		MinBet:    0.1,
		MaxBet:    100,
	}, runRepo, snapshotRepo, hub, log)

	return NewRouter(cfg, simulator, hub, log)
}

// obtainToken 走认证接口获取令牌
func obtainToken(t *testing.T, router *Router) string {
	t.Helper()

	body, _ := json.Marshal(TokenRequest{OperatorKey: testOperatorKey})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/auth/token", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	router.Engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestRouter_HealthCheck(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	router.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestRouter_IssueToken(t *testing.T) {
	router := newTestRouter(t)

	t.Run("正确的运营密钥", func(t *testing.T) {
		token := obtainToken(t, router)
		assert.NotEmpty(t, token)
	})

	t.Run("错误的运营密钥", func(t *testing.T) {
		body, _ := json.Marshal(TokenRequest{OperatorKey: "wrong-key"})
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/v1/auth/token", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		router.Engine().ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("缺少参数", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/v1/auth/token", bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")
		router.Engine().ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRouter_Simulations_RequireAuth(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/simulations", nil)
	router.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_SimulationLifecycle(t *testing.T) {
	router := newTestRouter(t)
	token := obtainToken(t, router)

	authedRequest := func(method, path string, body []byte) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		router.Engine().ServeHTTP(w, req)
		return w
	}

	// 启动模拟
	body, _ := json.Marshal(service.RunRequest{
		Mode:           models.RunModeFixed,
		MaxSpins:       200,
		BetSize:        1.0,
		SampleInterval: 20,
		Seed:           42,
	})
	w := authedRequest("POST", "/api/v1/simulations", body)
	require.Equal(t, http.StatusAccepted, w.Code)

	var started models.SimulationRun
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	require.NotEmpty(t, started.RunID)

	// 等待异步执行完成
	deadline := time.Now().Add(10 * time.Second)
	var finished models.SimulationRun
	for {
		w = authedRequest("GET", "/api/v1/simulations/"+started.RunID, nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &finished))
		if finished.IsFinished() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("等待模拟完成超时")
		}
		time.Sleep(20 * time.Millisecond)
	}

	assert.Equal(t, models.RunStatusCompleted, finished.Status)
	assert.Equal(t, 200, finished.SpinsExecuted)

	// 列表
	w = authedRequest("GET", "/api/v1/simulations?page=1&page_size=10", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, int64(1), list.Total)

	// 快照
	w = authedRequest("GET", "/api/v1/simulations/"+started.RunID+"/snapshots?page=1&page_size=50", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var snapshots ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshots))
	assert.Equal(t, int64(10), snapshots.Total)

	// 统计
	w = authedRequest("GET", "/api/v1/simulations/statistics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats repository.RunStatistics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalRuns)
	assert.Equal(t, int64(1), stats.CompletedRuns)
}

func TestRouter_StartSimulation_InvalidMode(t *testing.T) {
	router := newTestRouter(t)
	token := obtainToken(t, router)

	body, _ := json.Marshal(service.RunRequest{Mode: "turbo"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/simulations", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	router.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_GetSimulation_NotFound(t *testing.T) {
	router := newTestRouter(t)
	token := obtainToken(t, router)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/simulations/no-such-run", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.Engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
