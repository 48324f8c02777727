package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"simpleweb3/internal/config"
	"simpleweb3/internal/controller/handler"
	"simpleweb3/internal/csvexport"
	"simpleweb3/internal/gas"
	"simpleweb3/internal/logger"
	"simpleweb3/internal/model"
	"simpleweb3/internal/service"
	"simpleweb3/internal/warehouse"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	votePubkey  = "Vote111111111111111111111111111111111111111"
	stakePubkey = "Stake11111111111111111111111111111111111111"
	recipient   = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeWarehouse struct {
	mu      sync.Mutex
	records []csvexport.Record
	err     error
	calls   int
}

func (f *fakeWarehouse) QueryRewards(context.Context, warehouse.Query) ([]csvexport.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.records, f.err
}

type fakeTx struct {
	estimate uint64
	err      error
	sent     []string
	history  []model.FeeSnapshot
	limit    int64
}

func (f *fakeTx) EstimateGas(_ context.Context, _ common.Address, d model.TransactionDraft) (uint64, uint64, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	return f.Limits().Clamp(f.estimate), f.estimate, nil
}

func (f *fakeTx) Fees(context.Context) (*model.FeeSnapshot, error) {
	return &model.FeeSnapshot{
		ChainID:     "17000",
		BaseFee:     big.NewInt(30),
		PriorityFee: big.NewInt(2),
		MaxFee:      big.NewInt(32),
		BlockNumber: 9,
	}, nil
}

func (f *fakeTx) FeeHistory(_ context.Context, n int64) ([]model.FeeSnapshot, error) {
	if f.history == nil {
		return nil, service.ErrNoFeeHistory
	}
	f.limit = n
	return f.history, nil
}

func (f *fakeTx) Broadcast(_ context.Context, raw string) (common.Hash, error) {
	if f.err != nil {
		return common.Hash{}, &service.BroadcastError{Message: service.ClassifySendError(f.err), Err: f.err}
	}
	f.sent = append(f.sent, raw)
	return common.HexToHash("0xabc"), nil
}

func (f *fakeTx) Limits() gas.Bounds { return gas.NewBounds(config.Default().Gas) }

func (f *fakeTx) FeeBounds() gas.FeeBounds {
	fb, _ := gas.NewFeeBounds(config.Default().Gas)
	return fb
}

func rows(n int) []csvexport.Record {
	out := make([]csvexport.Record, n)
	for i := range out {
		out[i] = csvexport.Record{
			{Key: "block_slot", Value: int64(100 - i)},
			{Key: "pubkey", Value: votePubkey},
			{Key: "block_timestamp", Value: time.Date(2025, 10, 2, i, 0, 0, 0, time.UTC)},
		}
	}
	return out
}

func newTestRouter(wh warehouse.Querier, tx handler.TransactionService) *gin.Engine {
	h := handler.NewHandler(service.NewExportService(wh, logger.Nop()), tx, NewStream(), handler.Environment{HasProjectID: true}, logger.Nop())
	return NewRouter(config.Default(), h)
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func exportBody(start, end string) map[string]string {
	return map[string]string{"pubkey1": votePubkey, "pubkey2": stakePubkey, "startDate": start, "endDate": end}
}

func TestSolanaValidatorReturnsCSV(t *testing.T) {
	wh := &fakeWarehouse{records: rows(3)}
	w := doJSON(t, newTestRouter(wh, nil), http.MethodPost, "/api/solana-validator", exportBody("2025-10-01", "2025-10-03"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="solana_validator_data_2025-10-01_to_2025-10-03.csv"`, w.Header().Get("Content-Disposition"))

	lines := strings.Split(strings.TrimSuffix(w.Body.String(), "\n"), "\n")
	assert.Len(t, lines, 4)
	assert.Equal(t, "block_slot,pubkey,block_timestamp", lines[0])
	assert.Equal(t, "100,"+votePubkey+",2025-10-02T00:00:00Z", lines[1])
}

func TestSolanaValidatorRejectsDateOrder(t *testing.T) {
	wh := &fakeWarehouse{records: rows(3)}
	w := doJSON(t, newTestRouter(wh, nil), http.MethodPost, "/api/solana-validator", exportBody("2025-10-03", "2025-10-03"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Start date must be before end date.", decode(t, w)["error"])
	assert.Zero(t, wh.calls)
}

func TestSolanaValidatorMissingParams(t *testing.T) {
	wh := &fakeWarehouse{}
	router := newTestRouter(wh, nil)

	w := doJSON(t, router, http.MethodPost, "/api/solana-validator", map[string]string{"pubkey1": votePubkey})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing required parameters: pubkey1, pubkey2, startDate, endDate", decode(t, w)["error"])

	req := httptest.NewRequest(http.MethodPost, "/api/solana-validator", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, wh.calls)
}

func TestSolanaValidatorNoRows(t *testing.T) {
	wh := &fakeWarehouse{}
	w := doJSON(t, newTestRouter(wh, nil), http.MethodPost, "/api/solana-validator", exportBody("2025-10-01", "2025-10-03"))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "No data found for the specified parameters", decode(t, w)["error"])
}

func TestSolanaValidatorWarehouseFailure(t *testing.T) {
	wh := &fakeWarehouse{err: errors.New("quota exceeded")}
	w := doJSON(t, newTestRouter(wh, nil), http.MethodPost, "/api/solana-validator", exportBody("2025-10-01", "2025-10-03"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Internal server error", body["error"])
	assert.Equal(t, "BigQuery query failed: quota exceeded", body["message"])
}

func TestHealth(t *testing.T) {
	w := doJSON(t, newTestRouter(nil, nil), http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
	assert.Equal(t, map[string]any{"hasGoogleCredentials": false, "hasProjectId": true}, body["environment"])
}

func TestValidateTransaction(t *testing.T) {
	router := newTestRouter(nil, nil)

	w := doJSON(t, router, http.MethodPost, "/api/tx/validate", map[string]string{"to": recipient, "data": "0xdead"})
	assert.Equal(t, true, decode(t, w)["valid"])

	w = doJSON(t, router, http.MethodPost, "/api/tx/validate", map[string]string{"to": recipient, "data": "0xzz"})
	body := decode(t, w)
	assert.Equal(t, false, body["valid"])
	assert.EqualValues(t, 503, body["error"].(map[string]any)["code"])
}

func TestEstimateGasRoute(t *testing.T) {
	router := newTestRouter(nil, &fakeTx{estimate: 15_000})

	w := doJSON(t, router, http.MethodPost, "/api/gas/estimate", map[string]string{"to": recipient, "value": "1000"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 21_000, body["gasLimit"])
	assert.EqualValues(t, 15_000, body["estimated"])

	w = doJSON(t, router, http.MethodPost, "/api/gas/estimate", map[string]string{"to": recipient, "from": "0x12"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransactionRoutesDisabledWithoutRPC(t *testing.T) {
	router := newTestRouter(nil, nil)
	for _, path := range []string{"/api/gas/estimate", "/api/tx/send"} {
		w := doJSON(t, router, http.MethodPost, path, map[string]string{})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
	w := doJSON(t, router, http.MethodGet, "/api/gas/fees", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestFeesRoute(t *testing.T) {
	w := doJSON(t, newTestRouter(nil, &fakeTx{}), http.MethodGet, "/api/gas/fees", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "17000", body["chainId"])
	assert.EqualValues(t, 32, body["maxFee"])
}

func TestFeeHistoryRoute(t *testing.T) {
	tx := &fakeTx{history: []model.FeeSnapshot{
		{ChainID: "17000", BlockNumber: 11, MaxFee: big.NewInt(40)},
		{ChainID: "17000", BlockNumber: 10, MaxFee: big.NewInt(32)},
	}}
	router := newTestRouter(nil, tx)

	w := doJSON(t, router, http.MethodGet, "/api/gas/history?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), tx.limit)
	snaps := decode(t, w)["snapshots"].([]any)
	require.Len(t, snaps, 2)
	assert.EqualValues(t, 11, snaps[0].(map[string]any)["blockNumber"])

	w = doJSON(t, router, http.MethodGet, "/api/gas/history?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, newTestRouter(nil, &fakeTx{}), http.MethodGet, "/api/gas/history", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSendTransactionRoute(t *testing.T) {
	tx := &fakeTx{}
	router := newTestRouter(nil, tx)

	w := doJSON(t, router, http.MethodPost, "/api/tx/send", map[string]string{"rawTx": "0x02f8"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, common.HexToHash("0xabc").Hex(), decode(t, w)["hash"])

	w = doJSON(t, router, http.MethodPost, "/api/tx/send", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	tx.err = errors.New("insufficient funds for gas * price + value")
	w = doJSON(t, router, http.MethodPost, "/api/tx/send", map[string]string{"rawTx": "0x02f8"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "Insufficient funds for transaction.", decode(t, w)["error"])
}

func TestConvertRoute(t *testing.T) {
	router := newTestRouter(nil, nil)

	w := doJSON(t, router, http.MethodPost, "/api/convert", map[string]string{"mode": "DEC2HEX", "input": "255"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0xFF", decode(t, w)["result"])

	w = doJSON(t, router, http.MethodPost, "/api/convert", map[string]string{"mode": "ETH2WEI", "input": "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ERROR", decode(t, w)["result"])
}

func TestVerifySignatureRoute(t *testing.T) {
	w := doJSON(t, newTestRouter(nil, nil), http.MethodPost, "/api/sign/verify", map[string]string{"message": "hi", "signature": "0x12"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsRoute(t *testing.T) {
	w := doJSON(t, newTestRouter(nil, nil), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
