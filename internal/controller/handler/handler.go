package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"simpleweb3/internal/gas"
	"simpleweb3/internal/logger"
	"simpleweb3/internal/model"
	"simpleweb3/internal/service"
	"simpleweb3/internal/units"
	"simpleweb3/internal/validation"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/r3labs/sse/v2"
)

// FeeStreamID is the SSE stream id fee snapshots are published on
const FeeStreamID = "fees"

// ExportService defines the validator export operation
type ExportService interface {
	Export(ctx context.Context, req model.QueryRequest, deliver func(*service.ExportResult) error) error
}

// TransactionService defines the methods for transaction handling
type TransactionService interface {
	EstimateGas(ctx context.Context, from common.Address, draft model.TransactionDraft) (uint64, uint64, error)
	Fees(ctx context.Context) (*model.FeeSnapshot, error)
	FeeHistory(ctx context.Context, n int64) ([]model.FeeSnapshot, error)
	Broadcast(ctx context.Context, raw string) (common.Hash, error)
	Limits() gas.Bounds
	FeeBounds() gas.FeeBounds
}

// Environment reports which warehouse settings are present
type Environment struct {
	HasGoogleCredentials bool `json:"hasGoogleCredentials"`
	HasProjectID         bool `json:"hasProjectId"`
}

// Handler handles HTTP requests
type Handler struct {
	Exports      ExportService
	Transactions TransactionService
	Stream       *sse.Server
	Env          Environment
	logger       logger.Logger
}

// NewHandler creates a new Handler. transactions may be nil when no RPC endpoint is configured.
func NewHandler(exports ExportService, transactions TransactionService, stream *sse.Server, env Environment, l logger.Logger) *Handler {
	return &Handler{
		Exports:      exports,
		Transactions: transactions,
		Stream:       stream,
		Env:          env,
		logger:       l.WithFields(logger.Fields{"component": "http"}),
	}
}

// PublishFees pushes a snapshot to every stream subscriber.
func (h *Handler) PublishFees(snap *model.FeeSnapshot) {
	if h.Stream == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		h.logger.Error("error marshaling fee snapshot", err)
		return
	}
	h.Stream.Publish(FeeStreamID, &sse.Event{Event: []byte("fees"), Data: data})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"timestamp":   time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		"environment": h.Env,
	})
}

// SolanaValidator streams the validator rewards CSV for a date range.
func (h *Handler) SolanaValidator(c *gin.Context) {
	var req model.QueryRequest
	// an unreadable body is reported as missing parameters
	_ = c.ShouldBindJSON(&req)

	err := h.Exports.Export(c.Request.Context(), req, func(res *service.ExportResult) error {
		c.Header("Content-Disposition", `attachment; filename="`+res.Filename+`"`)
		c.Data(http.StatusOK, "text/csv", res.CSV)
		return nil
	})
	if err == nil {
		return
	}

	var (
		reqErr *service.RequestError
		qErr   *service.QueryError
	)
	switch {
	case errors.As(err, &reqErr):
		c.JSON(reqErr.Status, gin.H{"error": reqErr.Message})
	case errors.Is(err, service.ErrNoData):
		c.JSON(http.StatusNotFound, gin.H{"error": service.ErrNoData.Error()})
	case errors.As(err, &qErr):
		h.logger.WithError(err).Error("Server error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "message": qErr.Error()})
	default:
		h.logger.WithError(err).Error("Server error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "message": err.Error()})
	}
}

type draftRequest struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

func (r draftRequest) draft() (model.TransactionDraft, error) {
	txType, err := model.ParseTxType(r.Type)
	if err != nil {
		return model.TransactionDraft{}, err
	}
	d := model.TransactionDraft{To: strings.TrimSpace(r.To), Data: strings.TrimSpace(r.Data), Type: txType}
	if v := strings.TrimSpace(r.Value); v != "" {
		wei, ok := new(big.Int).SetString(v, 0)
		if !ok {
			return model.TransactionDraft{}, errors.New("value must be an integer amount of wei")
		}
		d.ValueWei = wei
	}
	return d, nil
}

func validationBody(err error) (gin.H, bool) {
	var verr *validation.ValidationError
	if !errors.As(err, &verr) {
		return nil, false
	}
	return gin.H{"code": verr.Code, "message": verr.Message()}, true
}

// ValidateTransaction runs the input validator on a draft.
func (h *Handler) ValidateTransaction(c *gin.Context) {
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	d, err := req.draft()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := validation.ValidateDraft(d); err != nil {
		body, _ := validationBody(err)
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": body})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

func (h *Handler) requireTransactions(c *gin.Context) bool {
	if h.Transactions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no rpc endpoint configured"})
		return false
	}
	return true
}

// EstimateGas returns the clamped gas limit for a draft.
func (h *Handler) EstimateGas(c *gin.Context) {
	if !h.requireTransactions(c) {
		return
	}
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	d, err := req.draft()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var from common.Address
	if req.From != "" {
		if !validation.IsAddress(req.From) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sender address"})
			return
		}
		from = common.HexToAddress(req.From)
	}

	limit, estimated, err := h.Transactions.EstimateGas(c.Request.Context(), from, d)
	if err != nil {
		if body, ok := validationBody(err); ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": body})
			return
		}
		h.logger.WithError(err).Warn("gas estimation failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"gasLimit":       limit,
		"estimated":      estimated,
		"bounds":         h.Transactions.Limits(),
		"priorityBounds": h.Transactions.FeeBounds(),
	})
}

// Fees returns the current fee snapshot.
func (h *Handler) Fees(c *gin.Context) {
	if !h.requireTransactions(c) {
		return
	}
	snap, err := h.Transactions.Fees(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Warn("fee lookup failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// FeeHistory returns the recorded fee snapshots, newest first. limit caps
// the count.
func (h *Handler) FeeHistory(c *gin.Context) {
	if !h.requireTransactions(c) {
		return
	}
	var n int64
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		n = parsed
	}

	history, err := h.Transactions.FeeHistory(c.Request.Context(), n)
	switch {
	case errors.Is(err, service.ErrNoFeeHistory):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case err != nil:
		h.logger.WithError(err).Warn("fee history lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "message": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"snapshots": history})
	}
}

// FeeStream serves the fee snapshot SSE stream.
func (h *Handler) FeeStream(c *gin.Context) {
	if h.Stream == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "fee stream disabled"})
		return
	}
	q := c.Request.URL.Query()
	q.Set("stream", FeeStreamID)
	c.Request.URL.RawQuery = q.Encode()
	h.Stream.ServeHTTP(c.Writer, c.Request)
}

// SendTransaction broadcasts a signed raw transaction.
func (h *Handler) SendTransaction(c *gin.Context) {
	if !h.requireTransactions(c) {
		return
	}
	var req struct {
		RawTx string `json:"rawTx"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RawTx == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rawTx is required"})
		return
	}

	hash, err := h.Transactions.Broadcast(c.Request.Context(), req.RawTx)
	if err != nil {
		var (
			reqErr *service.RequestError
			berr   *service.BroadcastError
		)
		switch {
		case errors.As(err, &reqErr):
			c.JSON(reqErr.Status, gin.H{"error": reqErr.Message})
		case errors.As(err, &berr):
			c.JSON(http.StatusBadGateway, gin.H{"error": berr.Message, "message": berr.Err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "message": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"hash": hash.Hex()})
}

// VerifySignature recovers the signer of a personal_sign message.
func (h *Handler) VerifySignature(c *gin.Context) {
	var req struct {
		Message   string `json:"message"`
		Signature string `json:"signature"`
		Address   string `json:"address"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	signer, valid, err := service.VerifySignature(req.Message, req.Signature, req.Address)
	if err != nil {
		var reqErr *service.RequestError
		if errors.As(err, &reqErr) {
			c.JSON(reqErr.Status, gin.H{"error": reqErr.Message})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signer": signer.Hex(), "valid": valid})
}

// Convert runs a unit conversion.
func (h *Handler) Convert(c *gin.Context) {
	var req units.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	out, err := units.Convert(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "result": "ERROR"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": out})
}
