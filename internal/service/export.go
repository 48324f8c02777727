package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"simpleweb3/internal/csvexport"
	"simpleweb3/internal/logger"
	"simpleweb3/internal/metrics"
	"simpleweb3/internal/model"
	"simpleweb3/internal/warehouse"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

const (
	msgMissingParams = "Missing required parameters: pubkey1, pubkey2, startDate, endDate"
	msgInvalidPubkey = "Invalid pubkey format. Pubkeys must be valid base58 strings."
	msgInvalidDate   = "Invalid date format. Use YYYY-MM-DD format."
	msgDateOrder     = "Start date must be before end date."
)

var base58Re = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

// Stage of an export request
type Stage string

const (
	StageReceived    Stage = "received"
	StageValidated   Stage = "validated"
	StageQuerying    Stage = "querying"
	StageRowsFetched Stage = "rows-fetched"
	StageCSVBuilt    Stage = "csv-built"
	StageSent        Stage = "sent"
	StageFailed      Stage = "failed"
)

// ExportResult is a finished CSV document ready to send
type ExportResult struct {
	JobID    string
	Filename string
	Rows     int
	CSV      []byte
}

// ExportService turns validator export requests into CSV documents
type ExportService struct {
	warehouse warehouse.Querier
	logger    logger.Logger

	// OnStage, when set, observes every stage transition
	OnStage func(jobID string, stage Stage)
}

// NewExportService creates the export service. A nil querier makes every
// valid request fail with a QueryError.
func NewExportService(q warehouse.Querier, l logger.Logger) *ExportService {
	return &ExportService{
		warehouse: q,
		logger:    l.WithFields(logger.Fields{"component": "export"}),
	}
}

// ValidateQuery checks a request and converts it to a warehouse query.
// Checks run in a fixed order and the first failure wins.
func ValidateQuery(req model.QueryRequest) (warehouse.Query, error) {
	if req.Pubkey1 == "" || req.Pubkey2 == "" || req.StartDate == "" || req.EndDate == "" {
		return warehouse.Query{}, badRequest(msgMissingParams)
	}
	for _, pk := range []string{req.Pubkey1, req.Pubkey2} {
		if !IsValidatorPubkey(pk) {
			return warehouse.Query{}, badRequest(msgInvalidPubkey)
		}
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return warehouse.Query{}, badRequest(msgInvalidDate)
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return warehouse.Query{}, badRequest(msgInvalidDate)
	}
	if !start.Before(end) {
		return warehouse.Query{}, badRequest(msgDateOrder)
	}

	return warehouse.Query{
		Pubkeys: []string{req.Pubkey1, req.Pubkey2},
		Start:   start,
		End:     end,
	}, nil
}

// IsValidatorPubkey reports whether s is a base58 encoded 32 byte public key.
func IsValidatorPubkey(s string) bool {
	if !base58Re.MatchString(s) {
		return false
	}
	_, err := solana.PublicKeyFromBase58(s)
	return err == nil
}

// ExportFilename is the attachment name for a date range.
func ExportFilename(start, end string) string {
	return fmt.Sprintf("solana_validator_data_%s_to_%s.csv", start, end)
}

// Export validates req, runs the warehouse query and hands the CSV to
// deliver. The request reaches the sent stage only when deliver succeeds.
func (s *ExportService) Export(ctx context.Context, req model.QueryRequest, deliver func(*ExportResult) error) (err error) {
	jobID := uuid.NewString()
	ctx = logger.IntoContext(ctx, logger.Fields{"export_id": jobID})
	l := s.logger.WithContext(ctx)
	stage := StageReceived
	s.enter(l, jobID, stage)

	outcome := "failed"
	defer func() {
		metrics.ExportRequests.WithLabelValues(outcome).Inc()
		if err != nil && stage != StageReceived && !errors.Is(err, ErrNoData) {
			l.WithError(err).Warn("export failed", logger.Fields{"from_stage": stage})
			s.enter(l, jobID, StageFailed)
		}
	}()

	q, err := ValidateQuery(req)
	if err != nil {
		outcome = "invalid"
		l.Info("export rejected", logger.Fields{"reason": err.Error()})
		return err
	}
	stage = StageValidated
	s.enter(l, jobID, stage)

	if s.warehouse == nil {
		return &QueryError{Err: errors.New("BigQuery client is not configured")}
	}

	started := time.Now()
	stage = StageQuerying
	s.enter(l, jobID, stage)
	records, err := s.warehouse.QueryRewards(ctx, q)
	if err != nil {
		return &QueryError{Err: err}
	}
	stage = StageRowsFetched
	s.enter(l, jobID, stage)

	if len(records) == 0 {
		outcome = "empty"
		l.Info("export found no rows", logger.Fields{"start": req.StartDate, "end": req.EndDate})
		return ErrNoData
	}
	metrics.ExportRows.Add(float64(len(records)))

	res := &ExportResult{
		JobID:    jobID,
		Filename: ExportFilename(req.StartDate, req.EndDate),
		Rows:     len(records),
		CSV:      csvexport.Build(records),
	}
	stage = StageCSVBuilt
	s.enter(l, jobID, stage)
	metrics.ExportDuration.Observe(time.Since(started).Seconds())

	if err := deliver(res); err != nil {
		return fmt.Errorf("error sending csv: %w", err)
	}
	stage = StageSent
	outcome = "ok"
	s.enter(l, jobID, stage)
	l.Info("export sent", logger.Fields{"rows": res.Rows, "bytes": len(res.CSV), "filename": res.Filename})
	return nil
}

func (s *ExportService) enter(l logger.Logger, jobID string, stage Stage) {
	l.Debug("export stage", logger.Fields{"stage": stage})
	if s.OnStage != nil {
		s.OnStage(jobID, stage)
	}
}
