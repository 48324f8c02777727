package warehouse

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"time"

	"simpleweb3/internal/csvexport"
	"simpleweb3/internal/logger"
	"simpleweb3/internal/telemetry"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const rewardsQuery = "SELECT * FROM `%s` " +
	"WHERE pubkey IN UNNEST(@pubkeys) " +
	"AND block_timestamp >= @start_date " +
	"AND block_timestamp < @end_date " +
	"ORDER BY block_timestamp DESC"

var tableRe = regexp.MustCompile(`^[A-Za-z0-9_\-]+(\.[A-Za-z0-9_\- ]+){1,2}$`)

// Query selects the rewards of a set of validators over [Start, End)
type Query struct {
	Pubkeys []string
	Start   time.Time
	End     time.Time
}

// Querier runs validator reward queries
type Querier interface {
	QueryRewards(ctx context.Context, q Query) ([]csvexport.Record, error)
}

type BigQuery struct {
	client     *bigquery.Client
	table      string
	jobTimeout time.Duration
	logger     logger.Logger
}

// DecodeCredentials turns the base64 service account JSON into raw JSON.
func DecodeCredentials(b64 string) ([]byte, error) {
	creds, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("error decoding google credentials: %w", err)
	}
	return creds, nil
}

// NewBigQuery creates a client for projectID authenticated with base64 credentials.
func NewBigQuery(ctx context.Context, projectID, credentialsB64, table string, jobTimeout time.Duration, l logger.Logger) (*BigQuery, error) {
	if projectID == "" || credentialsB64 == "" {
		return nil, errors.New("GOOGLE_CREDENTIALS_FILE and GOOGLE_PROJECT_ID must be set")
	}
	if !tableRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	creds, err := DecodeCredentials(credentialsB64)
	if err != nil {
		return nil, err
	}

	client, err := bigquery.NewClient(ctx, projectID, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, fmt.Errorf("error creating bigquery client: %w", err)
	}
	l.Info("Google credentials loaded successfully", logger.Fields{"project": projectID})

	return &BigQuery{
		client:     client,
		table:      table,
		jobTimeout: jobTimeout,
		logger:     l.WithFields(logger.Fields{"component": "bigquery"}),
	}, nil
}

// SQL returns the statement run for every query.
func (b *BigQuery) SQL() string {
	return fmt.Sprintf(rewardsQuery, b.table)
}

// QueryRewards runs one query job, waits for it and reads every row.
func (b *BigQuery) QueryRewards(ctx context.Context, q Query) (_ []csvexport.Record, err error) {
	jobID := "simpleweb3-export-" + uuid.NewString()
	ctx, span := telemetry.StartSpan(ctx, "bigquery.QueryRewards",
		attribute.String("bigquery.job_id", jobID),
		attribute.StringSlice("validator.pubkeys", q.Pubkeys),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	bq := b.client.Query(b.SQL())
	bq.JobID = jobID
	bq.JobTimeout = b.jobTimeout
	bq.Parameters = []bigquery.QueryParameter{
		{Name: "pubkeys", Value: q.Pubkeys},
		{Name: "start_date", Value: q.Start.UTC()},
		{Name: "end_date", Value: q.End.UTC()},
	}

	l := b.logger.WithContext(ctx).WithFields(logger.Fields{"job_id": jobID})
	l.Info("Starting BigQuery query", logger.Fields{"pubkeys": q.Pubkeys, "start": q.Start, "end": q.End})

	job, err := bq.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("error starting job: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("error waiting for job %s: %w", job.ID(), err)
	}
	if err := status.Err(); err != nil {
		return nil, err
	}

	it, err := job.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("error reading results of job %s: %w", job.ID(), err)
	}

	var records []csvexport.Record
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading row %d: %w", len(records), err)
		}
		records = append(records, toRecord(it.Schema, row))
	}

	l.Info("Query completed", logger.Fields{"rows": len(records)})
	span.SetAttributes(attribute.Int("bigquery.rows", len(records)))
	return records, nil
}

func (b *BigQuery) Close() error {
	return b.client.Close()
}

func toRecord(schema bigquery.Schema, row []bigquery.Value) csvexport.Record {
	rec := make(csvexport.Record, len(row))
	for i, v := range row {
		var fs *bigquery.FieldSchema
		name := fmt.Sprintf("f%d", i)
		if i < len(schema) {
			fs = schema[i]
			name = fs.Name
		}
		rec[i] = csvexport.Field{Key: name, Value: normalize(fs, v)}
	}
	return rec
}

// normalize turns repeated and nested values into plain slices and maps.
func normalize(fs *bigquery.FieldSchema, v bigquery.Value) any {
	vals, ok := v.([]bigquery.Value)
	if !ok {
		return v
	}

	if fs != nil && fs.Repeated {
		elem := *fs
		elem.Repeated = false
		out := make([]any, len(vals))
		for i, e := range vals {
			out[i] = normalize(&elem, e)
		}
		return out
	}

	if fs != nil && fs.Type == bigquery.RecordFieldType {
		out := make(map[string]any, len(vals))
		for i, e := range vals {
			if i < len(fs.Schema) {
				out[fs.Schema[i].Name] = normalize(fs.Schema[i], e)
			}
		}
		return out
	}

	out := make([]any, len(vals))
	for i, e := range vals {
		out[i] = normalize(nil, e)
	}
	return out
}
