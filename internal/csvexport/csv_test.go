package csvexport

import (
	"bytes"
	"encoding/csv"
	"math/big"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []Record {
	ts := time.Date(2025, 10, 2, 13, 4, 5, 0, time.UTC)
	return []Record{
		{{"block_slot", int64(300)}, {"pubkey", "Vote111"}, {"lamports", big.NewRat(5000, 1)}, {"block_timestamp", ts}},
		{{"block_slot", int64(299)}, {"pubkey", "Vote, \"quoted\""}, {"lamports", big.NewRat(1, 4)}, {"block_timestamp", ts.Add(-time.Hour)}},
		{{"block_slot", int64(298)}, {"pubkey", "multi\nline"}, {"lamports", nil}, {"block_timestamp", ts.Add(-2 * time.Hour)}},
	}
}

func TestBuildDeterministic(t *testing.T) {
	records := sampleRecords()
	first := Build(records)
	second := Build(records)
	assert.Equal(t, first, second)

	want := "block_slot,pubkey,lamports,block_timestamp\n" +
		"300,Vote111,5000,2025-10-02T13:04:05Z\n" +
		"299,\"Vote, \"\"quoted\"\"\",0.25,2025-10-02T12:04:05Z\n" +
		"298,\"multi\nline\",,2025-10-02T11:04:05Z\n"
	assert.Equal(t, want, string(first))
}

func TestBuildRoundTripsThroughEncodingCSV(t *testing.T) {
	records := sampleRecords()
	rows, err := csv.NewReader(bytes.NewReader(Build(records))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(records)+1)

	assert.Equal(t, Header(records), rows[0])
	assert.Equal(t, "Vote, \"quoted\"", rows[2][1])
	assert.Equal(t, "multi\nline", rows[3][1])
	assert.Equal(t, "", rows[3][2])
}

func TestBuildEmpty(t *testing.T) {
	assert.Empty(t, Build(nil))
}

func TestMissingKeysLeftEmpty(t *testing.T) {
	out := Build([]Record{
		{{"a", "1"}, {"b", "2"}},
		{{"b", "3"}},
	})
	assert.Equal(t, "a,b\n1,2\n,3\n", string(out))
}

func TestEscape(t *testing.T) {
	assert.Equal(t, "plain", Escape("plain"))
	assert.Equal(t, `"a,b"`, Escape("a,b"))
	assert.Equal(t, `"say ""hi"""`, Escape(`say "hi"`))
	assert.Equal(t, "\"x\ny\"", Escape("x\ny"))
	assert.Equal(t, " lead", Escape(" lead"))
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"int rat", big.NewRat(12345, 1), "12345"},
		{"fraction rat", big.NewRat(3, 8), "0.375"},
		{"negative rat", big.NewRat(-1, 2), "-0.5"},
		{"timestamp nanos", time.Date(2025, 1, 2, 3, 4, 5, 600, time.FixedZone("x", 3600)), "2025-01-02T02:04:05.0000006Z"},
		{"civil date", civil.Date{Year: 2025, Month: time.October, Day: 1}, "2025-10-01"},
		{"float", 1.5, "1.5"},
		{"bool", true, "true"},
		{"bytes", []byte("hi"), "aGk="},
		{"list", []any{"a", int64(1)}, `["a",1]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Coerce(tt.in))
		})
	}
}

func TestLineCount(t *testing.T) {
	out := string(Build(sampleRecords()[:1]))
	assert.Equal(t, 2, strings.Count(out, "\n"))
}
