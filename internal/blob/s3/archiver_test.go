package s3blob

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainbook/chainbook/internal/domain"
)

func TestBatchKey(t *testing.T) {
	at := time.Date(2026, 8, 28, 15, 4, 5, 0, time.UTC)

	a := &Archiver{prefix: "chainbook", now: func() time.Time { return at }}
	assert.Equal(t, "chainbook/batches/2026-08-28/abc.jsonl", a.batchKey("abc"))

	bare := &Archiver{now: func() time.Time { return at }}
	assert.Equal(t, "batches/2026-08-28/abc.jsonl", bare.batchKey("abc"))
}

func TestNewArchiverTrimsPrefix(t *testing.T) {
	a := NewArchiver(nil, "/nested/prefix/")
	assert.Equal(t, "nested/prefix", a.prefix)
}

func TestMarshalJSONL(t *testing.T) {
	results := []domain.ReconcileResult{
		{ID: "a", Status: domain.StatusSuccess},
		{ID: "b", Status: domain.StatusDelayed},
	}

	buf, err := marshalJSONL(results)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimRight(buf, "\n"), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), `"success"`)
	assert.Contains(t, string(lines[1]), `"delayed"`)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://minio.local", normaliseEndpoint("minio.local", true))
	assert.Equal(t, "http://minio.local", normaliseEndpoint("minio.local", false))
	assert.Equal(t, "http://minio.local:9000", normaliseEndpoint("http://minio.local:9000", true))
}
