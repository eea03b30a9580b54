package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/chainbook/chainbook/internal/domain"
)

// multipartThreshold is the payload size above which the upload switches to
// the managed multipart path (5 MiB, the S3 minimum part size).
const multipartThreshold = 5 * 1024 * 1024

// Archiver implements domain.BatchArchiver by serialising every reconcile
// result of a batch to JSONL and uploading the file to S3. Batches are
// partitioned by the UTC day they were processed on:
//
//	<prefix>/batches/2026-08-28/<batch-id>.jsonl
type Archiver struct {
	client *Client
	prefix string
	now    func() time.Time
}

// NewArchiver creates an Archiver that writes under the given key prefix.
// An empty prefix stores batches at the bucket root.
func NewArchiver(client *Client, prefix string) *Archiver {
	return &Archiver{
		client: client,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}
}

// ArchiveBatch uploads the batch's results as a single JSONL object.
// Empty batches are skipped.
func (a *Archiver) ArchiveBatch(ctx context.Context, batchID string, results []domain.ReconcileResult) error {
	if len(results) == 0 {
		return nil
	}

	buf, err := marshalJSONL(results)
	if err != nil {
		return fmt.Errorf("s3blob: archive batch %s: %w", batchID, err)
	}

	key := a.batchKey(batchID)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(a.client.Bucket()),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf),
		ContentType: aws.String("application/x-ndjson"),
	}

	if len(buf) > multipartThreshold {
		uploader := manager.NewUploader(a.client.S3())
		if _, err := uploader.Upload(ctx, input); err != nil {
			return fmt.Errorf("s3blob: archive batch %s multipart upload: %w", batchID, err)
		}
		return nil
	}

	if _, err := a.client.S3().PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3blob: archive batch %s upload: %w", batchID, err)
	}
	return nil
}

func (a *Archiver) batchKey(batchID string) string {
	day := a.now().UTC().Format("2006-01-02")
	key := fmt.Sprintf("batches/%s/%s.jsonl", day, batchID)
	if a.prefix != "" {
		key = a.prefix + "/" + key
	}
	return key
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
