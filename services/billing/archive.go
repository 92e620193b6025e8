package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/minio/minio-go/v7"
)

// Archiver keeps an immutable copy of settled invoices.
type Archiver interface {
	Archive(ctx context.Context, inv *Invoice) (string, error)
}

type minioArchiver struct {
	client *minio.Client
	bucket string
}

func NewMinioArchiver(client *minio.Client, bucket string) Archiver {
	return &minioArchiver{client: client, bucket: bucket}
}

func archiveKey(inv *Invoice) string {
	return fmt.Sprintf("invoices/%s/%s-%s.json", inv.SaasID, inv.Number, inv.Status)
}

func (a *minioArchiver) Archive(ctx context.Context, inv *Invoice) (string, error) {
	body, err := json.Marshal(inv)
	if err != nil {
		return "", err
	}

	key := archiveKey(inv)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
		UserMetadata: map[string]string{
			"saas-id": inv.SaasID,
			"status":  string(inv.Status),
		},
	})
	if err != nil {
		return "", err
	}
	return key, nil
}
