package storage

import (
	"context"
	"testing"
)

func TestNewClientRequiresBucketAndRegion(t *testing.T) {
	if _, err := NewClient(context.Background(), S3Config{Region: "us-east-1"}); err == nil {
		t.Fatalf("expected error without bucket")
	}
	if _, err := NewClient(context.Background(), S3Config{Bucket: "recordings"}); err == nil {
		t.Fatalf("expected error without region")
	}
}

func TestPutValidatesKey(t *testing.T) {
	var nilClient *Client
	if err := nilClient.Put(context.Background(), "k", "text/plain", nil); err == nil {
		t.Fatalf("expected error from nil client")
	}

	c, err := NewClient(context.Background(), S3Config{
		Region:    "us-east-1",
		Bucket:    "recordings",
		AccessKey: "test",
		SecretKey: "test",
		Endpoint:  "http://127.0.0.1:1",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := c.Put(context.Background(), "", "text/plain", []byte("x")); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
