package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// apiError implements smithy.APIError for test assertions.
type apiError struct {
	code string
	msg  string
}

func (e *apiError) Error() string                 { return e.msg }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.msg }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

var (
	errNoSuchKey = &apiError{code: "NoSuchKey", msg: "no such key"}
	errNotFound  = &apiError{code: "NotFound", msg: "not found"}
)

// mockS3 is a thread-safe in-memory S3 backend for testing.
type mockS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	keys    []string

	getErr  error
	headErr error
}

func newMockS3(objects map[string][]byte) *mockS3 {
	return &mockS3{objects: objects}
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, *in.Key)
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, errNoSuchKey
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(data)),
	}, nil
}

func (m *mockS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if m.headErr != nil {
		return nil, m.headErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[*in.Key]; !ok {
		return nil, errNotFound
	}
	return &s3.HeadObjectOutput{}, nil
}

func TestS3Open(t *testing.T) {
	mock := newMockS3(map[string][]byte{"ecosight/head.yaml": []byte("layers: []")})
	store := NewS3(mock, "models", "ecosight/")

	data, err := ReadFile(context.Background(), store, "head.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "layers: []" {
		t.Fatalf("got %q", data)
	}
	if mock.keys[0] != "ecosight/head.yaml" {
		t.Errorf("key = %q, want ecosight/head.yaml", mock.keys[0])
	}
}

func TestS3OpenNotExist(t *testing.T) {
	store := NewS3(newMockS3(map[string][]byte{}), "models", "")

	_, err := store.Open(context.Background(), "missing")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}

func TestS3OpenOtherError(t *testing.T) {
	mock := newMockS3(map[string][]byte{})
	mock.getErr = &apiError{code: "AccessDenied", msg: "access denied"}
	store := NewS3(mock, "models", "")

	_, err := store.Open(context.Background(), "head.yaml")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, os.ErrNotExist) {
		t.Fatal("access denied must not look like a missing object")
	}
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorCode() != "AccessDenied" {
		t.Errorf("err = %v, want wrapped AccessDenied", err)
	}
}

func TestS3Exists(t *testing.T) {
	mock := newMockS3(map[string][]byte{"a": nil})
	store := NewS3(mock, "models", "")
	ctx := context.Background()

	ok, err := store.Exists(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("Exists(a) = %v, %v; want true, nil", ok, err)
	}
	ok, err = store.Exists(ctx, "b")
	if err != nil || ok {
		t.Fatalf("Exists(b) = %v, %v; want false, nil", ok, err)
	}

	mock.headErr = errors.New("network down")
	if _, err := store.Exists(ctx, "a"); err == nil {
		t.Fatal("expected error")
	}
}

func TestS3Key(t *testing.T) {
	tests := []struct {
		prefix, path, want string
	}{
		{"", "head.yaml", "head.yaml"},
		{"models", "head.yaml", "models/head.yaml"},
		{"models/", "/head.yaml", "models/head.yaml"},
	}
	for _, tt := range tests {
		s := NewS3(nil, "b", tt.prefix)
		if got := s.key(tt.path); got != tt.want {
			t.Errorf("key(%q, %q) = %q, want %q", tt.prefix, tt.path, got, tt.want)
		}
	}
}

func TestURI(t *testing.T) {
	tests := []struct {
		name  string
		store Store
		path  string
		want  string
	}{
		{"s3", NewS3(nil, "models", ""), "head.yaml", "s3://models/head.yaml"},
		{"s3 prefix", NewS3(nil, "models", "ecosight/"), "v2/head.msgpack", "s3://models/ecosight/v2/head.msgpack"},
		{"other", nil, "head.yaml", "head.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := URI(tt.store, tt.path); got != tt.want {
				t.Errorf("URI = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewS3Client(t *testing.T) {
	c := NewS3Client(S3Config{Endpoint: "http://127.0.0.1:9000", UsePathStyle: true, AccessKeyID: "k", SecretAccessKey: "s"})
	if c == nil {
		t.Fatal("nil client")
	}
	o := c.Options()
	if o.BaseEndpoint == nil || *o.BaseEndpoint != "http://127.0.0.1:9000" {
		t.Errorf("BaseEndpoint = %v", o.BaseEndpoint)
	}
	if !o.UsePathStyle {
		t.Error("UsePathStyle = false, want true")
	}
	if o.Region != "us-east-1" {
		t.Errorf("Region = %q, want us-east-1", o.Region)
	}
}
