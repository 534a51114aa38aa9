package media

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_signage/internal/config"
	"github.com/friendsincode/grimnir_signage/internal/models"
)

func TestNewServiceSelectsFilesystem(t *testing.T) {
	svc, err := NewService(&config.Config{MediaRoot: t.TempDir()}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if _, ok := svc.storage.(*FilesystemStorage); !ok {
		t.Fatalf("storage type = %T, want *FilesystemStorage", svc.storage)
	}
}

func TestUploadToFilesystem(t *testing.T) {
	root := t.TempDir()
	svc := NewServiceWithStorage(NewFilesystemStorage(root, "/media/", zerolog.Nop()), zerolog.Nop())
	ctx := context.Background()

	up, err := svc.Upload(ctx, "Poster.PNG", "", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if up.Kind != models.MediaImage || up.ContentType != "image/png" {
		t.Fatalf("upload: got %+v", up)
	}
	if !strings.HasPrefix(up.Key, "image/") || !strings.HasSuffix(up.Key, ".png") {
		t.Fatalf("key: got %q", up.Key)
	}
	if up.URL != "/media/"+up.Key {
		t.Fatalf("url: got %q", up.URL)
	}

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(up.Key)))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("contents: got %q", data)
	}

	if err := svc.Delete(ctx, up.Key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(ctx, up.Key); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if err := svc.CheckStorageAccess(ctx); err != nil {
		t.Fatalf("check access: %v", err)
	}
}

func TestUploadRejectsUnsupportedTypes(t *testing.T) {
	svc := NewServiceWithStorage(NewFilesystemStorage(t.TempDir(), "/media", zerolog.Nop()), zerolog.Nop())
	_, err := svc.Upload(context.Background(), "notes.txt", "text/plain", strings.NewReader("x"))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("got %v want ErrUnsupportedType", err)
	}
}

func TestFilesystemKeysStayInsideRoot(t *testing.T) {
	root := t.TempDir()
	fs := NewFilesystemStorage(root, "/media", zerolog.Nop())
	if err := fs.Store(context.Background(), "../../escape.mp4", strings.NewReader("x"), "video/mp4"); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "escape.mp4")); err != nil {
		t.Fatalf("expected file inside root: %v", err)
	}
}

func TestResolveContentType(t *testing.T) {
	tests := []struct {
		header, ext, want string
	}{
		{"video/mp4", ".bin", "video/mp4"},
		{"image/jpeg; charset=binary", "", "image/jpeg"},
		{"application/octet-stream", ".webp", "image/webp"},
		{"", ".mov", "video/quicktime"},
		{"", ".unknownext", "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := resolveContentType(tt.header, tt.ext); got != tt.want {
			t.Fatalf("resolveContentType(%q, %q): got %q want %q", tt.header, tt.ext, got, tt.want)
		}
	}
}

type fakeS3 struct {
	put     *s3.PutObjectInput
	body    string
	deleted string
	headErr error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = in
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = string(data)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = aws.ToString(in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

func TestS3StorageUpload(t *testing.T) {
	client := &fakeS3{}
	st := newS3Storage(client, S3Config{Bucket: "signage", Region: "eu-west-1"}, zerolog.Nop())
	svc := NewServiceWithStorage(st, zerolog.Nop())

	// a plain reader cannot seek and must be buffered before signing
	up, err := svc.Upload(context.Background(), "clip.mp4", "video/mp4", io.MultiReader(strings.NewReader("mp4")))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if aws.ToString(client.put.Bucket) != "signage" || aws.ToString(client.put.Key) != up.Key {
		t.Fatalf("put: bucket %q key %q", aws.ToString(client.put.Bucket), aws.ToString(client.put.Key))
	}
	if aws.ToString(client.put.ContentType) != "video/mp4" || client.body != "mp4" {
		t.Fatalf("put: content type %q body %q", aws.ToString(client.put.ContentType), client.body)
	}
	if up.URL != "https://signage.s3.eu-west-1.amazonaws.com/"+up.Key {
		t.Fatalf("url: got %q", up.URL)
	}

	if err := svc.Delete(context.Background(), up.Key); err != nil || client.deleted != up.Key {
		t.Fatalf("delete: %v %q", err, client.deleted)
	}

	client.headErr = errors.New("forbidden")
	if err := svc.CheckStorageAccess(context.Background()); err == nil {
		t.Fatal("expected access error")
	}
}

func TestS3URL(t *testing.T) {
	tests := []struct {
		name string
		cfg  S3Config
		want string
	}{
		{"public base", S3Config{Bucket: "b", PublicBaseURL: "https://cdn.example.com/"}, "https://cdn.example.com/k.png"},
		{"path style", S3Config{Bucket: "b", Endpoint: "http://minio:9000", UsePathStyle: true}, "http://minio:9000/b/k.png"},
		{"virtual host endpoint", S3Config{Bucket: "b", Endpoint: "https://nyc3.digitaloceanspaces.com"}, "https://b.nyc3.digitaloceanspaces.com/k.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newS3Storage(&fakeS3{}, tt.cfg, zerolog.Nop())
			if got := st.URL("/k.png"); got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}
