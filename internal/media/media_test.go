package media

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// 1x1 transparent PNG.
var pixel, _ = base64.StdEncoding.DecodeString("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")

func TestEncodeDecodeDataURL(t *testing.T) {
	url, err := EncodeDataURL(pixel)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Fatalf("unexpected prefix: %s", url[:30])
	}
	ct, data, err := DecodeDataURL(url, 0)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ct != "image/png" || len(data) != len(pixel) {
		t.Fatalf("got %s with %d bytes", ct, len(data))
	}
}

func TestDecodeRejects(t *testing.T) {
	text := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("just some text"))
	cases := []struct {
		name string
		in   string
		max  int
		want error
	}{
		{"not a data url", "hello", 0, ErrBadDataURL},
		{"no base64 marker", "data:image/png,abc", 0, ErrBadDataURL},
		{"bad base64", "data:image/png;base64,@@@", 0, ErrBadDataURL},
		{"declared image but text", text, 0, ErrNotImage},
		{"too large", "data:image/png;base64," + base64.StdEncoding.EncodeToString(pixel), 10, ErrTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := DecodeDataURL(tc.in, tc.max); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestEncodeRejectsNonImage(t *testing.T) {
	if _, err := EncodeDataURL([]byte("plain text")); !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected ErrNotImage, got %v", err)
	}
}

func TestInlineStore(t *testing.T) {
	s := NewInline(0)
	url, _ := EncodeDataURL(pixel)
	got, err := s.Save(context.Background(), "users/u1", url)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if got != url {
		t.Fatal("inline store should keep the data url")
	}
	remote := "https://cdn.example.com/a.png"
	if got, _ := s.Save(context.Background(), "k", remote); got != remote {
		t.Fatalf("remote url rewritten: %s", got)
	}
	if _, _, err := s.PresignUpload(context.Background(), "k", "image/png"); !errors.Is(err, ErrUploadsUnsupported) {
		t.Fatalf("expected ErrUploadsUnsupported, got %v", err)
	}
}

type fakeS3 struct {
	key         string
	contentType string
	body        []byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.key = aws.ToString(in.Key)
	f.contentType = aws.ToString(in.ContentType)
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) PresignPutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://signed.example.com/" + aws.ToString(in.Key), Method: "PUT"}, nil
}

func TestS3Store(t *testing.T) {
	log := zerolog.Nop()
	fake := &fakeS3{}
	s := NewS3Store(fake, fake, S3Config{Region: "sa-east-1", Bucket: "matchscore", Prefix: "images"}, &log)

	url, _ := EncodeDataURL(pixel)
	got, err := s.Save(context.Background(), "matches/m1", url)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if fake.key != "images/matches/m1" || fake.contentType != "image/png" || len(fake.body) != len(pixel) {
		t.Fatalf("unexpected upload %+v", fake)
	}
	if got != "https://matchscore.s3.sa-east-1.amazonaws.com/images/matches/m1" {
		t.Fatalf("unexpected public url %s", got)
	}

	upload, public, err := s.PresignUpload(context.Background(), "users/u1", "image/jpeg")
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if upload != "https://signed.example.com/images/users/u1" || !strings.HasSuffix(public, "/images/users/u1") {
		t.Fatalf("unexpected urls %s %s", upload, public)
	}
	if _, _, err := s.PresignUpload(context.Background(), "k", "application/pdf"); !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected ErrNotImage, got %v", err)
	}
}
