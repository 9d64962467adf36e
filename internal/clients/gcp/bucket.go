package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	pkgerrors "github.com/kotonoha/dictation-backend/internal/pkg/errors"
	"github.com/kotonoha/dictation-backend/internal/platform/logger"
	"github.com/kotonoha/dictation-backend/internal/utils"
)

// BucketService owns the audio artifacts. Keys are derived from sentence ids
// ({id}.mp3); the sentence table holds no reference back.
type BucketService interface {
	// Upload writes data under key. With overwrite=false an existing key
	// fails with ErrKeyExists (first-write-wins); with overwrite=true it
	// replaces silently.
	Upload(ctx context.Context, key string, data []byte, contentType string, overwrite bool) error
	// PublicURL derives the retrieval URL from bucket + key. Pure; performs
	// no existence check, so callers must not treat it as a reliability
	// signal.
	PublicURL(key string) string
}

type bucketService struct {
	log           *logger.Logger
	storageClient *storage.Client
	bucketName    string
	cdnDomain     string
}

func NewBucketService(log *logger.Logger) (BucketService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	serviceLog := log.With("service", "BucketService")

	bucketName := utils.GetEnv("AUDIO_GCS_BUCKET_NAME", "", log)
	if bucketName == "" {
		return nil, fmt.Errorf("missing env var AUDIO_GCS_BUCKET_NAME")
	}
	cdnDomain := utils.GetEnv("AUDIO_CDN_DOMAIN", "", log)

	ctx := context.Background()
	stClient, err := storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &bucketService{
		log:           serviceLog,
		storageClient: stClient,
		bucketName:    bucketName,
		cdnDomain:     cdnDomain,
	}, nil
}

func (bs *bucketService) Upload(ctx context.Context, key string, data []byte, contentType string, overwrite bool) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	obj := bs.storageClient.Bucket(bs.bucketName).Object(key)
	if !overwrite {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}

	w := obj.NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return bs.classifyUploadErr(key, err)
	}
	if err := w.Close(); err != nil {
		return bs.classifyUploadErr(key, err)
	}
	return nil
}

// A failed DoesNotExist precondition surfaces as HTTP 412 from GCS.
func (bs *bucketService) classifyUploadErr(key string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return fmt.Errorf("object %q: %w", key, pkgerrors.ErrKeyExists)
	}
	return fmt.Errorf("failed to write %q to GCS: %w", key, err)
}

func (bs *bucketService) PublicURL(key string) string {
	if bs.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", bs.cdnDomain, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bs.bucketName, key)
}
