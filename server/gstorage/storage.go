package gstorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/snzark/crm/server/logger"
	"github.com/snzark/crm/utils"
	"google.golang.org/api/option"
)

const uploadTimeout = 50 * time.Second

var (
	ErrObjectNotExist = storage.ErrObjectNotExist
	ErrInvalidKey     = errors.New("invalid object key")

	logg = logger.NewLogger()
)

// Storage keeps uploaded files addressable by an opaque key.
type Storage interface {
	// Upload stores r under key and returns the URL it can be fetched from.
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)

	// Open returns the stored object, or ErrObjectNotExist.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// NewObjectKey returns a unique key for an uploaded file, keeping its extension.
func NewObjectKey(fileName string) string {
	return uuid.NewString() + strings.ToLower(filepath.Ext(fileName))
}

// ---------------------------------------------------------------------------------//
// Google cloud storage
// --------------------------------------------------------------------------------//

type GStorage struct {
	storageClient *storage.Client
	bucket        string
	prefix        string
}

func NewGStorage(credentialsFilePath, bucket, prefix string) (*GStorage, error) {
	var client *storage.Client
	var err error

	if credentialsFilePath != "" {
		client, err = storage.NewClient(context.Background(), option.WithCredentialsFile(credentialsFilePath))
	} else {
		client, err = storage.NewClient(context.Background())
	}

	if err != nil {
		return nil, fmt.Errorf("NewGStorage: %v", err)
	}

	return &GStorage{storageClient: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (gs *GStorage) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	if !validKey(key) {
		return "", ErrInvalidKey
	}

	object := gs.objectName("uploads", key)
	err := gs.write(ctx, object, r, contentType)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", gs.bucket, object), nil
}

func (gs *GStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if !validKey(key) {
		return nil, ErrInvalidKey
	}

	object := gs.objectName("uploads", key)
	rc, err := gs.storageClient.Bucket(gs.bucket).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrObjectNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("Object(%q).NewReader: %v", object, err)
	}

	return rc, nil
}

// UploadFile copies a local file into the bucket's backups folder, stamped with the current time.
func (gs *GStorage) UploadFile(ctx context.Context, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("os.Open: %v", err)
	}
	defer f.Close()

	fileName := fmt.Sprintf("%s-%s", time.Now().UTC().Format("20060102T150405Z"), filepath.Base(filePath))
	object := gs.objectName("backups", fileName)

	err = gs.write(ctx, object, f, "application/octet-stream")
	if err != nil {
		return "", err
	}

	logg.Infof("Blob %v uploaded to bucket %v", object, gs.bucket)
	return object, nil
}

func (gs *GStorage) Close() error {
	return gs.storageClient.Close()
}

func (gs *GStorage) write(ctx context.Context, object string, r io.Reader, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	wc := gs.storageClient.Bucket(gs.bucket).Object(object).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := io.Copy(wc, r); err != nil {
		wc.Close()
		return fmt.Errorf("io.Copy: %v", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("Writer.Close: %v", err)
	}

	return nil
}

func (gs *GStorage) objectName(folder, name string) string {
	return path.Join(gs.prefix, folder, name)
}

// ---------------------------------------------------------------------------------//
// Local disk
// --------------------------------------------------------------------------------//

// LocalStorage keeps uploads in a directory served by the crm server under /uploads.
type LocalStorage struct {
	dir     string
	baseURL string
}

func NewLocalStorage(dir, baseURL string) (*LocalStorage, error) {
	err := utils.CreateDirIfNotExist(dir)
	if err != nil {
		return nil, err
	}

	return &LocalStorage{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (ls *LocalStorage) Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	if !validKey(key) {
		return "", ErrInvalidKey
	}

	f, err := os.OpenFile(filepath.Join(ls.dir, key), os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}

	if err := f.Close(); err != nil {
		return "", err
	}

	return ls.baseURL + "/uploads/" + key, nil
}

func (ls *LocalStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if !validKey(key) {
		return nil, ErrInvalidKey
	}

	f, err := os.Open(filepath.Join(ls.dir, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrObjectNotExist
	}

	return f, err
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func validKey(key string) bool {
	return key != "" && key != "." && key != ".." &&
		!strings.ContainsAny(key, `/\`) && !strings.Contains(key, "..")
}
