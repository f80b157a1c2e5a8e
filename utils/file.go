package utils

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ObjectStore keeps uploaded files (figure pictures) and hands out their public URL.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, key string) error
	KeyFromURL(url string) (string, bool)
}

// LocalStore writes objects below Dir and serves them under URLPrefix (see app.Static).
type LocalStore struct {
	Dir       string
	URLPrefix string
}

// EnsureUploadDir creates the uploads directory if it doesn't exist
func (l *LocalStore) EnsureUploadDir() error {
	return os.MkdirAll(l.Dir, os.ModePerm)
}

func (l *LocalStore) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	destPath, err := l.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return "", err
	}

	dst, err := os.Create(destPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, body); err != nil {
		return "", err
	}
	return path.Join(l.URLPrefix, key), nil
}

func (l *LocalStore) Delete(ctx context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (l *LocalStore) KeyFromURL(url string) (string, bool) {
	return trimURLPrefix(url, l.URLPrefix)
}

// path joins key below Dir and refuses keys escaping it.
func (l *LocalStore) path(key string) (string, error) {
	p := filepath.Join(l.Dir, filepath.FromSlash(key))
	if !strings.HasPrefix(p, filepath.Clean(l.Dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal object key: %s", key)
	}
	return p, nil
}

// UploadFormFile stores a multipart file under prefix/<uuid><ext> and returns its URL.
func UploadFormFile(ctx context.Context, store ObjectStore, fileHeader *multipart.FileHeader, prefix, defaultExt string) (string, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	ext := filepath.Ext(fileHeader.Filename)
	if ext == "" {
		ext = defaultExt
	}
	key := prefix + "/" + uuid.NewString() + strings.ToLower(ext)

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return store.Put(ctx, key, contentType, file)
}

func trimURLPrefix(url, prefix string) (string, bool) {
	prefix = strings.TrimRight(prefix, "/") + "/"
	key, ok := strings.CutPrefix(url, prefix)
	if !ok || key == "" {
		return "", false
	}
	return key, true
}
