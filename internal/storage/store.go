package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrForeignURL = errors.New("url does not belong to this bucket")
	ErrEmptyFile  = errors.New("empty file")
)

// ImageStore keeps plan images and hands out their public URLs.
type ImageStore interface {
	Upload(ctx context.Context, filename string, data []byte) (string, error)
	DeleteByURL(ctx context.Context, url string) error
	Exists(ctx context.Context, url string) (bool, error)
}

// ObjectKey builds plans/<unix-nano>_<uuid><ext> for an uploaded file.
func ObjectKey(filename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	return "plans/" + strconv.FormatInt(now.UnixNano(), 10) + "_" + uuid.NewString() + ext
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}

// keyFromURL strips base from url, reporting false for urls outside it.
func keyFromURL(base, url string) (string, bool) {
	prefix := strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(url, prefix)
	if i := strings.IndexAny(key, "?#"); i >= 0 {
		key = key[:i]
	}
	return key, key != ""
}
