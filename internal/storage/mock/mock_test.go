package mock

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/peardrive/peardrive/internal/storage"
)

func TestUploadAndStream(t *testing.T) {
	a := New()

	res, err := a.Upload(context.Background(), storage.ObjectInfo{Name: "a.txt", MimeType: "text/plain"}, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.ID == "" || res.Size != 5 {
		t.Fatalf("result = %+v", res)
	}

	rc, size, err := a.DownloadStream(context.Background(), res.ID)
	if err != nil {
		t.Fatalf("DownloadStream: %v", err)
	}
	defer rc.Close()
	if size != 5 {
		t.Errorf("size = %d", size)
	}
	data, _ := io.ReadAll(rc)
	if string(data) != "hello" {
		t.Errorf("content = %q", data)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	a := New()
	res, _ := a.Upload(context.Background(), storage.ObjectInfo{Name: "a"}, strings.NewReader("x"))

	if err := a.Delete(context.Background(), res.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := a.Delete(context.Background(), res.ID); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if a.Count() != 0 {
		t.Errorf("count = %d", a.Count())
	}
}

func TestMissingObject(t *testing.T) {
	a := New()

	if _, err := a.GetDownloadURL(context.Background(), "nope"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Errorf("GetDownloadURL: %v", err)
	}
	if err := a.Rename(context.Background(), "nope", "x"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Errorf("Rename: %v", err)
	}
	if _, _, err := a.DownloadStream(context.Background(), "nope"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Errorf("DownloadStream: %v", err)
	}
}

// The mock must stay a core-plus adapter: code that needs trash or
// sessions has to degrade when running against it.
func TestCapabilitySurface(t *testing.T) {
	var a storage.Adapter = New()

	if _, ok := a.(storage.SessionStarter); ok {
		t.Error("mock unexpectedly starts upload sessions")
	}
	if _, ok := a.(storage.Trasher); ok {
		t.Error("mock unexpectedly supports trash")
	}
	if _, ok := a.(storage.Publisher); ok {
		t.Error("mock unexpectedly supports public links")
	}
	if _, ok := a.(storage.Renamer); !ok {
		t.Error("mock lost rename support")
	}
	if _, ok := a.(storage.Streamer); !ok {
		t.Error("mock lost streaming support")
	}
}
