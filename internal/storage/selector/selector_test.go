package selector

import (
	"context"
	"testing"

	"github.com/peardrive/peardrive/internal/config"
	"github.com/peardrive/peardrive/internal/storage/mock"
)

func TestSelectFallsBackToMock(t *testing.T) {
	cfg := &config.Config{}

	for _, provider := range []string{"", "local_mock", "floppy_disk"} {
		a, err := Select(context.Background(), provider, cfg)
		if err != nil {
			t.Fatalf("Select(%q): %v", provider, err)
		}
		if _, ok := a.(*mock.Adapter); !ok {
			t.Errorf("Select(%q) = %T, want *mock.Adapter", provider, a)
		}
		if got := a.Provider(); got != "local_mock" {
			t.Errorf("Provider() = %q", got)
		}
	}
}

func TestSelectS3RequiresBucket(t *testing.T) {
	_, err := Select(context.Background(), "s3", &config.Config{})
	if err == nil {
		t.Fatal("expected error for missing bucket")
	}
}
