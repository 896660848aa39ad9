package gcs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"beatshop/internal/services"
)

func TestObjectKeys(t *testing.T) {
	if got := categoryPrefix("", "rap"); got != "rap/" {
		t.Fatalf("unexpected prefix %q", got)
	}
	if got := categoryPrefix("shop/beats", "afro"); got != "shop/beats/afro/" {
		t.Fatalf("unexpected prefix %q", got)
	}
	if got := objectKey("beats", "rnb", "demo.mp3"); got != "beats/rnb/demo.mp3" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestRefFromAttrs(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ref := refFromAttrs("rap", &storage.ObjectAttrs{
		Name:        "beats/rap/demo.mp3",
		Size:        42,
		ContentType: "audio/mpeg",
		Created:     created,
	})
	if ref.Name != "demo.mp3" || ref.ID != "beats/rap/demo.mp3" || ref.Size != 42 || !ref.CreatedAt.Equal(created) {
		t.Fatalf("unexpected ref %+v", ref)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"object missing", storage.ErrObjectNotExist, services.ErrNotFound},
		{"precondition", &googleapi.Error{Code: 412}, services.ErrAlreadyExists},
		{"rate limited", &googleapi.Error{Code: 429}, services.ErrUnavailable},
		{"server error", fmt.Errorf("wrapped: %w", &googleapi.Error{Code: 503}), services.ErrUnavailable},
		{"forbidden", &googleapi.Error{Code: 403}, services.ErrConfiguration},
		{"deadline", context.DeadlineExceeded, services.ErrTimeout},
		{"transport", errors.New("connection reset"), services.ErrUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := classify("op", "msg", tc.err); !errors.Is(err, tc.want) {
				t.Fatalf("classify(%v) = %v, want %v", tc.err, err, tc.want)
			}
		})
	}
	if !isPreconditionFailed(&googleapi.Error{Code: 412}) || isPreconditionFailed(&googleapi.Error{Code: 404}) {
		t.Fatal("unexpected precondition detection")
	}
}
