package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/searchapi-console/internal/apikeys"
	"github.com/searchapi-console/internal/model"
)

type staticKeys struct {
	keys []model.APIKey
}

func (s *staticKeys) ListAPIKeys(context.Context) ([]model.APIKey, error) {
	return append([]model.APIKey(nil), s.keys...), nil
}

func (s *staticKeys) CreateAPIKey(context.Context, string) (*model.APIKey, error) {
	return nil, fmt.Errorf("not supported")
}

func (s *staticKeys) DeleteAPIKey(context.Context, int64) error {
	return fmt.Errorf("not supported")
}

func newListHandler(t *testing.T, n int) *ListKeysHandler {
	t.Helper()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &staticKeys{}
	for i := range n {
		src.keys = append(src.keys, model.APIKey{
			ID:        int64(i + 1),
			Name:      fmt.Sprintf("key-%02d", i+1),
			Token:     fmt.Sprintf("sk_live_%02d", i+1),
			IsActive:  i%2 == 0,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	reg := apikeys.New(src, nil, 5)
	if err := reg.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return NewListKeysHandler(reg)
}

func listKeys(h http.Handler, query string) (int, listKeysResponse) {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/keys?"+query, nil))
	var out listKeysResponse
	json.Unmarshal(rr.Body.Bytes(), &out)
	return rr.Code, out
}

func TestListKeysRequestsDoNotShareSelection(t *testing.T) {
	h := newListHandler(t, 12)

	_, first := listKeys(h, "status=inactive&page=9")
	if first.Page != 2 || first.Filtered != 6 {
		t.Fatalf("unexpected clamped view %+v", first)
	}

	// A request without parameters sees the defaults, not the previous
	// request's filter or clamped page.
	_, next := listKeys(h, "")
	if next.Page != 1 || next.Filtered != 12 || len(next.Keys) != 5 {
		t.Fatalf("selection leaked between requests: %+v", next)
	}
}

func TestListKeysConcurrentStatusFilters(t *testing.T) {
	h := newListHandler(t, 12)

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := range 100 {
		status := model.StatusActive
		if i%2 == 1 {
			status = model.StatusInactive
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, out := listKeys(h, "status="+string(status)+"&page=2")
			if code != http.StatusOK {
				errs <- fmt.Errorf("status %d", code)
				return
			}
			if out.Filtered != 6 || out.Page != 2 {
				errs <- fmt.Errorf("%s: unexpected view %+v", status, out)
				return
			}
			for _, k := range out.Keys {
				if k.Status != status {
					errs <- fmt.Errorf("%s request returned %s key %d", status, k.Status, k.ID)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestListKeysRejectsBadStatus(t *testing.T) {
	h := newListHandler(t, 3)
	if code, _ := listKeys(h, "status=expired"); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}
