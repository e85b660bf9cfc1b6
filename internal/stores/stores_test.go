package stores

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"storewatch/internal/domain"
)

func writeStoresFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stores.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write stores file: %v", err)
	}
	return path
}

func TestLoadDerivesMissingFields(t *testing.T) {
	path := writeStoresFile(t, `{"stores":[
		{"url": "https://food.grab.com/ph/en/restaurant/potato-corner-cubao-delivery/2-C2AB"},
		{"url": "https://www.foodpanda.ph/restaurant/x1ab/mang-inasal-taft", "display_name": "Mang Inasal (Taft)"}
	]}`)

	list, err := Load(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d storefronts, want 2", len(list))
	}
	if list[0].Platform != domain.PlatformGrabFood {
		t.Fatalf("platform not derived: %+v", list[0])
	}
	if list[0].DisplayName != "Potato Corner Cubao" {
		t.Fatalf("display name not derived: %q", list[0].DisplayName)
	}
	if list[1].DisplayName != "Mang Inasal (Taft)" {
		t.Fatalf("explicit display name must win: %q", list[1].DisplayName)
	}
}

func TestLoadSkipsMalformedEntries(t *testing.T) {
	path := writeStoresFile(t, `{"stores":[
		{"url": ""},
		{"url": "https://www.ubereats.com/ph/store/x/abc"},
		{"url": "https://food.grab.com/ph/en/restaurant/ok-delivery/2-C2AB"},
		{"url": "https://food.grab.com/ph/en/restaurant/ok-delivery/2-C2AB"}
	]}`)

	list, err := Load(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d storefronts, want 1 after skipping malformed and duplicate entries", len(list))
	}
}

func TestLoadEmpty(t *testing.T) {
	path := writeStoresFile(t, `{"stores":[]}`)
	if _, err := Load(path, zerolog.Nop()); !errors.Is(err, ErrNoStores) {
		t.Fatalf("err = %v, want ErrNoStores", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json"), zerolog.Nop()); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
