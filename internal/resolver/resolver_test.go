package resolver

import (
	"errors"
	"strings"
	"testing"

	"storewatch/internal/domain"
)

func TestResolveGrab(t *testing.T) {
	r := New("14.5995,120.9842")
	res, err := r.Resolve("https://food.grab.com/ph/en/restaurant/potato-corner-sm-north-delivery/2-C2NNLTTJEBUVCA")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Platform != domain.PlatformGrabFood {
		t.Fatalf("platform = %s, want grabfood", res.Platform)
	}
	if res.Code != "2-C2NNLTTJEBUVCA" {
		t.Fatalf("code = %q", res.Code)
	}
	if len(res.Candidates) != 3 {
		t.Fatalf("got %d candidates, want 3", len(res.Candidates))
	}
	if res.Candidates[0].Kind != SourceAPI || res.Candidates[1].Kind != SourceAPI {
		t.Fatal("structured sources must come first")
	}
	if res.Candidates[2].Kind != SourcePage {
		t.Fatal("rendered page must be the last candidate")
	}
	if !strings.Contains(res.Candidates[0].URL, "merchantCode=2-C2NNLTTJEBUVCA") {
		t.Fatalf("primary url = %q", res.Candidates[0].URL)
	}
	if !strings.Contains(res.Candidates[1].URL, "/merchants/2-C2NNLTTJEBUVCA") {
		t.Fatalf("secondary url = %q", res.Candidates[1].URL)
	}
}

func TestResolveGrabNoMerchantCode(t *testing.T) {
	r := New("")
	_, err := r.Resolve("https://food.grab.com/ph/en/restaurants")
	if !errors.Is(err, ErrUnsupportedSource) {
		t.Fatalf("err = %v, want ErrUnsupportedSource", err)
	}
}

func TestResolveFoodpanda(t *testing.T) {
	r := New("")
	res, err := r.Resolve("https://www.foodpanda.ph/restaurant/x1ab/mang-inasal-taft")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Platform != domain.PlatformFoodpanda {
		t.Fatalf("platform = %s, want foodpanda", res.Platform)
	}
	if res.Code != "x1ab" {
		t.Fatalf("code = %q", res.Code)
	}
	if len(res.Candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(res.Candidates))
	}
	c := res.Candidates[0]
	if !strings.Contains(c.URL, "/api/v5/vendors/x1ab?") {
		t.Fatalf("url = %q", c.URL)
	}
	for _, want := range []string{"include=menus%2Cbundles%2Cmultiple_discounts", "opening_type=delivery", "basket_currency=PHP"} {
		if !strings.Contains(c.URL, want) {
			t.Fatalf("url %q missing %q", c.URL, want)
		}
	}
	if c.Headers["Origin"] != "https://www.foodpanda.ph" {
		t.Fatalf("origin header = %q", c.Headers["Origin"])
	}
}

func TestResolveUnsupported(t *testing.T) {
	r := New("")
	for _, raw := range []string{
		"https://www.ubereats.com/ph/store/some-store/abc",
		"not a url",
		"",
	} {
		if _, err := r.Resolve(raw); !errors.Is(err, ErrUnsupportedSource) {
			t.Fatalf("Resolve(%q) err = %v, want ErrUnsupportedSource", raw, err)
		}
	}
}

func TestDisplayName(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://food.grab.com/ph/en/restaurant/potato-corner-sm-north-delivery/2-C2NNLTTJEBUVCA", "Potato Corner Sm North"},
		{"https://www.foodpanda.ph/restaurant/x1ab/mang-inasal-taft", "Mang Inasal Taft"},
		{"https://www.foodpanda.ph/restaurant/x1ab", "X1ab"},
		{"https://example.com/nothing", "Unknown Store"},
	}
	for _, tc := range cases {
		if got := DisplayName(tc.url); got != tc.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestPlatformFor(t *testing.T) {
	if p, ok := PlatformFor("https://food.grab.com/ph/en/restaurant/a/2-AB"); !ok || p != domain.PlatformGrabFood {
		t.Fatalf("got %s %v", p, ok)
	}
	if p, ok := PlatformFor("https://www.foodpanda.ph/restaurant/a1/b"); !ok || p != domain.PlatformFoodpanda {
		t.Fatalf("got %s %v", p, ok)
	}
	if _, ok := PlatformFor("https://deliveroo.com/x"); ok {
		t.Fatal("expected no platform")
	}
}
