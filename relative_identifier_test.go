package resolver

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRelativeIdentifierSchemeCreate(t *testing.T) {
	scheme := DefaultRelativeIdentifierScheme()
	tests := []struct {
		name   string
		asset  string
		anchor string
		want   string
	}{
		{name: "element", asset: "./elements/body_v003.usd", anchor: "/show/assets/char/hero/hero.usd", want: "relativeIdentifier|char/hero?body-v003"},
		{name: "no version", asset: "./elements/body.usd", anchor: "/show/assets/char/hero/hero.usd", want: ""},
		{name: "no element", asset: "./v003.usd", anchor: "/show/assets/char/hero/hero.usd", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scheme.CreateRelativeIdentifier(Anchor(tt.anchor, tt.asset), tt.asset, tt.anchor)
			if err != nil {
				t.Fatalf("CreateRelativeIdentifier error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("CreateRelativeIdentifier = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRelativeIdentifierParseAndLocation(t *testing.T) {
	scheme := DefaultRelativeIdentifierScheme()
	scheme.EntityRoots = map[string]string{"char": "/show/assets/char"}

	ri, ok := scheme.Parse("relativeIdentifier|char/hero?body_paint-v003")
	if !ok {
		t.Fatalf("Parse reported false")
	}
	want := RelativeIdentifier{EntityType: "char", EntityID: "hero", Element: "body_paint", Version: "v003"}
	if diff := cmp.Diff(want, ri); diff != "" {
		t.Fatalf("Parse mismatch (-want +got):\n%s", diff)
	}
	if got := scheme.Canonical(ri); got != "relativeIdentifier|char/hero?body_paint" {
		t.Fatalf("Canonical = %q", got)
	}
	if got := scheme.Format(ri); got != "relativeIdentifier|char/hero?body_paint-v003" {
		t.Fatalf("Format = %q", got)
	}
	if got := scheme.Location(ri); got != "/show/assets/char/hero/elements/body_paint_v003.usd" {
		t.Fatalf("Location = %q", got)
	}

	ri.EntityType = "prop"
	if got := scheme.Location(ri); got != "" {
		t.Fatalf("Location for unknown type = %q, want empty", got)
	}

	for _, bad := range []string{"char/hero?body-v003", "relativeIdentifier|char?body-v003", "relativeIdentifier|char/hero?body", "relativeIdentifier|char/hero?body-"} {
		if _, ok := scheme.Parse(bad); ok {
			t.Fatalf("Parse(%q) reported true", bad)
		}
	}
}

func TestRelativeIdentifierTokenIsSearchRelative(t *testing.T) {
	token := "relativeIdentifier|char/hero?body-v003"
	if !IsSearchRelative(token) {
		t.Fatalf("token must classify as search relative")
	}
}
