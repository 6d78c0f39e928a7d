package keys

import (
	"regexp"
	"strings"
	"testing"
)

var keyPattern = regexp.MustCompile(`^geocode:u=[0-9a-f]{8}:[A-Za-z0-9_\-]*:\d+:[A-Za-z0-9_\-]+$`)

func TestGeocode_DeterministicAndWellFormed(t *testing.T) {
	k1 := Geocode("https://nominatim.openstreetmap.org", "en", 7, "872a1072bffffff")
	k2 := Geocode(" https://nominatim.openstreetmap.org/ ", " EN ", 7, "872a1072bffffff")
	if k1 != k2 {
		t.Fatalf("normalized keys differ:\n k1=%s\n k2=%s", k1, k2)
	}
	if !keyPattern.MatchString(k1) {
		t.Fatalf("unexpected key layout: %s", k1)
	}
	if !strings.HasSuffix(k1, ":en:7:872a1072bffffff") {
		t.Fatalf("key=%s", k1)
	}
}

func TestGeocode_DifferentInputsDiffer(t *testing.T) {
	base := Geocode("https://a.example", "en", 7, "872a1072bffffff")
	for name, k := range map[string]string{
		"endpoint": Geocode("https://b.example", "en", 7, "872a1072bffffff"),
		"lang":     Geocode("https://a.example", "de", 7, "872a1072bffffff"),
		"res":      Geocode("https://a.example", "en", 8, "872a1072bffffff"),
		"cell":     Geocode("https://a.example", "en", 7, "872a1072affffff"),
	} {
		if k == base {
			t.Fatalf("%s change did not change key %s", name, k)
		}
	}
}

func TestGeocode_SanitizesHostileInput(t *testing.T) {
	k := Geocode("x", "en:us évil", 7, "a:b")
	if !keyPattern.MatchString(k) {
		t.Fatalf("key leaked separators or non-ASCII: %s", k)
	}
}
