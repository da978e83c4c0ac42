package normalize

import (
	"reflect"
	"testing"
)

func TestKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"standing desk", "standing desk"},
		{"Standing Desk!!", "standing desk"},
		{"STANDING-DESK", "standing-desk"},
		{"  The   Apple AirPods Pro (2nd Gen) ", "apple airpods pro 2nd gen"},
		{"Amazon Finds: a LED strip lights", "finds led strip lights"},
		{"#TikTokMadeMeBuyIt cloud slides", "cloud slides"},
		{"-- - --", ""},
		{"", ""},
		{"Café Crème Frother", "café crème frother"},
		{"walmart target etsy reddit", ""},
		{"ice-roller- for face", "ice-roller for face"},
	}
	for _, c := range cases {
		if got := Key(c.in); got != c.want {
			t.Fatalf("Key(%q)=%q want=%q", c.in, got, c.want)
		}
	}
}

func TestKeyIdempotent(t *testing.T) {
	inputs := []string{
		"Standing Desk!!",
		"The -the- A an",
		"AirPods Pro (2nd Gen)",
		"İstanbul Çay Set",
		"x--y -- z-",
		"\tmixed spaces\n",
		"emoji 🔥 lamp",
		"ＦＵＬＬＷＩＤＴＨ desk",
	}
	for _, in := range inputs {
		once := Key(in)
		if twice := Key(once); twice != once {
			t.Fatalf("Key not idempotent for %q: once=%q twice=%q", in, once, twice)
		}
	}
}

func TestTokens(t *testing.T) {
	got := Tokens("standing-desk 2nd gen")
	want := []string{"standing", "desk", "2nd", "gen"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokens=%v want=%v", got, want)
	}
	if len(Tokens("")) != 0 {
		t.Fatalf("Tokens(\"\") should be empty")
	}
}
