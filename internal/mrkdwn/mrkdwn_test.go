package mrkdwn

import (
	"strings"
	"testing"
)

func TestTranslateInlineLink(t *testing.T) {
	got := Translate("[A](http://x)")
	if got != "<http://x|A>" {
		t.Fatalf("Translate() = %q, want %q", got, "<http://x|A>")
	}
	if strings.ContainsAny(got, "[]") {
		t.Fatalf("residual markdown brackets in %q", got)
	}
}

func TestTranslateBold(t *testing.T) {
	got := Translate("this is **important** stuff")
	if got != "this is *important* stuff" {
		t.Fatalf("Translate() = %q", got)
	}
}

func TestTranslateMixed(t *testing.T) {
	in := "**Summary**: see [the docs](https://docs.example.com/a) and [b](https://b.test)"
	want := "*Summary*: see <https://docs.example.com/a|the docs> and <https://b.test|b>"
	if got := Translate(in); got != want {
		t.Fatalf("Translate() = %q, want %q", got, want)
	}
}

func TestTranslateLeavesPlainTextAlone(t *testing.T) {
	in := "no markup here, just text with (parens) and [brackets]"
	if got := Translate(in); got != in {
		t.Fatalf("Translate() = %q, want unchanged", got)
	}
}
