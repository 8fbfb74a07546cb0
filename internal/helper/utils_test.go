package helper

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestGenerateUUID(t *testing.T) {
	a, err := GenerateUUID()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := GenerateUUID()
	if a == b {
		t.Error("ids repeat")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("invalid uuid %q: %v", a, err)
	}
}

func TestPrettyJSON(t *testing.T) {
	got := PrettyJSON(map[string][]string{"default_session": {"hi"}})
	want := "{\n  \"default_session\": [\n    \"hi\"\n  ]\n}"
	if got != want {
		t.Errorf("got %q", got)
	}
	if s := PrettyJSON(func() {}); !strings.HasPrefix(s, "0x") {
		t.Errorf("fallback = %q", s)
	}
}
