package naming

import "testing"

func TestConversions(t *testing.T) {
	cases := []struct {
		in, snake, pascal, camel string
	}{
		{"get-balance", "get_balance", "GetBalance", "getBalance"},
		{"transfer", "transfer", "Transfer", "transfer"},
		{"a--b", "a__b", "AB", "aB"},
		{"", "", "", ""},
		{"user-id-v2", "user_id_v2", "UserIdV2", "userIdV2"},
	}
	for _, c := range cases {
		if got := Snake(c.in); got != c.snake {
			t.Fatalf("Snake(%q) = %q, want %q", c.in, got, c.snake)
		}
		if got := Pascal(c.in); got != c.pascal {
			t.Fatalf("Pascal(%q) = %q, want %q", c.in, got, c.pascal)
		}
		if got := LowerCamel(c.in); got != c.camel {
			t.Fatalf("LowerCamel(%q) = %q, want %q", c.in, got, c.camel)
		}
	}
}

func TestParamAvoidsReservedNames(t *testing.T) {
	cases := map[string]string{
		"type":     "type_",
		"range":    "range_",
		"ctx":      "ctx_",
		"target":   "target_",
		"request":  "request_",
		"amount":   "amount",
		"to":       "to",
		"max-size": "maxSize",
	}
	for in, want := range cases {
		if got := Param(in); got != want {
			t.Fatalf("Param(%q) = %q, want %q", in, got, want)
		}
	}
}
