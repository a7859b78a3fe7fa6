package sms

import (
	"errors"
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		body string
		want Command
	}{
		{"", Command{}},
		{"   \t ", Command{}},
		{"HELP", Command{Verb: "HELP"}},
		{"pay 200 919830000001", Command{Verb: "PAY", Args: []string{"200", "919830000001"}}},
		{"  Login  secret  ", Command{Verb: "LOGIN", Args: []string{"secret"}}},
		{"TRANSFER 50 ravi@textpay lunch tok123", Command{Verb: "TRANSFER", Args: []string{"50", "ravi@textpay", "lunch", "tok123"}}},
	}
	for _, tc := range cases {
		got := Parse(tc.body)
		if got.Verb != tc.want.Verb {
			t.Fatalf("Parse(%q).Verb = %q, want %q", tc.body, got.Verb, tc.want.Verb)
		}
		if len(got.Args) != 0 || len(tc.want.Args) != 0 {
			if !reflect.DeepEqual(got.Args, tc.want.Args) {
				t.Fatalf("Parse(%q).Args = %v, want %v", tc.body, got.Args, tc.want.Args)
			}
		}
	}
}

func TestParseAmount(t *testing.T) {
	valid := map[string]int64{
		"200":    20_000,
		"1.50":   150,
		"0.05":   5,
		".50":    50,
		"1.5":    150,
		"999999": 99_999_900,
	}
	for in, want := range valid {
		got, err := ParseAmount(in)
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseAmount(%q) = %d, want %d", in, got, want)
		}
	}

	invalid := []string{"", "0", "0.00", "-5", "abc", "1.234", "1.", "1,50", "NaN", "Inf", "1e3", "9999999999999999999"}
	for _, in := range invalid {
		if _, err := ParseAmount(in); !errors.Is(err, ErrBadAmount) {
			t.Fatalf("ParseAmount(%q): expected rejection, got err=%v", in, err)
		}
	}
}
