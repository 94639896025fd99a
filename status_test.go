package beam_test

import (
	"testing"

	"github.com/adamwoolhether/beam"
)

func TestStatus_IsSuccess(t *testing.T) {
	for code := 0; code < 1000; code++ {
		s := beam.Status(code)
		if got, exp := s.IsSuccess(), code >= 200 && code < 300; got != exp {
			t.Errorf("code %d: expected IsSuccess %t, got %t", code, exp, got)
		}
	}
}

func TestStatusFromCode(t *testing.T) {
	testCases := map[string]struct {
		code int
		exp  beam.Status
	}{
		"ok":           {code: 200, exp: beam.StatusOK},
		"imUsed":       {code: 226, exp: beam.StatusIMUsed},
		"teapot":       {code: 418, exp: beam.StatusImATeapot},
		"legalReasons": {code: 451, exp: beam.StatusUnavailableForLegalReasons},
		"netAuth":      {code: 511, exp: beam.StatusNetworkAuthenticationRequired},
		"zero":         {code: 0, exp: beam.StatusUnknown},
		"unassigned":   {code: 299, exp: beam.StatusUnknown},
		"gap":          {code: 509, exp: beam.StatusUnknown},
		"outOfRange":   {code: 999, exp: beam.StatusUnknown},
		"negative":     {code: -1, exp: beam.StatusUnknown},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			if got := beam.StatusFromCode(tc.code); got != tc.exp {
				t.Errorf("expected %v, got %v", tc.exp, got)
			}
		})
	}
}

func TestStatus_String(t *testing.T) {
	if got := beam.StatusUnknown.String(); got != "unknown" {
		t.Errorf("expected %q, got %q", "unknown", got)
	}

	if got := beam.StatusNotFound.String(); got != "404 Not Found" {
		t.Errorf("expected %q, got %q", "404 Not Found", got)
	}
}
