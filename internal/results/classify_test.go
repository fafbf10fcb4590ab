package results

import "testing"

func TestClassifyResult(t *testing.T) {
	cases := map[string]ResultType{
		"200":        ResultNumber,
		"0":          ResultNumber,
		"K":          ResultCard,
		"a":          ResultCard,
		"Red":        ResultColor,
		"black":      ResultColor,
		"dragon":     ResultText,
		"12x":        ResultText,
		"":           ResultText,
		" 17 ":       ResultNumber,
		"Coin Flip!": ResultText,
	}
	for in, want := range cases {
		if got := ClassifyResult(in); got != want {
			t.Fatalf("ClassifyResult(%q) = %s, want %s", in, got, want)
		}
	}
}
