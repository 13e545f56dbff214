package stats

import "strings"
import "testing"

type teststats_t struct {
	Calls    Counter_t
	Switches Counter_t
	Spent    Cycles_t
	name     string
}

func TestStats2String(t *testing.T) {
	st := &teststats_t{}
	st.Calls.Inc()
	st.Calls.Inc()
	st.Switches.Inc()
	s := Stats2String(st)
	if !strings.Contains(s, "#Calls: 2") {
		t.Fatalf("missing calls: %q", s)
	}
	if !strings.Contains(s, "#Switches: 1") {
		t.Fatalf("missing switches: %q", s)
	}
	if strings.Contains(s, "name") {
		t.Fatalf("non-counter field rendered: %q", s)
	}
	if st.Calls.Get() != 2 {
		t.Fatalf("get")
	}
}
