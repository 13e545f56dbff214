package util

import "testing"

func TestRound(t *testing.T) {
	if Roundup(4097, 4096) != 8192 || Roundup(4096, 4096) != 4096 {
		t.Fatalf("roundup")
	}
	if Rounddown(8191, 4096) != 4096 {
		t.Fatalf("rounddown")
	}
}

func TestReadWriten(t *testing.T) {
	buf := make([]uint8, 16)
	Writen(buf, 8, 0, 0x1122334455)
	Writen(buf, 4, 8, 0xdeadbeef)
	Writen(buf, 2, 12, 0xbeef)
	Writen(buf, 1, 14, 0x7f)
	if got := Readn(buf, 8, 0); got != 0x1122334455 {
		t.Fatalf("8 byte %#x", got)
	}
	if got := Readn(buf, 4, 8); got != 0xdeadbeef {
		t.Fatalf("4 byte %#x", got)
	}
	if got := Readn(buf, 2, 12); got != 0xbeef {
		t.Fatalf("2 byte %#x", got)
	}
	if got := Readn(buf, 1, 14); got != 0x7f {
		t.Fatalf("1 byte %#x", got)
	}
}
