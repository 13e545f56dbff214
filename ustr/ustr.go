package ustr

// Ustr is a kernel string: task paths, executable names, arguments and the
// working directory are kept as bytes the way they arrive from a loader.
type Ustr []uint8

func (us Ustr) Eq(s Ustr) bool {
	if len(us) != len(s) {
		return false
	}
	for i, v := range us {
		if v != s[i] {
			return false
		}
	}
	return true
}

func MkUstr() Ustr {
	us := Ustr{}
	return us
}

func MkUstrRoot() Ustr {
	us := Ustr("/")
	return us
}

// stops at the first NUL, like a C string
func MkUstrSlice(buf []uint8) Ustr {
	for i := 0; i < len(buf); i++ {
		if buf[i] == uint8(0) {
			return Ustr(buf[:i]).Dup()
		}
	}
	return Ustr(buf).Dup()
}

func (us Ustr) Dup() Ustr {
	tmp := make(Ustr, len(us))
	copy(tmp, us)
	return tmp
}

func (us Ustr) Extend(p Ustr) Ustr {
	r := append(us.Dup(), '/')
	return append(r, p...)
}

func (us Ustr) IsAbsolute() bool {
	if len(us) == 0 {
		return false
	}
	return us[0] == '/'
}

func (us Ustr) IndexByte(b uint8) int {
	for i, v := range us {
		if v == b {
			return i
		}
	}
	return -1
}

func (us Ustr) LastIndexByte(b uint8) int {
	for i := len(us) - 1; i >= 0; i-- {
		if us[i] == b {
			return i
		}
	}
	return -1
}

// returns the final path component.
func (us Ustr) Last() Ustr {
	end := len(us)
	for end > 1 && us[end-1] == '/' {
		end--
	}
	s := us[:end]
	i := s.LastIndexByte('/')
	if i == -1 || len(s) == 1 {
		return s.Dup()
	}
	return s[i+1:].Dup()
}

// reports whether sub occurs within the first span bytes of us.
func (us Ustr) Hasmarker(sub string, span int) bool {
	if span > len(us) {
		span = len(us)
	}
	hay := us[:span]
	for i := 0; i+len(sub) <= len(hay); i++ {
		if string(hay[i:i+len(sub)]) == sub {
			return true
		}
	}
	return false
}

func (us Ustr) Truncate(n int) Ustr {
	if len(us) <= n {
		return us.Dup()
	}
	return us[:n].Dup()
}

func (us Ustr) String() string {
	return string(us)
}
