package hashtable

import "sync/atomic"
import "fmt"
import "hash/fnv"
import "sync"

import "github.com/VBWizard/os64-sub000/defs"

// lookups are lock-free; writers serialize per bucket.
type elem_t struct {
	key     interface{}
	value   interface{}
	keyHash uint32
	next    atomic.Pointer[elem_t]
}

type bucket_t struct {
	sync.Mutex
	first atomic.Pointer[elem_t]
}

type Hashtable_t struct {
	table []*bucket_t
	n     int64
}

func MkHash(size int) *Hashtable_t {
	if size <= 0 {
		panic("bad size")
	}
	ht := &Hashtable_t{}
	ht.table = make([]*bucket_t, size)
	for i := range ht.table {
		ht.table[i] = &bucket_t{}
	}
	return ht
}

func (ht *Hashtable_t) String() string {
	s := ""
	for i, b := range ht.table {
		if b.first.Load() != nil {
			s += fmt.Sprintf("b %d:\n", i)
			for e := b.first.Load(); e != nil; e = e.next.Load() {
				s += fmt.Sprintf("(%v, %v), ", e.keyHash, e.key)
			}
			s += fmt.Sprintf("\n")
		}
	}
	return s
}

func (ht *Hashtable_t) Size() int {
	return int(atomic.LoadInt64(&ht.n))
}

func (ht *Hashtable_t) Get(key interface{}) (interface{}, bool) {
	kh := khash(key)
	b := ht.table[ht.hash(kh)]

	for e := b.first.Load(); e != nil; e = e.next.Load() {
		if e.keyHash == kh && e.key == key {
			return e.value, true
		}
	}
	return nil, false
}

// returns the value now stored under key and true if key was not present.
// an existing value is left alone.
func (ht *Hashtable_t) Set(key interface{}, value interface{}) (interface{}, bool) {
	kh := khash(key)
	b := ht.table[ht.hash(kh)]
	b.Lock()
	defer b.Unlock()

	add := func(last *elem_t) {
		n := &elem_t{key: key, value: value, keyHash: kh}
		if last == nil {
			n.next.Store(b.first.Load())
			b.first.Store(n)
		} else {
			n.next.Store(last.next.Load())
			last.next.Store(n)
		}
		atomic.AddInt64(&ht.n, 1)
	}

	var last *elem_t
	for e := b.first.Load(); e != nil; e = e.next.Load() {
		if e.keyHash == kh && e.key == key {
			return e.value, false
		}
		if kh < e.keyHash {
			add(last)
			return value, true
		}
		last = e
	}
	add(last)
	return value, true
}

func (ht *Hashtable_t) Del(key interface{}) {
	kh := khash(key)
	b := ht.table[ht.hash(kh)]
	b.Lock()
	defer b.Unlock()

	var last *elem_t
	for e := b.first.Load(); e != nil; e = e.next.Load() {
		if e.keyHash == kh && e.key == key {
			if last == nil {
				b.first.Store(e.next.Load())
			} else {
				last.next.Store(e.next.Load())
			}
			atomic.AddInt64(&ht.n, -1)
			return
		}
		if kh < e.keyHash {
			panic("del of non-existing key")
		}
		last = e
	}
	panic("del of non-existing key")
}

// Iter may execute concurrently with other lookups, inserts, and deletes. f
// returning true stops the walk.
func (ht *Hashtable_t) Iter(f func(interface{}, interface{}) bool) bool {
	for _, b := range ht.table {
		for e := b.first.Load(); e != nil; e = e.next.Load() {
			if f(e.key, e.value) {
				return true
			}
		}
	}
	return false
}

func (ht *Hashtable_t) hash(keyHash uint32) int {
	return int(keyHash % uint32(len(ht.table)))
}

func hashString(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func khash(key interface{}) uint32 {
	h := hash(key)
	return uint32(2654435761) * h
}

func hash(key interface{}) uint32 {
	switch x := key.(type) {
	case string:
		return hashString(x)
	case int:
		return uint32(x)
	case int32:
		return uint32(x)
	case defs.Tid_t:
		return uint32(x)
	}
	panic(fmt.Errorf("unsupported key type %T", key))
}
