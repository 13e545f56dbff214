package stats

import "reflect"
import "sync/atomic"
import "strconv"
import "strings"
import "time"

const Stats = true
const Timing = true

type Counter_t int64
type Cycles_t int64

func Rdtsc() uint64 {
	if Timing {
		return uint64(time.Now().UnixNano())
	}
	return 0
}

func (c *Counter_t) Inc() {
	if Stats {
		atomic.AddInt64((*int64)(c), 1)
	}
}

func (c *Counter_t) Get() int64 {
	return atomic.LoadInt64((*int64)(c))
}

// m is a value previously returned by Rdtsc
func (c *Cycles_t) Add(m uint64) {
	if Timing {
		atomic.AddInt64((*int64)(c), int64(Rdtsc()-m))
	}
}

func (c *Cycles_t) Get() int64 {
	return atomic.LoadInt64((*int64)(c))
}

// Stats2String renders every Counter_t and Cycles_t field of the struct st.
func Stats2String(st interface{}) string {
	if !Stats {
		return ""
	}
	v := reflect.ValueOf(st)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	s := ""
	for i := 0; i < v.NumField(); i++ {
		t := v.Field(i).Type().String()
		if strings.HasSuffix(t, "Counter_t") {
			n := v.Field(i).Int()
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(n, 10)
		}
		if strings.HasSuffix(t, "Cycles_t") {
			n := v.Field(i).Int()
			s += "\n\t#" + v.Type().Field(i).Name + ": " + strconv.FormatInt(n, 10)
		}

	}
	return s + "\n"
}
