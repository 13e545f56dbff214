package main

import "fmt"
import "strconv"
import "strings"

import "github.com/VBWizard/os64-sub000/defs"
import "github.com/VBWizard/os64-sub000/klog"
import "github.com/VBWizard/os64-sub000/limits"

const cmdline_max = 512

// the timer input clock when the command line names none
const default_hz = 1000000000

type Cmdline_t struct {
	Words []string
	Log   klog.Cat_t
	// bring up the bootstrap core only
	Nosmp bool
	// 0 means every core the machine has
	Maxcpus int
	// local APIC timer input clock
	Hz uint64
}

// Parse_cmdline reads the words of a kernel command line. only the first
// cmdline_max bytes are looked at, like the boot loader's buffer.
func Parse_cmdline(s string) (Cmdline_t, error) {
	if len(s) > cmdline_max {
		s = s[:cmdline_max]
	}
	cl := Cmdline_t{Words: strings.Fields(s), Hz: default_hz}
	cl.Log = klog.Parsemask(cl.Words, klog.BOOT|klog.SMP)
	for _, w := range cl.Words {
		k, v, ok := strings.Cut(w, "=")
		switch {
		case w == "nosmp":
			cl.Nosmp = true
		case ok && k == "maxcpus":
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > limits.Syslimit.Cpus {
				return cl, fmt.Errorf("cmdline: bad maxcpus %q", v)
			}
			cl.Maxcpus = n
		case ok && k == "hz":
			n, err := strconv.ParseUint(v, 0, 64)
			if err != nil || n/16/defs.TICKS_PER_SECOND == 0 {
				return cl, fmt.Errorf("cmdline: bad hz %q", v)
			}
			cl.Hz = n
		}
	}
	return cl, nil
}

// Ncpu is how many of the machine's ncpu cores to bring up.
func (cl *Cmdline_t) Ncpu(ncpu int) int {
	if cl.Nosmp {
		return 1
	}
	if cl.Maxcpus != 0 && cl.Maxcpus < ncpu {
		return cl.Maxcpus
	}
	return ncpu
}

func (cl *Cmdline_t) String() string {
	return fmt.Sprintf("log %v nosmp %v maxcpus %v hz %v", cl.Log, cl.Nosmp,
		cl.Maxcpus, cl.Hz)
}
