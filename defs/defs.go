package defs

type Tid_t int

const (
	DIVZERO = 0
	UD      = 6
	GPFAULT = 13
	PGFAULT = 14

	IPI_INVALIDATE_TLB_VECTOR     = 0x7b
	IPI_DISABLE_SCHEDULING_VECTOR = 0x7c
	IPI_ENABLE_SCHEDULING_VECTOR  = 0x7d
	IPI_TIMER_SCHEDULE_VECTOR     = 0x7e
	IPI_AP_INITIALIZATION_VECTOR  = 0x7f
	IPI_MANUAL_SCHEDULE_VECTOR    = 0x81

	SPURIOUS_VECTOR   = 0xf0
	BASE_TIMER_VECTOR = 0xf1

	NVECTORS = 256
)

const (
	TFSIZE    = 24
	TFREGS    = 17
	TF_FSBASE = 1
	TF_R13    = 4
	TF_R12    = 5
	TF_R8     = 9
	TF_RBP    = 10
	TF_RSI    = 11
	TF_RDI    = 12
	TF_RDX    = 13
	TF_RCX    = 14
	TF_RBX    = 15
	TF_RAX    = 16
	TF_TRAP   = TFREGS
	TF_ERROR  = TFREGS + 1
	TF_RIP    = TFREGS + 2
	TF_CS     = TFREGS + 3
	TF_RSP    = TFREGS + 5
	TF_SS     = TFREGS + 6
	TF_RFLAGS = TFREGS + 4
	TF_FL_IF  = 1 << 9
)

// GDT slots
const (
	GDT_KCODE = 5
	GDT_KDATA = 6
	GDT_UCODE = 7
	GDT_UDATA = 8

	KCODE_SEL = GDT_KCODE << 3
	KDATA_SEL = GDT_KDATA << 3
	UCODE_SEL = GDT_UCODE<<3 | 3
	UDATA_SEL = GDT_UDATA<<3 | 3
)

// interrupts enabled plus the reserved bit 1
const RFLAGS_INIT = TF_FL_IF | 1<<1
