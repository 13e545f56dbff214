package defs

import "strconv"

const (
	EPERM        Err_t = 1
	ENOENT       Err_t = 2
	ESRCH        Err_t = 3
	EINTR        Err_t = 4
	EIO          Err_t = 5
	E2BIG        Err_t = 7
	ECHILD       Err_t = 10
	EAGAIN       Err_t = 11
	EWOULDBLOCK        = EAGAIN
	ENOMEM       Err_t = 12
	EFAULT       Err_t = 14
	EBUSY        Err_t = 16
	EEXIST       Err_t = 17
	ENODEV       Err_t = 19
	EINVAL       Err_t = 22
	ERANGE       Err_t = 34
	ENAMETOOLONG Err_t = 36
	ENOSYS       Err_t = 38
	ETIMEDOUT    Err_t = 110
)

type Err_t int

var errnames = map[Err_t]string{
	EPERM:        "EPERM",
	ENOENT:       "ENOENT",
	ESRCH:        "ESRCH",
	EINTR:        "EINTR",
	EIO:          "EIO",
	E2BIG:        "E2BIG",
	ECHILD:       "ECHILD",
	EAGAIN:       "EAGAIN",
	ENOMEM:       "ENOMEM",
	EFAULT:       "EFAULT",
	EBUSY:        "EBUSY",
	EEXIST:       "EEXIST",
	ENODEV:       "ENODEV",
	EINVAL:       "EINVAL",
	ERANGE:       "ERANGE",
	ENAMETOOLONG: "ENAMETOOLONG",
	ENOSYS:       "ENOSYS",
	ETIMEDOUT:    "ETIMEDOUT",
}

// Err_t values are returned negated; Error accepts either sign so that an
// Err_t can leave the kernel packages as a plain error.
func (e Err_t) Error() string {
	n := e
	if n < 0 {
		n = -n
	}
	if s, ok := errnames[n]; ok {
		return s
	}
	return "errno " + strconv.Itoa(int(n))
}
