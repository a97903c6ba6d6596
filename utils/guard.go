package utils

// Guard runs a cleanup when a function that hands out a resource (a mapping, an open file) fails
// part way through. Usage:
//
//	unmap := NewGuard(func() { unix.Munmap(mem) })
//	defer unmap.OnFail()
//	if err != nil { return nil, err }
//	unmap.Success()
//	return seg, nil
type Guard struct {
	OnFail  func()
	success bool
}

// NewGuard returns a Guard that runs onFailCleanup from OnFail unless Success was called.
func NewGuard(onFailCleanup func()) *Guard {
	ret := &Guard{}
	ret.OnFail = func() {
		if !ret.success {
			onFailCleanup()
		}
	}
	return ret
}

// Success declares the function succeeded and the cleanup does not need to run.
func (guard *Guard) Success() {
	guard.success = true
}
