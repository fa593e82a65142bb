package nag52

// Retain takes another reference on the session. Each owner pairs it with
// exactly one Release.
func (d *Diag) Retain() *Diag {
	d.refMu.Lock()
	d.refs++
	d.refMu.Unlock()
	return d
}

// Release drops one reference; the last one closes the session and its
// transport. Returns true when this call closed it.
func (d *Diag) Release() bool {
	d.refMu.Lock()
	d.refs--
	last := d.refs == 0
	d.refMu.Unlock()
	if last {
		d.Close()
	}
	return last
}
