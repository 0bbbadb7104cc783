package application

// WaitersFor returns how many callers are waiting on the in-flight refresh of
// fullName, or 0 if none is running.
func (o *RefreshOrchestrator) WaitersFor(fullName string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if call, ok := o.inflight[fullName]; ok {
		return call.waiters
	}
	return 0
}
