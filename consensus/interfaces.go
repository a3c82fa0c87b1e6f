package consensus

// RoundObserver is notified once per committed round, after every trust
// score has been updated. Observers run synchronously on the caller's
// goroutine and must not call back into the coordinator's RunRound.
type RoundObserver interface {
	OnRound(result RoundResult)
}

// RoundObserverFunc adapts a plain function to RoundObserver.
type RoundObserverFunc func(result RoundResult)

// OnRound calls f(result).
func (f RoundObserverFunc) OnRound(result RoundResult) { f(result) }
