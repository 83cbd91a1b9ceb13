package tui

// ledgerChangedMsg tells the model the observer has a new state.
type ledgerChangedMsg struct{}

// deleteDoneMsg is the answer to a delete request.
type deleteDoneMsg struct {
	id  string
	err error
}
