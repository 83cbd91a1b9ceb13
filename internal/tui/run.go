package tui

import (
	"context"
	"fmt"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
	"github.com/boddenberg/pato-rico-bfa/internal/filter"
	"github.com/boddenberg/pato-rico-bfa/internal/query"
	"github.com/boddenberg/pato-rico-bfa/internal/service"

	tea "github.com/charmbracelet/bubbletea"
)

// Run opens the ledger browser on the filters and blocks until the user
// quits. ctx must carry the caller's query scope. It returns
// domain.ErrUnauthorized when the session ended because the API rejected
// the credential.
func Run(ctx context.Context, ledger *service.Ledger, filters *filter.Synchronizer, onUnauthorized func()) error {
	updates := make(chan struct{}, 1)
	obs := query.NewObserver(ctx, ledger.Cache(ctx), ledger.PageLoader(), func(LedgerState) {
		select {
		case updates <- struct{}{}:
		default:
		}
	})
	defer obs.Close()

	m := New(Config{
		Context:        ctx,
		Filters:        filters,
		Source:         obs,
		Deleter:        ledger,
		Updates:        updates,
		OnUnauthorized: onUnauthorized,
	})

	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		return fmt.Errorf("run ledger browser: %w", err)
	}
	if fm, ok := final.(Model); ok && fm.Unauthorized() {
		return &domain.ErrUnauthorized{}
	}
	return nil
}
