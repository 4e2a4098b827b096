package ledger

import (
	"context"
	"fmt"

	"github.com/MuditaSai/weather/internal/domain"
	"github.com/MuditaSai/weather/pkg/persistence"
)

// ExportDocument is the backtest snapshot written by Export: every
// trade in full (legs, reprice history, forecast observations) plus
// the derived summary.
type ExportDocument struct {
	Trades  []*domain.Trade `json:"trades"`
	Summary Summary         `json:"summary"`
}

// Export writes the full history plus its summary to a JSON file under
// svc's base directory, one snapshot per day tag.
func (l *Ledger) Export(ctx context.Context, svc persistence.Service, dayTag string) error {
	trades, err := l.Trades(ctx)
	if err != nil {
		return err
	}
	doc := ExportDocument{Trades: trades, Summary: Summarize(trades)}
	store := svc.NewStore("ledger", "trades", dayTag)
	if err := store.Save(&doc); err != nil {
		return fmt.Errorf("export ledger: %w", err)
	}
	return nil
}
