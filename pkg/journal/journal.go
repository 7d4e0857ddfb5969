package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TradeRecord captures one executed paper trade for audit and analysis.
type TradeRecord struct {
	Timestamp          time.Time      `json:"timestamp"`
	TradeID            string         `json:"trade_id"`
	Token              string         `json:"token"`
	Side               string         `json:"side"`
	TokenAmount        float64        `json:"token_amount"`
	ExecutionPrice     float64        `json:"execution_price"`
	NotionalValue      float64        `json:"notional_value"`
	RealizedPnL        *float64       `json:"realized_pnl,omitempty"`
	RealizedPnLPercent *float64       `json:"realized_pnl_percent,omitempty"`
	BalanceAfter       float64        `json:"balance_after"`
	Extra              map[string]any `json:"extra,omitempty"`
}

// Writer persists trade records to a directory as JSON files (journal style).
type Writer struct {
	mu    sync.Mutex
	dir   string
	seq   int
	nowFn func() time.Time
}

// NewWriter constructs a journal writer.
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = "journal"
	}
	_ = os.MkdirAll(dir, 0o755)
	return &Writer{dir: dir, nowFn: time.Now}
}

// WriteTrade writes a trade record to a timestamped JSON file.
func (w *Writer) WriteTrade(rec *TradeRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("journal: nil record")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = w.nowFn()
	}
	w.seq++
	name := fmt.Sprintf("trade_%s_%05d.json", rec.Timestamp.UTC().Format("20060102_150405"), w.seq)
	path := filepath.Join(w.dir, name)
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
