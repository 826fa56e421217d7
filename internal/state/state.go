package state

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// State is the runtime session shared by the feed loop and the HTTP API.
type State struct {
	activeMu     sync.RWMutex
	activeSymbol string

	connected atomic.Bool
	barsSeen  atomic.Int64

	alertMu   sync.Mutex
	lastAlert map[string]time.Time // key: "SYMBOL:PRICE"
	cooldown  time.Duration
}

func NewState(symbol string, cooldown time.Duration) *State {
	s := &State{
		lastAlert: make(map[string]time.Time),
		cooldown:  cooldown,
	}
	s.SetSymbol(symbol)
	return s
}

func (s *State) SetSymbol(sym string) string {
	canon := strings.ToUpper(strings.TrimSpace(sym))
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	s.activeSymbol = canon
	return canon
}

func (s *State) Symbol() string {
	s.activeMu.RLock()
	defer s.activeMu.RUnlock()
	return s.activeSymbol
}

func (s *State) SetConnected(v bool) { s.connected.Store(v) }
func (s *State) Connected() bool     { return s.connected.Load() }

// MarkBar counts a bar update coming off the feed.
func (s *State) MarkBar()        { s.barsSeen.Add(1) }
func (s *State) BarsSeen() int64 { return s.barsSeen.Load() }

func (s *State) key(symbol string, price decimal.Decimal) string {
	return fmt.Sprintf("%s:%s", strings.ToUpper(symbol), price.String())
}

// AllowAlert reports whether a level alert for (symbol, price) is outside its cooldown,
// recording now when it is.
func (s *State) AllowAlert(symbol string, price decimal.Decimal, now time.Time) bool {
	k := s.key(symbol, price)
	s.alertMu.Lock()
	defer s.alertMu.Unlock()
	last, ok := s.lastAlert[k]
	if !ok || now.Sub(last) >= s.cooldown {
		s.lastAlert[k] = now
		return true
	}
	return false
}

// ResetAlerts forgets every cooldown, used when the indicator is reconfigured.
func (s *State) ResetAlerts() {
	s.alertMu.Lock()
	defer s.alertMu.Unlock()
	clear(s.lastAlert)
}
