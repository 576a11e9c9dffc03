// Package calendar implements the A-share trading-session clock (spec
// §4.2): session phase lookups, next-event queries, and lot/price-limit
// rules. It holds no hardcoded Chinese calendar — holidays and session
// boundaries come from an injected HolidayProvider (spec §6), the same
// dependency-injection shape the teacher corpus uses for its exchange and
// database capabilities.
package calendar

import (
	"sort"
	"time"

	"github.com/gushen/quant-core/pkg/kline"
)

// Phase names a point in the trading day.
type Phase string

const (
	PhasePreOpen    Phase = "preOpen"
	PhaseOpenAuction Phase = "openAuction"
	PhaseMorning    Phase = "morning"
	PhaseLunch      Phase = "lunch"
	PhaseAfternoon  Phase = "afternoon"
	PhaseCloseAuction Phase = "closeAuction"
	PhaseAfterHours Phase = "afterHours"
	PhaseWeekend    Phase = "weekend"
	PhaseHoliday    Phase = "holiday"
)

// Session is one named time window within a trading day, supplied by a
// HolidayProvider (spec §6).
type Session struct {
	Phase Phase
	Start time.Time
	End   time.Time
}

// HolidayProvider is the injected capability MarketCalendar depends on
// (spec §6). Implementations own the actual Chinese trading calendar; the
// core never embeds one.
type HolidayProvider interface {
	IsTradingDay(date time.Time) bool
	Sessions(date time.Time) []Session
}

// Event is the next phase transition after a given instant.
type Event struct {
	Phase Phase
	At    time.Time
}

// Calendar answers session-phase and constraint queries over an injected
// HolidayProvider.
type Calendar struct {
	holidays      HolidayProvider
	includeAuction bool // whether canTradeAt treats auctions as tradable
}

// Option configures a Calendar.
type Option func(*Calendar)

// WithAuctionsTradable makes canTradeAt return true during the opening and
// closing call auctions in addition to the continuous sessions (spec §4.2:
// "configurable to include auctions").
func WithAuctionsTradable() Option {
	return func(c *Calendar) { c.includeAuction = true }
}

// New builds a Calendar backed by the given HolidayProvider.
func New(holidays HolidayProvider, opts ...Option) *Calendar {
	c := &Calendar{holidays: holidays}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PhaseAt classifies `now` into a session phase (spec §4.2).
func (c *Calendar) PhaseAt(now time.Time) Phase {
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return PhaseWeekend
	}
	date := startOfDay(now)
	if !c.holidays.IsTradingDay(date) {
		return PhaseHoliday
	}
	sessions := c.holidays.Sessions(date)
	for _, s := range sessions {
		if !now.Before(s.Start) && now.Before(s.End) {
			return s.Phase
		}
	}
	return phaseBetweenSessions(sessions, now)
}

func phaseBetweenSessions(sessions []Session, now time.Time) Phase {
	if len(sessions) == 0 {
		return PhaseAfterHours
	}
	sorted := make([]Session, len(sessions))
	copy(sorted, sessions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	if now.Before(sorted[0].Start) {
		return PhasePreOpen
	}
	if !now.Before(sorted[len(sorted)-1].End) {
		return PhaseAfterHours
	}
	for i := 1; i < len(sorted); i++ {
		if !now.Before(sorted[i-1].End) && now.Before(sorted[i].Start) {
			return PhaseLunch
		}
	}
	return PhaseAfterHours
}

// NextEventAfter returns the next phase transition strictly after `now`
// (spec §4.2). It scans forward day by day (bounded to one year) until it
// finds a trading day with sessions.
func (c *Calendar) NextEventAfter(now time.Time) Event {
	cursor := now
	for i := 0; i < 366; i++ {
		date := startOfDay(cursor)
		if c.holidays.IsTradingDay(date) {
			sessions := c.holidays.Sessions(date)
			sorted := make([]Session, len(sessions))
			copy(sorted, sessions)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })
			for _, s := range sorted {
				if s.Start.After(now) {
					return Event{Phase: s.Phase, At: s.Start}
				}
				if s.End.After(now) {
					return Event{Phase: c.PhaseAt(s.End), At: s.End}
				}
			}
		}
		cursor = startOfDay(cursor).AddDate(0, 0, 1)
	}
	return Event{Phase: PhaseHoliday, At: cursor}
}

// CanTradeAt reports whether continuous trading is open at `now`. By
// default only the morning/afternoon continuous sessions count; pass
// WithAuctionsTradable to also treat auction windows as tradable.
func (c *Calendar) CanTradeAt(now time.Time) bool {
	phase := c.PhaseAt(now)
	switch phase {
	case PhaseMorning, PhaseAfternoon:
		return true
	case PhaseOpenAuction, PhaseCloseAuction:
		return c.includeAuction
	default:
		return false
	}
}

// LotSize returns the tradable unit for an instrument: 100 for ordinary
// A-shares, 1 for index/ETF-like instruments (spec §4.2).
func LotSize(instrument kline.Instrument) int {
	if instrument.Board == kline.BoardIndex {
		return 1
	}
	if instrument.LotSize > 0 {
		return instrument.LotSize
	}
	return 100
}

// PriceLimits delegates to kline.PriceLimits (spec §4.2); kept here too so
// callers that only import calendar still have the operation spec.md names
// under MarketCalendar.
func PriceLimits(instrument kline.Instrument, prevClose float64) (upper, lower float64) {
	return kline.PriceLimits(instrument, prevClose)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
