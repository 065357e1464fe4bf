package control

import (
	"sync"
	"time"

	"github.com/dd0wney/cluso-hydraulics/pkg/headloss"
	"github.com/dd0wney/cluso-hydraulics/pkg/network"
)

// Entry is one recorded status change, with the setting in user units
type Entry struct {
	Time    time.Duration      `json:"time" yaml:"time"`
	Link    string             `json:"link" yaml:"link"`
	Status  network.LinkStatus `json:"status" yaml:"status"`
	Setting float64            `json:"setting" yaml:"setting"`
	Reason  string             `json:"reason" yaml:"reason"`
}

// Log keeps the history of link status changes of a run
type Log struct {
	mu      sync.RWMutex
	net     *network.Network
	eval    *headloss.Evaluator
	entries []Entry
	byLink  map[string][]int
}

// NewLog creates an empty log for a network
func NewLog(net *network.Network, eval *headloss.Evaluator) *Log {
	return &Log{net: net, eval: eval, byLink: make(map[string][]int)}
}

// Record appends changes, stamping those without a time with t
func (l *Log) Record(t time.Duration, changes ...Change) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ch := range changes {
		if ch.Time == 0 {
			ch.Time = t
		}
		l.byLink[ch.Link] = append(l.byLink[ch.Link], len(l.entries))
		l.entries = append(l.entries, Entry{
			Time:    ch.Time,
			Link:    ch.Link,
			Status:  ch.After.Status,
			Setting: l.settingOut(ch.Index, ch.After.Setting),
			Reason:  ch.Reason,
		})
	}
}

func (l *Log) settingOut(i int, v float64) float64 {
	link := l.net.LinkAt(i)
	if link.Kind == network.Valve {
		return l.eval.ValveSettingOut(link.Valve.Type, v)
	}
	return v
}

// Entries returns every change in order
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// ForLink returns the history of one link
func (l *Log) ForLink(id string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx := l.byLink[id]
	out := make([]Entry, len(idx))
	for i, j := range idx {
		out[i] = l.entries[j]
	}
	return out
}

// Len returns the number of recorded changes
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
