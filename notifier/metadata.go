package notifier

import (
	"maps"
	"sync"
)

// MetaData is a tree of tab name to key to value. It is safe for concurrent
// use; readers always receive copies.
type MetaData struct {
	mu   sync.RWMutex
	tabs map[string]map[string]any
}

// NewMetaData returns a tree seeded with a copy of tabs.
func NewMetaData(tabs map[string]map[string]any) *MetaData {
	md := &MetaData{}
	md.Merge(tabs)
	return md
}

// AddToTab sets key in tab, creating the tab when needed.
func (md *MetaData) AddToTab(tab, key string, value any) {
	md.mu.Lock()
	defer md.mu.Unlock()
	if md.tabs == nil {
		md.tabs = make(map[string]map[string]any)
	}
	t, ok := md.tabs[tab]
	if !ok {
		t = make(map[string]any)
		md.tabs[tab] = t
	}
	t[key] = value
}

// ClearTab removes tab entirely.
func (md *MetaData) ClearTab(tab string) {
	md.mu.Lock()
	defer md.mu.Unlock()
	delete(md.tabs, tab)
}

// Tab returns a copy of tab.
func (md *MetaData) Tab(tab string) (map[string]any, bool) {
	if md == nil {
		return nil, false
	}
	md.mu.RLock()
	defer md.mu.RUnlock()
	t, ok := md.tabs[tab]
	if !ok {
		return nil, false
	}
	return maps.Clone(t), true
}

// Copy returns a deep copy of the tree down to the tab level. A nil tree
// copies as an empty map.
func (md *MetaData) Copy() map[string]map[string]any {
	if md == nil {
		return map[string]map[string]any{}
	}
	md.mu.RLock()
	defer md.mu.RUnlock()
	out := make(map[string]map[string]any, len(md.tabs))
	for name, t := range md.tabs {
		out[name] = maps.Clone(t)
	}
	return out
}

// Merge overlays tabs onto the tree. Keys in tabs win.
func (md *MetaData) Merge(tabs map[string]map[string]any) {
	for tab, values := range tabs {
		for k, v := range values {
			md.AddToTab(tab, k, v)
		}
	}
}

// Len returns the number of tabs.
func (md *MetaData) Len() int {
	if md == nil {
		return 0
	}
	md.mu.RLock()
	defer md.mu.RUnlock()
	return len(md.tabs)
}
