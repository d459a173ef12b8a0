package studio

import (
	"sync"
)

// ScreenShareID is the fixed identifier of the screen-share entry.
const ScreenShareID = "screenShare"

// SourceRole distinguishes participant camera slots from the screen share.
type SourceRole int

const (
	RolePrimary     SourceRole = iota // Participant camera slot
	RoleScreenShare                   // Shared display
)

func (r SourceRole) String() string {
	switch r {
	case RolePrimary:
		return "primary"
	case RoleScreenShare:
		return "screenShare"
	default:
		return "unknown"
	}
}

// BindingKind is the kind of media attached to a registry slot.
type BindingKind int

const (
	BindingUnbound  BindingKind = iota // No media
	BindingLive                        // Slot owns a live stream
	BindingMirrored                    // Slot shows another slot's media
)

func (k BindingKind) String() string {
	switch k {
	case BindingUnbound:
		return "unbound"
	case BindingLive:
		return "live"
	case BindingMirrored:
		return "mirrored"
	default:
		return "unknown"
	}
}

// SourceBinding attaches media to a slot.
type SourceBinding struct {
	Kind     BindingKind
	Stream   MediaStream // Set for BindingLive
	MirrorOf string      // Slot ID for BindingMirrored
}

// Live binds a slot to stream.
func Live(stream MediaStream) SourceBinding {
	if stream == nil {
		return Unbound()
	}
	return SourceBinding{Kind: BindingLive, Stream: stream}
}

// MirroredFrom binds a slot to whatever slot id resolves to.
func MirroredFrom(id string) SourceBinding {
	return SourceBinding{Kind: BindingMirrored, MirrorOf: id}
}

// Unbound returns an empty binding.
func Unbound() SourceBinding {
	return SourceBinding{Kind: BindingUnbound}
}

// SourceEntry is one slot of the registry.
type SourceEntry struct {
	ID      string
	Role    SourceRole
	Binding SourceBinding
}

// MirrorPolicy decides the initial binding of newly added primary slots.
type MirrorPolicy int

const (
	// MirrorFirstPrimary makes every new slot show the first primary slot.
	MirrorFirstPrimary MirrorPolicy = iota
	// MirrorNone leaves new slots unbound.
	MirrorNone
)

func (p MirrorPolicy) String() string {
	switch p {
	case MirrorFirstPrimary:
		return "first-primary"
	case MirrorNone:
		return "none"
	default:
		return "unknown"
	}
}

// SourceRegistry is the ordered set of video slots the compositor draws.
// There is at most one screen-share entry and it is always last.
// All methods are safe for concurrent use.
type SourceRegistry struct {
	entries []SourceEntry
	policy  MirrorPolicy
	version uint64
	mu      sync.RWMutex
}

// NewSourceRegistry creates an empty registry.
func NewSourceRegistry(policy MirrorPolicy) *SourceRegistry {
	return &SourceRegistry{policy: policy}
}

// primaryEnd returns the index one past the last primary entry.
func (r *SourceRegistry) primaryEnd() int {
	n := len(r.entries)
	if n > 0 && r.entries[n-1].Role == RoleScreenShare {
		return n - 1
	}
	return n
}

func (r *SourceRegistry) indexOf(id string) int {
	for i := range r.entries {
		if r.entries[i].ID == id {
			return i
		}
	}
	return -1
}

// AddPrimary appends a primary slot ahead of the screen share. It returns
// false if an entry with id already exists.
func (r *SourceRegistry) AddPrimary(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id == ScreenShareID || r.indexOf(id) >= 0 {
		return false
	}

	end := r.primaryEnd()
	binding := Unbound()
	if r.policy == MirrorFirstPrimary && end > 0 {
		binding = MirroredFrom(r.entries[0].ID)
	}

	entry := SourceEntry{ID: id, Role: RolePrimary, Binding: binding}
	r.entries = append(r.entries, SourceEntry{})
	copy(r.entries[end+1:], r.entries[end:])
	r.entries[end] = entry
	r.version++
	return true
}

// RemovePrimary removes the last primary slot. It is a no-op returning false
// when no primary slot exists.
func (r *SourceRegistry) RemovePrimary() (SourceEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	end := r.primaryEnd()
	if end == 0 {
		return SourceEntry{}, false
	}
	removed := r.entries[end-1]
	r.entries = append(r.entries[:end-1], r.entries[end:]...)
	r.version++
	return removed, true
}

// SetScreenShare installs stream as the screen-share entry, replacing the
// binding of an existing one. A nil stream removes the entry; removing a
// missing entry is a no-op. It reports whether the registry changed.
func (r *SourceRegistry) SetScreenShare(stream MediaStream) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.entries)
	hasShare := n > 0 && r.entries[n-1].Role == RoleScreenShare

	if stream == nil {
		if !hasShare {
			return false
		}
		r.entries = r.entries[:n-1]
		r.version++
		return true
	}

	if hasShare {
		r.entries[n-1].Binding = Live(stream)
	} else {
		r.entries = append(r.entries, SourceEntry{
			ID:      ScreenShareID,
			Role:    RoleScreenShare,
			Binding: Live(stream),
		})
	}
	r.version++
	return true
}

// Bind replaces the binding of slot id.
func (r *SourceRegistry) Bind(id string, binding SourceBinding) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return false
	}
	r.entries[i].Binding = binding
	r.version++
	return true
}

// Unbind clears every live binding of stream and returns how many slots
// were affected. Mirrors of those slots resolve to nothing afterwards.
func (r *SourceRegistry) Unbind(stream MediaStream) int {
	if stream == nil {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for i := range r.entries {
		b := r.entries[i].Binding
		if b.Kind == BindingLive && b.Stream == stream {
			r.entries[i].Binding = Unbound()
			n++
		}
	}
	if n > 0 {
		r.version++
	}
	return n
}

// Snapshot returns a copy of the entries in draw order.
func (r *SourceRegistry) Snapshot() []SourceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]SourceEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Resolve follows mirror links from entry to a live stream. It returns nil
// for unbound slots, dangling mirrors and mirror cycles.
func (r *SourceRegistry) Resolve(entry SourceEntry) MediaStream {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return resolveBinding(r.entries, entry.Binding)
}

func resolveBinding(entries []SourceEntry, b SourceBinding) MediaStream {
	for hops := 0; hops <= len(entries); hops++ {
		switch b.Kind {
		case BindingLive:
			return b.Stream
		case BindingMirrored:
			next := -1
			for i := range entries {
				if entries[i].ID == b.MirrorOf {
					next = i
					break
				}
			}
			if next < 0 {
				return nil
			}
			b = entries[next].Binding
		default:
			return nil
		}
	}
	return nil
}

// ResolveAll pairs every entry of one snapshot with its resolved stream.
func (r *SourceRegistry) ResolveAll() ([]SourceEntry, []MediaStream) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]SourceEntry, len(r.entries))
	copy(entries, r.entries)
	streams := make([]MediaStream, len(entries))
	for i := range entries {
		streams[i] = resolveBinding(entries, entries[i].Binding)
	}
	return entries, streams
}

// Streams returns every distinct live stream, in registry order.
func (r *SourceRegistry) Streams() []MediaStream {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []MediaStream
	seen := make(map[MediaStream]struct{})
	for _, e := range r.entries {
		if e.Binding.Kind != BindingLive {
			continue
		}
		if _, ok := seen[e.Binding.Stream]; ok {
			continue
		}
		seen[e.Binding.Stream] = struct{}{}
		out = append(out, e.Binding.Stream)
	}
	return out
}

// Len returns the number of entries.
func (r *SourceRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// PrimaryCount returns the number of primary slots.
func (r *SourceRegistry) PrimaryCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.primaryEnd()
}

// HasScreenShare reports whether a screen-share entry exists.
func (r *SourceRegistry) HasScreenShare() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.primaryEnd() != len(r.entries)
}

// HasLive reports whether any slot is bound to a live stream.
func (r *SourceRegistry) HasLive() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.Binding.Kind == BindingLive {
			return true
		}
	}
	return false
}

// Version increments on every mutation.
func (r *SourceRegistry) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}
