package lan

import (
	"slices"
	"strings"
	"sync"
)

// MaxAddrs caps how many addresses one connection may announce.
const MaxAddrs = 16

// Peer is one connection's announced local-network addresses.
type Peer struct {
	PeerID string   `json:"peerId"`
	Addrs  []string `json:"addrs"`
}

// Registry remembers, per room, which connections announced which LAN
// addresses so peers on the same network can try a direct path first.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]map[string][]string // shareID -> connID -> addrs
	byConn map[string]map[string]struct{} // connID -> shareIDs
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]map[string][]string),
		byConn: make(map[string]map[string]struct{}),
	}
}

// Announce replaces connID's addresses in shareID. Blank entries are
// dropped, duplicates collapsed and the list capped at MaxAddrs. It returns
// false when nothing usable was given.
func (r *Registry) Announce(shareID, connID string, addrs []string) bool {
	clean := normalize(addrs)
	if shareID == "" || connID == "" || len(clean) == 0 {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	peers, ok := r.rooms[shareID]
	if !ok {
		peers = make(map[string][]string)
		r.rooms[shareID] = peers
	}
	peers[connID] = clean

	shares, ok := r.byConn[connID]
	if !ok {
		shares = make(map[string]struct{})
		r.byConn[connID] = shares
	}
	shares[shareID] = struct{}{}
	return true
}

// Reset removes connID's announcement from shareID.
func (r *Registry) Reset(shareID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(shareID, connID)
}

// Release removes every announcement made by connID and returns the rooms
// that were affected, sorted.
func (r *Registry) Release(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	shares := make([]string, 0, len(r.byConn[connID]))
	for shareID := range r.byConn[connID] {
		shares = append(shares, shareID)
	}
	for _, shareID := range shares {
		r.removeLocked(shareID, connID)
	}
	slices.Sort(shares)
	return shares
}

// DropRoom forgets a room entirely.
func (r *Registry) DropRoom(shareID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for connID := range r.rooms[shareID] {
		if shares, ok := r.byConn[connID]; ok {
			delete(shares, shareID)
			if len(shares) == 0 {
				delete(r.byConn, connID)
			}
		}
	}
	delete(r.rooms, shareID)
}

// Peers lists a room's announcements ordered by peer id.
func (r *Registry) Peers(shareID string) []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	peers := make([]Peer, 0, len(r.rooms[shareID]))
	for connID, addrs := range r.rooms[shareID] {
		peers = append(peers, Peer{PeerID: connID, Addrs: slices.Clone(addrs)})
	}
	slices.SortFunc(peers, func(a, b Peer) int {
		return strings.Compare(a.PeerID, b.PeerID)
	})
	return peers
}

func (r *Registry) removeLocked(shareID, connID string) {
	if peers, ok := r.rooms[shareID]; ok {
		delete(peers, connID)
		if len(peers) == 0 {
			delete(r.rooms, shareID)
		}
	}
	if shares, ok := r.byConn[connID]; ok {
		delete(shares, shareID)
		if len(shares) == 0 {
			delete(r.byConn, connID)
		}
	}
}

func normalize(addrs []string) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" || slices.Contains(out, a) {
			continue
		}
		out = append(out, a)
		if len(out) == MaxAddrs {
			break
		}
	}
	return out
}
