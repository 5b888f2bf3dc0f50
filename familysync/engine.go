package familysync

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"fundaswipe/models"
)

// RosterStore is the shared roster backend. Implementations live in
// the storage package: Firebase Realtime Database, Postgres, or an
// in-process map.
type RosterStore interface {
	GetGroup(ctx context.Context, code string) (*models.FamilyGroup, error)
	CreateGroup(ctx context.Context, group *models.FamilyGroup) error
	UpsertMember(ctx context.Context, code string, member *models.Member) error
	RemoveMember(ctx context.Context, code, name string) error
}

// RosterSource delivers roster snapshots while connected, either by
// push subscription or by polling.
type RosterSource interface {
	Start(ctx context.Context, code string, onChange func(*models.FamilyGroup))
	Stop()
}

// Update is what the presentation layer receives on every roster
// change: the full match set and the member list, whether or not the
// matches themselves changed.
type Update struct {
	Matches models.MatchSet
	Members []models.MemberInfo
}

var codeWords = []string{"huis", "tuin", "gracht", "boot", "fiets", "tulp", "molen", "kaas", "klok", "brug"}

// GenerateCode builds a human-memorable join code like "huis-tulp-42".
// Codes are unique enough for a handful of families; a collision just
// means two families share a roster, which the join flow tolerates.
func GenerateCode() string {
	return fmt.Sprintf("%s-%s-%d",
		codeWords[rand.Intn(len(codeWords))],
		codeWords[rand.Intn(len(codeWords))],
		rand.Intn(100),
	)
}

// Engine is the per-client sync state machine: Disconnected until a
// group is created or joined, Connected while a roster subscription is
// live. Sync is advisory: remote failures are logged and swallowed,
// and favoriting keeps working on local state.
type Engine struct {
	store  RosterStore
	source RosterSource

	mu        sync.Mutex
	code      string
	name      string
	connected bool
	favorites []string
	version   uint64

	onUpdate func(Update)
}

func NewEngine(store RosterStore, source RosterSource) *Engine {
	return &Engine{store: store, source: source}
}

// OnUpdate registers the callback invoked with every fresh match set.
func (e *Engine) OnUpdate(fn func(Update)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onUpdate = fn
}

func (e *Engine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

func (e *Engine) Code() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.code
}

// CreateGroup generates a fresh code, initializes the roster with this
// member, and connects.
func (e *Engine) CreateGroup(ctx context.Context, displayName string) (string, error) {
	code := GenerateCode()

	now := time.Now()
	group := &models.FamilyGroup{
		Code:      code,
		CreatedBy: displayName,
		CreatedAt: now,
		Members: map[string]*models.Member{
			displayName: {Name: displayName, JoinedAt: now, LastSeen: now},
		},
	}
	if err := e.store.CreateGroup(ctx, group); err != nil {
		return "", fmt.Errorf("creating group: %w", err)
	}

	e.connect(ctx, code, displayName, nil)
	return code, nil
}

// JoinGroup connects to an existing group by code, creating it first
// if it does not exist yet, and seeds this member's favorites from the
// device's locally-known ids. Idempotent.
func (e *Engine) JoinGroup(ctx context.Context, code, displayName string, localFavorites []string) error {
	group, err := e.store.GetGroup(ctx, code)
	if err != nil {
		return fmt.Errorf("joining group %s: %w", code, err)
	}

	now := time.Now()
	if group == nil {
		group = &models.FamilyGroup{
			Code:      code,
			CreatedBy: displayName,
			CreatedAt: now,
			Members:   map[string]*models.Member{},
		}
		if err := e.store.CreateGroup(ctx, group); err != nil {
			return fmt.Errorf("joining group %s: %w", code, err)
		}
	}

	member := &models.Member{
		Name:      displayName,
		Favorites: append([]string(nil), localFavorites...),
		JoinedAt:  now,
		LastSeen:  now,
	}
	if existing, ok := group.Members[displayName]; ok {
		member.JoinedAt = existing.JoinedAt
		for _, id := range existing.Favorites {
			if !member.HasFavorite(id) {
				member.Favorites = append(member.Favorites, id)
			}
		}
	}
	if err := e.store.UpsertMember(ctx, code, member); err != nil {
		return fmt.Errorf("joining group %s: %w", code, err)
	}

	e.connect(ctx, code, displayName, member.Favorites)
	return nil
}

func (e *Engine) connect(ctx context.Context, code, displayName string, favorites []string) {
	e.mu.Lock()
	e.code = code
	e.name = displayName
	e.connected = true
	e.favorites = append([]string(nil), favorites...)
	e.mu.Unlock()

	if e.source != nil {
		e.source.Start(ctx, code, e.rosterChanged)
	}
}

// LeaveGroup removes this member from the roster, tears down the
// subscription and clears cached match state.
func (e *Engine) LeaveGroup(ctx context.Context) {
	e.mu.Lock()
	code, name, connected := e.code, e.name, e.connected
	e.code = ""
	e.name = ""
	e.connected = false
	e.favorites = nil
	e.mu.Unlock()

	if !connected {
		return
	}
	if e.source != nil {
		e.source.Stop()
	}
	if err := e.store.RemoveMember(ctx, code, name); err != nil {
		log.Printf("Warning: could not leave group %s: %v", code, err)
	}
	e.emit(Update{Matches: models.MatchSet{}})
}

// AddFavorite records a liked listing in this member's own favorites
// subtree, read-modify-write so concurrent edits from another device
// of the same member are not clobbered. Local state updates even when
// the remote write fails.
func (e *Engine) AddFavorite(ctx context.Context, listingID string) {
	e.mu.Lock()
	if !containsID(e.favorites, listingID) {
		e.favorites = append(e.favorites, listingID)
	}
	code, name, connected := e.code, e.name, e.connected
	e.mu.Unlock()

	if !connected {
		return
	}
	if err := e.mutateOwnMember(ctx, code, name, func(m *models.Member) {
		if !m.HasFavorite(listingID) {
			m.Favorites = append(m.Favorites, listingID)
		}
	}); err != nil {
		log.Printf("Warning: sync unavailable, favorite %s kept locally: %v", listingID, err)
	}
}

// RemoveFavorite is the inverse of AddFavorite.
func (e *Engine) RemoveFavorite(ctx context.Context, listingID string) {
	e.mu.Lock()
	e.favorites = removeID(e.favorites, listingID)
	code, name, connected := e.code, e.name, e.connected
	e.mu.Unlock()

	if !connected {
		return
	}
	if err := e.mutateOwnMember(ctx, code, name, func(m *models.Member) {
		m.Favorites = removeID(m.Favorites, listingID)
	}); err != nil {
		log.Printf("Warning: sync unavailable, unfavorite %s kept locally: %v", listingID, err)
	}
}

// Favorites returns the locally-known favorite ids.
func (e *Engine) Favorites() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.favorites...)
}

func (e *Engine) mutateOwnMember(ctx context.Context, code, name string, mutate func(*models.Member)) error {
	return MutateMember(ctx, e.store, code, name, mutate)
}

// MutateMember applies a read-modify-write to one member's own roster
// entry: fetch the current entry, mutate, write back only that
// subtree. This is the only mutation discipline used against the
// shared roster; a full-roster overwrite is never issued.
func MutateMember(ctx context.Context, store RosterStore, code, name string, mutate func(*models.Member)) error {
	group, err := store.GetGroup(ctx, code)
	if err != nil {
		return err
	}

	var member *models.Member
	if group != nil {
		member = group.Members[name]
	}
	if member == nil {
		member = &models.Member{Name: name, JoinedAt: time.Now()}
	}

	mutate(member)
	member.LastSeen = time.Now()

	return store.UpsertMember(ctx, code, member)
}

// rosterChanged recomputes the match set from a fresh roster snapshot.
// A computation that was in flight when a newer snapshot arrived is
// superseded, not emitted.
func (e *Engine) rosterChanged(group *models.FamilyGroup) {
	e.mu.Lock()
	if !e.connected || group == nil || group.Code != e.code {
		e.mu.Unlock()
		return
	}
	e.version++
	version := e.version
	e.mu.Unlock()

	update := Update{
		Matches: ComputeMatches(group),
		Members: MemberInfos(group),
	}

	e.mu.Lock()
	stale := version != e.version || !e.connected
	e.mu.Unlock()
	if stale {
		return
	}
	e.emit(update)
}

func (e *Engine) emit(update Update) {
	e.mu.Lock()
	fn := e.onUpdate
	e.mu.Unlock()
	if fn != nil {
		fn(update)
	}
}

// ComputeMatches inverts the member-to-favorites mapping and keeps the
// listings liked by at least two members. Member lists are sorted for
// stable output.
func ComputeMatches(group *models.FamilyGroup) models.MatchSet {
	byListing := make(map[string][]string)
	for name, member := range group.Members {
		for _, id := range member.Favorites {
			byListing[id] = append(byListing[id], name)
		}
	}

	matches := make(models.MatchSet)
	for id, names := range byListing {
		if len(names) < 2 {
			continue
		}
		sort.Strings(names)
		matches[id] = names
	}
	return matches
}

// MemberInfos builds the roster view for presentation, sorted by name.
func MemberInfos(group *models.FamilyGroup) []models.MemberInfo {
	infos := make([]models.MemberInfo, 0, len(group.Members))
	for _, member := range group.Members {
		infos = append(infos, models.MemberInfo{
			Name:          member.Name,
			FavoriteCount: len(member.Favorites),
			LastSeen:      member.LastSeen,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func containsID(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(list []string, id string) []string {
	out := list[:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
