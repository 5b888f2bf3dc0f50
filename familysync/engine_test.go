package familysync

import (
	"context"
	"reflect"
	"regexp"
	"testing"
	"time"

	"fundaswipe/models"
	"fundaswipe/storage"
)

func TestGenerateCodeShape(t *testing.T) {
	pattern := regexp.MustCompile(`^[a-z]+-[a-z]+-\d{1,2}$`)
	for i := 0; i < 20; i++ {
		code := GenerateCode()
		if !pattern.MatchString(code) {
			t.Fatalf("code %q does not match word-word-number shape", code)
		}
	}
}

func TestComputeMatches(t *testing.T) {
	group := &models.FamilyGroup{
		Code: "huis-tuin-1",
		Members: map[string]*models.Member{
			"A": {Name: "A", Favorites: []string{"1", "2"}},
			"B": {Name: "B", Favorites: []string{"2", "3"}},
			"C": {Name: "C", Favorites: []string{"2"}},
		},
	}

	matches := ComputeMatches(group)
	want := models.MatchSet{"2": []string{"A", "B", "C"}}
	if !reflect.DeepEqual(matches, want) {
		t.Errorf("matches = %v, want %v", matches, want)
	}
}

func TestCreateAndJoinGroup(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	alex := NewEngine(store, nil)
	code, err := alex.CreateGroup(ctx, "Alex")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if code == "" || !alex.Connected() {
		t.Fatal("not connected after create")
	}

	sam := NewEngine(store, nil)
	if err := sam.JoinGroup(ctx, code, "Sam", []string{"42"}); err != nil {
		t.Fatalf("JoinGroup: %v", err)
	}

	group, err := store.GetGroup(ctx, code)
	if err != nil {
		t.Fatalf("GetGroup: %v", err)
	}
	if len(group.Members) != 2 {
		t.Fatalf("members = %d, want 2", len(group.Members))
	}
	if !group.Members["Sam"].HasFavorite("42") {
		t.Error("Sam's local favorite not seeded into roster")
	}

	// Alex also likes 42: that is the match
	alex.AddFavorite(ctx, "42")

	group, _ = store.GetGroup(ctx, code)
	matches := ComputeMatches(group)
	if !reflect.DeepEqual(matches["42"], []string{"Alex", "Sam"}) {
		t.Errorf("matches[42] = %v", matches["42"])
	}
}

func TestJoinCreatesMissingGroup(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	e := NewEngine(store, nil)
	if err := e.JoinGroup(ctx, "gracht-boot-7", "Sam", nil); err != nil {
		t.Fatalf("JoinGroup: %v", err)
	}

	group, _ := store.GetGroup(ctx, "gracht-boot-7")
	if group == nil || group.Members["Sam"] == nil {
		t.Fatal("group not created on first join")
	}
}

func TestAddRemoveFavoriteRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	e := NewEngine(store, nil)
	code, _ := e.CreateGroup(ctx, "Alex")

	e.AddFavorite(ctx, "7")
	e.AddFavorite(ctx, "9")
	before := e.Favorites()

	e.AddFavorite(ctx, "42")
	e.RemoveFavorite(ctx, "42")

	if !reflect.DeepEqual(e.Favorites(), before) {
		t.Errorf("favorites = %v, want %v", e.Favorites(), before)
	}

	group, _ := store.GetGroup(ctx, code)
	remote := group.Members["Alex"].Favorites
	if !reflect.DeepEqual(remote, before) {
		t.Errorf("remote favorites = %v, want %v", remote, before)
	}
}

func TestLeaveGroup(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	alex := NewEngine(store, nil)
	code, _ := alex.CreateGroup(ctx, "Alex")

	sam := NewEngine(store, nil)
	sam.JoinGroup(ctx, code, "Sam", nil)
	sam.LeaveGroup(ctx)

	if sam.Connected() {
		t.Error("still connected after leave")
	}

	group, _ := store.GetGroup(ctx, code)
	if group.Members["Sam"] != nil {
		t.Error("member not removed from roster")
	}
	if group.Members["Alex"] == nil {
		t.Error("other member disturbed by leave")
	}
}

func TestStaleRosterDeliveryNotEmitted(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	e := NewEngine(store, nil)
	var updates []Update
	e.OnUpdate(func(u Update) { updates = append(updates, u) })

	code, err := e.CreateGroup(ctx, "Alex")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	snapshot, err := store.GetGroup(ctx, code)
	if err != nil {
		t.Fatal(err)
	}

	e.rosterChanged(snapshot)
	count := len(updates)
	if count == 0 {
		t.Fatal("live snapshot not emitted")
	}

	// a snapshot for a group this engine never joined is dropped
	e.rosterChanged(&models.FamilyGroup{
		Code:    "gracht-boot-7",
		Members: map[string]*models.Member{"Eva": {Name: "Eva"}},
	})
	if len(updates) != count {
		t.Fatalf("foreign snapshot emitted, updates = %d", len(updates))
	}

	// of two sequential deliveries, the later roster wins
	e.rosterChanged(&models.FamilyGroup{
		Code: code,
		Members: map[string]*models.Member{
			"Alex": {Name: "Alex", Favorites: []string{"9"}},
			"Sam":  {Name: "Sam", Favorites: []string{"9"}},
		},
	})
	last := updates[len(updates)-1]
	if !reflect.DeepEqual(last.Matches["9"], []string{"Alex", "Sam"}) {
		t.Errorf("latest roster not reflected: %v", last.Matches)
	}

	e.LeaveGroup(ctx)
	count = len(updates)

	// a delivery that was in flight when the member left is superseded
	e.rosterChanged(snapshot)
	if len(updates) != count {
		t.Fatalf("snapshot after leave emitted, updates = %d", len(updates))
	}
}

func TestFavoritesSurviveSyncFailure(t *testing.T) {
	ctx := context.Background()
	e := NewEngine(failingStore{}, nil)
	// connect directly; the store will reject everything
	e.connect(ctx, "huis-kaas-3", "Alex", nil)

	e.AddFavorite(ctx, "42")
	if !reflect.DeepEqual(e.Favorites(), []string{"42"}) {
		t.Errorf("local favorites = %v", e.Favorites())
	}
}

func TestPollingSourceEmitsOnChange(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	store.CreateGroup(ctx, &models.FamilyGroup{
		Code:    "tulp-brug-9",
		Members: map[string]*models.Member{"Alex": {Name: "Alex"}},
	})

	updates := make(chan *models.FamilyGroup, 4)
	src := NewPollingSource(store, 10*time.Millisecond)
	src.Start(ctx, "tulp-brug-9", func(g *models.FamilyGroup) { updates <- g })
	defer src.Stop()

	select {
	case g := <-updates:
		if g.Members["Alex"] == nil {
			t.Error("first snapshot missing member")
		}
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}

	store.UpsertMember(ctx, "tulp-brug-9", &models.Member{Name: "Sam", Favorites: []string{"1"}})

	select {
	case g := <-updates:
		if g.Members["Sam"] == nil {
			t.Error("changed snapshot missing new member")
		}
	case <-time.After(time.Second):
		t.Fatal("no update after roster change")
	}
}

type failingStore struct{}

func (failingStore) GetGroup(ctx context.Context, code string) (*models.FamilyGroup, error) {
	return nil, context.DeadlineExceeded
}

func (failingStore) CreateGroup(ctx context.Context, group *models.FamilyGroup) error {
	return context.DeadlineExceeded
}

func (failingStore) UpsertMember(ctx context.Context, code string, member *models.Member) error {
	return context.DeadlineExceeded
}

func (failingStore) RemoveMember(ctx context.Context, code, name string) error {
	return context.DeadlineExceeded
}
