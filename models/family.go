package models

import "time"

// Member is one participant in a family group. Name is a display
// identity only; collisions are possible and accepted.
type Member struct {
	Name      string    `json:"name"`
	Favorites []string  `json:"favorites"`
	JoinedAt  time.Time `json:"joined_at"`
	LastSeen  time.Time `json:"last_seen"`
}

// HasFavorite reports whether id is in the member's favorites.
func (m *Member) HasFavorite(id string) bool {
	for _, f := range m.Favorites {
		if f == id {
			return true
		}
	}
	return false
}

// FamilyGroup is the shared favorites space. Members is keyed by
// member name.
type FamilyGroup struct {
	Code      string             `json:"code"`
	CreatedBy string             `json:"created_by"`
	CreatedAt time.Time          `json:"created_at"`
	Members   map[string]*Member `json:"members"`
}

// MatchSet maps a listing id to the names of every member that
// favorited it. Only listings with two or more likers appear.
type MatchSet map[string][]string

// MemberInfo is the roster view handed to the presentation layer.
type MemberInfo struct {
	Name          string    `json:"name"`
	FavoriteCount int       `json:"favorite_count"`
	LastSeen      time.Time `json:"last_seen"`
}
