package query

import (
	"sort"
	"strings"
)

// Key identifies one cached query: a resource, the owning user and its filter parameters.
type Key struct {
	resource string
	userID   string
	params   string
}

// NewKey builds a key. Empty parameter values are dropped so "" and absent compare equal.
func NewKey(resource, userID string, params map[string]string) Key {
	pairs := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return Key{resource: resource, userID: userID, params: strings.Join(pairs, "&")}
}

func (k Key) Resource() string { return k.resource }

// UserID is empty until the session has a resolved user, which disables the query.
func (k Key) UserID() string { return k.userID }

// Enabled reports whether the key may be fetched.
func (k Key) Enabled() bool { return k.userID != "" }

func (k Key) String() string {
	return k.resource + "|" + k.userID + "|" + k.params
}

// Match selects keys for invalidation. Empty fields match everything.
type Match struct {
	ResourcePrefix string
	UserID         string
}

// Matches reports whether k is selected by m.
func (m Match) Matches(k Key) bool {
	if m.UserID != "" && k.userID != m.UserID {
		return false
	}
	return strings.HasPrefix(k.resource, m.ResourcePrefix)
}

// parseKey reverses Key.String.
func parseKey(s string) (Key, bool) {
	parts := strings.SplitN(s, "|", 3)
	if len(parts) != 3 {
		return Key{}, false
	}
	return Key{resource: parts[0], userID: parts[1], params: parts[2]}, true
}
