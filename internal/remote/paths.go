package remote

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/moodkeeper/internal/common"
)

// Collection names under users/{uid}.
const (
	CollectionDiary       = "diary"
	CollectionMoods       = "moods"
	CollectionReflections = "reflections"
)

func UserRoot(uid string) string {
	return "users/" + uid
}

func DiaryPath(uid, dateID string) string {
	return fmt.Sprintf("users/%s/%s/%s", uid, CollectionDiary, dateID)
}

func MoodPath(uid, dateID string) string {
	return fmt.Sprintf("users/%s/%s/%s", uid, CollectionMoods, dateID)
}

// ReflectionsPath is the parent that reflections of a day are pushed under.
func ReflectionsPath(uid, dateID string) string {
	return fmt.Sprintf("users/%s/%s/%s", uid, CollectionReflections, dateID)
}

// Location is a parsed journal path.
type Location struct {
	UserID     string
	Collection string
	DateID     string
	ChildID    string // reflections only
}

// ParsePath splits a journal path. It accepts
// users/{uid}/{diary|moods}/{date} and users/{uid}/reflections/{date}/{id}.
func ParsePath(p string) (Location, error) {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) < 4 || parts[0] != "users" {
		return Location{}, fmt.Errorf("not a journal path: %q", p)
	}
	for _, s := range parts {
		if s == "" {
			return Location{}, fmt.Errorf("empty segment in path %q", p)
		}
	}
	loc := Location{UserID: parts[1], Collection: parts[2], DateID: parts[3]}
	switch loc.Collection {
	case CollectionDiary, CollectionMoods:
		if len(parts) != 4 {
			return Location{}, fmt.Errorf("unexpected depth for %s path %q", loc.Collection, p)
		}
	case CollectionReflections:
		if len(parts) != 5 {
			return Location{}, fmt.Errorf("unexpected depth for reflection path %q", p)
		}
		loc.ChildID = parts[4]
	default:
		return Location{}, fmt.Errorf("unknown collection %q in path %q", loc.Collection, p)
	}
	return loc, nil
}

// Under reports whether p equals prefix or lies below it.
func Under(p, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// Clean validates a path for writing: no leading or trailing slash and no
// empty segments.
func Clean(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") || strings.HasSuffix(p, "/") || strings.Contains(p, "//") {
		return "", fmt.Errorf("%w: invalid path %q", common.ErrValidation, p)
	}
	return p, nil
}
