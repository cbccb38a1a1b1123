package watcher

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/xraph/warden/reply"
	"github.com/xraph/warden/waitlist"
)

// Title is the heading of every waitlist notification card.
const Title = "🎉 New Waitlist Entry!"

// ChannelName renders the waitlist channel name for count entries.
func ChannelName(count int64) string {
	return fmt.Sprintf("%d users - waitlisted", count)
}

// Project renders entry as a notification card. Known fields come first in
// a fixed order, then the joined time, then extra fields sorted by key.
func Project(entry waitlist.Entry, now time.Time) reply.Card {
	card := reply.Card{
		Color:     reply.ColorBrand,
		Title:     Title,
		Footer:    "Entry ID: " + entry.ID,
		Timestamp: now,
	}

	known := []struct {
		name, value string
		inline      bool
	}{
		{"👤 Name", entry.Name, true},
		{"📧 Email", entry.Email, true},
		{"🏢 Company", entry.Company, true},
		{"🌐 Website", entry.Website, true},
		{"📍 Source", entry.Source, true},
		{"💬 Message", entry.Message, false},
	}
	for _, f := range known {
		if f.value != "" {
			card.AddField(f.name, f.value, f.inline)
		}
	}

	card.AddField("🕐 Joined", reply.RelativeTime(entry.Joined(now)), true)

	keys := make([]string, 0, len(entry.Extra))
	for k := range entry.Extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		v := entry.Extra[k]
		if !truthy(v) {
			continue
		}
		if !card.AddField(titleCase(k), render(v), true) {
			break
		}
	}

	return card
}

// truthy reports whether v carries a value worth showing. Nil, empty
// strings, false, zero and NaN are skipped.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case float32:
		return t != 0 && !math.IsNaN(float64(t))
	case time.Time:
		return !t.IsZero()
	case int:
		return t != 0
	case int8:
		return t != 0
	case int16:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	case uint:
		return t != 0
	case uint8:
		return t != 0
	case uint16:
		return t != 0
	case uint32:
		return t != 0
	case uint64:
		return t != 0
	default:
		return true
	}
}

func render(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case map[string]any, []any:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(raw)
	default:
		return fmt.Sprint(t)
	}
}

func titleCase(key string) string {
	r, size := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError {
		return key
	}
	return string(unicode.ToUpper(r)) + key[size:]
}
