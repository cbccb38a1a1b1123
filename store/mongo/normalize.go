package mongo

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// normalizeDoc converts a decoded document into plain Go values.
func normalizeDoc(doc bson.M) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = normalize(v)
	}
	return out
}

// normalize maps driver types onto the value model waitlist.FromDocument
// understands.
func normalize(v any) any {
	switch t := v.(type) {
	case bson.ObjectID:
		return t.Hex()
	case bson.DateTime:
		return t.Time().UTC()
	case bson.Decimal128:
		return t.String()
	case int32:
		return int64(t)
	case bson.M:
		return normalizeDoc(t)
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}
