package item

import (
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/feedex/internal/db"
	domitem "github.com/kailas-cloud/feedex/internal/domain/item"
)

const (
	fieldCreatorID   = "creator_id"
	fieldCreatedAt   = "created_at"
	fieldVector      = "vector"
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldTerms       = "terms"
)

// buildHashFields flattens an item and its searchable text into HSET fields.
func buildHashFields(it *domitem.Item, md domitem.Metadata, terms []string) map[string]string {
	return map[string]string{
		fieldCreatorID:   strconv.FormatInt(it.CreatorID(), 10),
		fieldCreatedAt:   strconv.FormatInt(it.CreatedAt().UnixMilli(), 10),
		fieldVector:      db.EncodeVector(it.Vector()),
		fieldTitle:       md.Title,
		fieldDescription: md.Description,
		fieldTerms:       strings.Join(terms, " "),
	}
}

// parseHashFields hydrates an item. ok is false for an empty or corrupt hash.
func parseHashFields(id int64, m map[string]string) (domitem.Item, bool) {
	if len(m) == 0 {
		return domitem.Item{}, false
	}
	creatorID, err := strconv.ParseInt(m[fieldCreatorID], 10, 64)
	if err != nil {
		return domitem.Item{}, false
	}
	ms, err := strconv.ParseInt(m[fieldCreatedAt], 10, 64)
	if err != nil {
		return domitem.Item{}, false
	}
	vec := db.DecodeVector(m[fieldVector])
	if len(vec) == 0 {
		return domitem.Item{}, false
	}
	return domitem.Reconstruct(id, creatorID, vec, time.UnixMilli(ms).UTC()), true
}
