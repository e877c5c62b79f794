package interaction

import (
	"strconv"
	"time"

	dominter "github.com/kailas-cloud/feedex/internal/domain/interaction"
)

const (
	fieldUserID      = "user_id"
	fieldItemID      = "item_id"
	fieldType        = "type"
	fieldWeight      = "weight"
	fieldCreatedAt   = "created_at"
	fieldProcessedAt = "processed_at"

	// unprocessedMarker stands for a null processed_at.
	unprocessedMarker = "0"
)

func buildHashFields(in *dominter.Interaction) map[string]string {
	return map[string]string{
		fieldUserID:      strconv.FormatInt(in.UserID, 10),
		fieldItemID:      strconv.FormatInt(in.ItemID, 10),
		fieldType:        string(in.Type),
		fieldWeight:      strconv.FormatFloat(in.Weight, 'f', -1, 64),
		fieldCreatedAt:   strconv.FormatInt(in.CreatedAt.UnixMilli(), 10),
		fieldProcessedAt: formatProcessed(in.ProcessedAt),
	}
}

func parseHashFields(id int64, m map[string]string) (dominter.Interaction, bool) {
	if len(m) == 0 {
		return dominter.Interaction{}, false
	}
	userID, err := strconv.ParseInt(m[fieldUserID], 10, 64)
	if err != nil {
		return dominter.Interaction{}, false
	}
	itemID, err := strconv.ParseInt(m[fieldItemID], 10, 64)
	if err != nil {
		return dominter.Interaction{}, false
	}
	weight, _ := strconv.ParseFloat(m[fieldWeight], 64)
	in := dominter.Interaction{
		ID:     id,
		UserID: userID,
		ItemID: itemID,
		Type:   dominter.Type(m[fieldType]),
		Weight: weight,
	}
	if ms, err := strconv.ParseInt(m[fieldCreatedAt], 10, 64); err == nil {
		in.CreatedAt = time.UnixMilli(ms).UTC()
	}
	if ms, err := strconv.ParseInt(m[fieldProcessedAt], 10, 64); err == nil && ms > 0 {
		at := time.UnixMilli(ms).UTC()
		in.ProcessedAt = &at
	}
	return in, true
}

func formatProcessed(at *time.Time) string {
	if at == nil {
		return unprocessedMarker
	}
	return strconv.FormatInt(at.UnixMilli(), 10)
}
