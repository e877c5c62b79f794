package events

import (
	"bytes"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	domitem "github.com/kailas-cloud/feedex/internal/domain/item"
)

// Envelope is the wire shape shared by the broker and the HTTP test hook.
type Envelope struct {
	EventName string          `json:"event_name" validate:"required"`
	Payload   json.RawMessage `json:"payload" validate:"required"`
}

// ID accepts identifiers as JSON numbers or numeric strings.
type ID int64

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*id = 0
		return nil
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*id = ID(v)
	return nil
}

type interactionPayload struct {
	UserID   ID `json:"user_id" validate:"gt=0"`
	ItemID   ID `json:"item_id" validate:"gt=0"`
	SampleID ID `json:"sample_id"`
}

func (p *interactionPayload) resolve() {
	if p.ItemID == 0 {
		p.ItemID = p.SampleID
	}
}

type followPayload struct {
	UserID           ID `json:"user_id" validate:"gt=0"`
	FollowedUserID   ID `json:"followed_user_id"`
	UnfollowedUserID ID `json:"unfollowed_user_id"`
	TargetID         ID `json:"-"`
}

type userPayload struct {
	UserID ID `json:"user_id" validate:"gt=0"`
}

type itemPayload struct {
	ItemID    ID           `json:"item_id" validate:"gt=0"`
	SampleID  ID           `json:"sample_id"`
	CreatorID ID           `json:"creator_id"`
	Metadata  wireMetadata `json:"metadata"`
	CreatedAt *time.Time   `json:"created_at"`
}

func (p *itemPayload) resolve() {
	if p.ItemID == 0 {
		p.ItemID = p.SampleID
	}
}

// wireMetadata accepts both the English field names and the vocabulary
// keys used by upstream producers (genero, emocion_es, instrumentos, tipo).
type wireMetadata struct {
	BPM          *float64 `json:"bpm"`
	Genres       []string `json:"genres"`
	Genero       []string `json:"genero"`
	Emotions     []string `json:"emotions"`
	EmocionES    []string `json:"emocion_es"`
	Instruments  []string `json:"instruments"`
	Instrumentos []string `json:"instrumentos"`
	Kinds        []string `json:"kinds"`
	Tipo         []string `json:"tipo"`
	Tags         []string `json:"tags"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
}

func (m wireMetadata) toDomain() domitem.Metadata {
	return domitem.Metadata{
		BPM:         m.BPM,
		Genres:      append(m.Genres, m.Genero...),
		Emotions:    append(m.Emotions, m.EmocionES...),
		Instruments: append(m.Instruments, m.Instrumentos...),
		Kinds:       append(m.Kinds, m.Tipo...),
		Tags:        m.Tags,
		Title:       m.Title,
		Description: m.Description,
	}
}
