package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ImageMeta is the locale-scoped caption block of one stored image. Caption
// and photographer must both be filled before the owning report can be
// published.
type ImageMeta struct {
	Title        string `json:"title"`
	Alt          string `json:"alt"`
	Link         string `json:"link"`
	Caption      string `json:"caption"`
	Photographer string `json:"photographer"`
}

// Complete reports whether the metadata satisfies the publish gate.
func (m ImageMeta) Complete() bool {
	return m.Caption != "" && m.Photographer != ""
}

// StoredImage is one uploaded gallery image together with its per-locale
// metadata. The image bytes live on disk at Path; this record is the lookup
// handle referenced from Report.Images.
type StoredImage struct {
	ID       uuid.UUID                                `json:"id" db:"id" gorm:"type:uuid;primaryKey;not null"`
	ReportID uuid.UUID                                `json:"reportId" db:"report_id" gorm:"type:uuid;not null;index"`
	Path     string                                   `json:"path" db:"path" gorm:"type:text;not null"`
	Name     string                                   `json:"name" db:"name" gorm:"type:text;not null"`
	Meta     datatypes.JSONType[map[string]ImageMeta] `json:"meta" db:"meta"`
	// RotationDeg is a presentation hint in degrees clockwise, always a
	// multiple of 90. The renderer applies it; the stored bytes are untouched.
	RotationDeg  int       `json:"rotationDeg" db:"rotation_deg" gorm:"type:integer;not null;default:0"`
	DateAdded    time.Time `json:"dateAdded" db:"date_added" gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP"`
	LastModified time.Time `json:"lastModified" db:"last_modified" gorm:"type:timestamp;not null;default:CURRENT_TIMESTAMP"`
}

// MetaFor returns the metadata block for the given locale, zero-valued when
// the locale has no entry yet.
func (s *StoredImage) MetaFor(locale string) ImageMeta {
	all := s.Meta.Data()
	if all == nil {
		return ImageMeta{}
	}
	return all[locale]
}

// SetMetaFor replaces the metadata block for the given locale.
func (s *StoredImage) SetMetaFor(locale string, meta ImageMeta) {
	all := s.Meta.Data()
	if all == nil {
		all = make(map[string]ImageMeta)
	}
	all[locale] = meta
	s.Meta = datatypes.NewJSONType(all)
}
