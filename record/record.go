package record

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/habiliai/memoryd/errors"
	"github.com/habiliai/memoryd/internal/stringutils"
)

const MaxTextLen = 2000

// idSpace seeds the UUIDv5 ids derived from content hashes.
var idSpace = uuid.MustParse("5b0f6c1e-7a3d-4c8e-9b52-1d6f0e2a4c71")

// Record is one atomic memory.
type Record struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Namespace Namespace `json:"namespace"`
	UserID    string    `json:"user_id"`
	Hash      string    `json:"hash"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Scored struct {
	*Record
	Score float64 `json:"score"`
}

// Hash is the hex sha256 of the normalized statement.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(stringutils.Normalize(text)))
	return hex.EncodeToString(sum[:])
}

// ID derives the stable record id for a content hash within a user's scope.
func ID(userID, hash string) string {
	return uuid.NewSHA1(idSpace, []byte(userID+"\x00"+hash)).String()
}

// NewID returns a random id for a record whose derived id is already held by
// an edited record.
func NewID() string {
	return uuid.NewString()
}

// New builds a validated record with id and hash derived from text. Records in
// a restricted namespace are forced sensitive.
func New(userID string, ns Namespace, text string, meta Metadata, now time.Time) (*Record, error) {
	r := &Record{
		Text:      stringutils.CollapseSpace(stringutils.Sanitize(text)),
		Namespace: ns,
		UserID:    userID,
		Metadata:  meta.Clone(),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	r.Hash = Hash(r.Text)
	r.ID = ID(userID, r.Hash)
	r.EnforceSensitivity()

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// EnforceSensitivity applies the restricted => sensitive invariant.
func (r *Record) EnforceSensitivity() {
	if r.Namespace.IsRestricted() {
		r.Metadata.Sensitive = true
	}
}

// SetText replaces the statement and its hash, keeping id, metadata and
// created_at.
func (r *Record) SetText(text string, now time.Time) error {
	text = stringutils.CollapseSpace(stringutils.Sanitize(text))
	if err := validateText(text); err != nil {
		return err
	}
	r.Text = text
	r.Hash = Hash(text)
	r.UpdatedAt = now.UTC()
	r.EnforceSensitivity()
	return nil
}

func (r *Record) Validate() error {
	if r.ID == "" {
		return errors.Validationf("record id is empty")
	}
	if err := validateText(r.Text); err != nil {
		return err
	}
	if _, err := ParseNamespace(string(r.Namespace)); err != nil {
		return err
	}
	if r.UserID == "" {
		return errors.Validationf("record %s has no user id", r.ID)
	}
	if r.Namespace.IsRestricted() && !r.Metadata.Sensitive {
		return errors.Validationf("record %s in %s must be sensitive", r.ID, r.Namespace)
	}
	return r.Metadata.Validate()
}

func (r *Record) Clone() *Record {
	c := *r
	c.Metadata = r.Metadata.Clone()
	return &c
}

func validateText(text string) error {
	if text == "" {
		return errors.Validationf("memory text is empty")
	}
	if len(text) > MaxTextLen {
		return errors.Validationf("memory text exceeds %d bytes", MaxTextLen)
	}
	return nil
}
