package identity

import (
	"cmp"
	"encoding/hex"
	"regexp"

	"github.com/google/uuid"

	"github.com/ia-eknorr/stoker-bundler/api/v1alpha1"
)

// Generator produces fresh identifiers.
type Generator interface {
	// ID returns a new 32 character goid.
	ID() string
	// GUID returns a new reference id.
	GUID() string
}

// UUIDGenerator generates random identifiers from version 4 UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) ID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

func (UUIDGenerator) GUID() string { return uuid.NewString() }

// StableID derives the goid a reusable entity keeps when it pins none. It
// depends on the project group and name, the entity type and key, and not on
// the version, so the entity keeps it across releases.
func StableID(p v1alpha1.ProjectInfo, entType, key string) string {
	u := stable(p, entType, key, "id")
	return hex.EncodeToString(u[:])
}

// StableGUID is StableID for reference ids.
func StableGUID(p v1alpha1.ProjectInfo, entType, key string) string {
	return stable(p, entType, key, "guid").String()
}

func stable(p v1alpha1.ProjectInfo, entType, key, field string) uuid.UUID {
	coords := cmp.Or(p.GroupName, "default") + "." + p.Name + Separator + entType + Separator + key + Separator + field
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(coords))
}

var goidPattern = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)

// ValidID reports whether s is a well-formed goid.
func ValidID(s string) bool { return goidPattern.MatchString(s) }

// ValidGUID reports whether s is a well-formed reference id in canonical form.
func ValidGUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
