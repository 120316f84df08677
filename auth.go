package launchcore

import (
	"crypto/md5"
	"encoding/hex"
)

// Auth is the opaque credential record the launcher needs to fill in the
// auth_* launch fields. Interactive authentication is an external
// collaborator (spec §1); this core only ever consumes an Auth value.
type Auth struct {
	Username        string
	UUID            string
	AccessToken     string
	UserType        string
	UserProperties  string
}

// OfflineAuth derives a deterministic Auth for offline/cracked play: the
// UUID is an MD5 hash of the raw username bytes, forced to UUID version 3
// with the RFC-4122 variant, per spec §4.10. access_token mirrors the
// UUID; user_type is "mojang"; user_properties is an empty JSON object.
func OfflineAuth(username string) Auth {
	sum := md5.Sum([]byte(username))

	// Force version 3 (top nibble of byte 6) and RFC-4122 variant (top two
	// bits of byte 8).
	sum[6] = (sum[6] & 0x0F) | 0x30
	sum[8] = (sum[8] & 0x3F) | 0x80

	uuid := hex.EncodeToString(sum[:])

	return Auth{
		Username:       username,
		UUID:           uuid,
		AccessToken:    uuid,
		UserType:       "mojang",
		UserProperties: "{}",
	}
}
