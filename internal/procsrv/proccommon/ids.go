package proccommon

import "crypto/rand"

type IdType int

const (
	ID_TYPE_GENERIC = iota
	ID_TYPE_WORKSPACE
	ID_TYPE_USER
)

const WORKSPACE_CODE_LEN = 6

/**
 * GetUniqueId
 * This may not be unique, since this is randomly generated.
 * Has a practical collision probability of 1.5% in 10 million keys.
 * The workspaces table's primary key rejects collisions; callers retry
 * on conflict instead of relying on a key generation service.
 */
func GetUniqueId(t IdType) string {
	c, err := shortCode(WORKSPACE_CODE_LEN)
	if err != nil {
		return ""
	}
	switch t {
	case ID_TYPE_WORKSPACE:
		c = "W" + c
	case ID_TYPE_USER:
		c = "U" + c
	default:
	}
	return c
}

// Generates a random alphanumeric code of a given length, first character
// always a letter.
func shortCode(length int) (string, error) {
	charSet := "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	charSetLen := len(charSet)

	randomBytes := make([]byte, length)
	_, err := rand.Read(randomBytes)
	if err != nil {
		return "", err
	}

	for i := 0; i < length; i++ {
		index := int(randomBytes[i]) % charSetLen
		randomBytes[i] = charSet[index]
	}

	if randomBytes[0] >= '0' && randomBytes[0] <= '9' {
		index := int(randomBytes[0]) % 26
		randomBytes[0] = charSet[index]
	}

	return string(randomBytes), nil
}
