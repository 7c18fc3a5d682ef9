// Package ids generates prefixed entity identifiers, e.g. "ord-<uuid>".
package ids

import (
	"fmt"

	"github.com/google/uuid"
)

func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}
