package repositories

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"housing-chat-service/internal/apperrors"
	"housing-chat-service/internal/models"
)

// Keyset cursor over the (created_at, id) message order. Cursors stay
// stable under concurrent inserts, unlike offset pagination.

func encodeCursor(at time.Time, id models.MessageID) string {
	raw := fmt.Sprintf("%d:%d", at.UnixNano(), id)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(cursor string) (time.Time, models.MessageID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, 0, apperrors.Validation("malformed cursor")
	}
	parts := strings.SplitN(string(raw), ":", 2)
	if len(parts) != 2 {
		return time.Time{}, 0, apperrors.Validation("malformed cursor")
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, 0, apperrors.Validation("malformed cursor")
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return time.Time{}, 0, apperrors.Validation("malformed cursor")
	}
	return time.Unix(0, nanos), models.MessageID(id), nil
}
