package v1

import (
	"fmt"
	"strings"

	"github.com/duynhne/user-crud-service/internal/core/domain"
	"go.mongodb.org/mongo-driver/bson"
)

// sortableFields maps query names to document keys.
var sortableFields = map[string]string{
	"id":    "_id",
	"name":  "name",
	"email": "email",
}

// parseSort turns "name,-email" into an ordered sort document. A leading
// '-' sorts that key descending.
func parseSort(raw string) (bson.D, error) {
	var sort bson.D
	seen := map[string]bool{}

	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		dir := 1
		if strings.HasPrefix(part, "-") {
			dir = -1
			part = part[1:]
		}

		key, ok := sortableFields[part]
		if !ok {
			return nil, fmt.Errorf("%w: cannot sort by %q", domain.ErrInvalidRequest, part)
		}
		if seen[key] {
			return nil, fmt.Errorf("%w: %q sorted twice", domain.ErrInvalidRequest, part)
		}
		seen[key] = true
		sort = append(sort, bson.E{Key: key, Value: dir})
	}

	return sort, nil
}
