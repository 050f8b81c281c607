package v1

import (
	"github.com/duynhne/user-crud-service/internal/core/domain"
	"go.mongodb.org/mongo-driver/bson"
)

// field pairs a document key with an optional request value.
type field struct {
	key   string
	value *string
}

// fieldsOf collects the fields that are set into one document. Nil values
// are skipped, so an empty result means "no constraint" in a filter and
// "nothing to write" in an update.
func fieldsOf(fields ...field) bson.M {
	doc := bson.M{}
	for _, f := range fields {
		if f.value != nil {
			doc[f.key] = *f.value
		}
	}
	return doc
}

func idFilter(id string) bson.M {
	return bson.M{"_id": id}
}

func searchFilter(req domain.SearchUsersRequest) bson.M {
	return fieldsOf(
		field{"_id", req.ID},
		field{"name", req.Name},
		field{"email", req.Email},
	)
}

func updateFields(req domain.UpdateUserRequest) bson.M {
	return fieldsOf(
		field{"name", req.Name},
		field{"email", req.Email},
		field{"password", req.Password},
	)
}
