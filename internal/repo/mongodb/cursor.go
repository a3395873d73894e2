package mongodb

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DMHash identifies the unordered pair of users of a dm chat.
// It also returns both ids sorted by their hex form.
func DMHash(a, b primitive.ObjectID) (string, []primitive.ObjectID) {
	ids := []primitive.ObjectID{a, b}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].Hex() < ids[j].Hex()
	})
	sum := sha256.Sum256([]byte(ids[0].Hex() + "|" + ids[1].Hex()))
	return hex.EncodeToString(sum[:]), ids
}

// beforeFilter selects rows strictly older than (at, id) under the
// (field desc, _id desc) ordering. Equal timestamps fall back to _id.
func beforeFilter(field string, at time.Time, id primitive.ObjectID) bson.M {
	return bson.M{
		"$or": bson.A{
			bson.M{field: bson.M{"$lt": at}},
			bson.M{field: at, "_id": bson.M{"$lt": id}},
		},
	}
}

func bsonDesc(field string) bson.D {
	return bson.D{{Key: field, Value: -1}, {Key: "_id", Value: -1}}
}
