package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// AuthUser is the caller identity resolved from the bearer token.
type AuthUser struct {
	ID   primitive.ObjectID `json:"id"`
	Name string             `json:"name"`
}
