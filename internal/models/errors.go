package models

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var ErrNotFound = status.Errorf(codes.NotFound, "not found")

func NotFound(format string, args ...any) error {
	return status.Errorf(codes.NotFound, format, args...)
}

func Forbidden(format string, args ...any) error {
	return status.Errorf(codes.PermissionDenied, format, args...)
}

func BadRequest(format string, args ...any) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}

func Unauthorized(format string, args ...any) error {
	return status.Errorf(codes.Unauthenticated, format, args...)
}

type grpcStatus interface {
	GRPCStatus() *status.Status
}

func findStatus(err error) (*status.Status, bool) {
	var se grpcStatus
	if errors.As(err, &se) {
		return se.GRPCStatus(), true
	}
	return nil, false
}

// Code extracts the status code carried anywhere in err's chain.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if st, ok := findStatus(err); ok {
		return st.Code()
	}
	return codes.Unknown
}

func IsNotFound(err error) bool {
	return Code(err) == codes.NotFound
}

// ErrorMessage returns the status message of err, or err.Error() for plain errors.
func ErrorMessage(err error) string {
	if st, ok := findStatus(err); ok {
		return st.Message()
	}
	return err.Error()
}

// ParseObjectID parses a hex id, reporting a bad request naming what on failure.
func ParseObjectID(hex, what string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, BadRequest("invalid %s id %q", what, hex)
	}
	return id, nil
}
