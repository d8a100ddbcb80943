package mongo

import (
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/v2/mongo"

	settlement "github.com/NIMOLA/hermeos-backend-sub002"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			"duplicate key",
			mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000"}}},
			settlement.ErrAlreadyExists,
		},
		{
			"validator",
			mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: codeValidationFailure}}},
			settlement.ErrInvariantViolation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("classify = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"write conflict", mongo.CommandError{Code: 112, Labels: []string{labelTransientTransaction}}, true},
		{"unlabelled", mongo.CommandError{Code: 112}, false},
		{"plain", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTransient(tt.err); got != tt.want {
				t.Errorf("isTransient = %v, want %v", got, tt.want)
			}
		})
	}
}
