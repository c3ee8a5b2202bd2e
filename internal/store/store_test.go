package store

import (
	"context"
	"testing"
)

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Config{Backend: "oracle"})
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestRegister_Duplicate(t *testing.T) {
	Register("dup-test", func(context.Context, Config) (Store, error) { return nil, nil })
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	Register("dup-test", func(context.Context, Config) (Store, error) { return nil, nil })
}
