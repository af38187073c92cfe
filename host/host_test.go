package host

import (
	"context"
	"errors"
	"testing"
)

func TestSelfSeqID(t *testing.T) {
	if _, ok := SelfSeqID(context.Background()); ok {
		t.Error("expected no sequence")
	}

	ctx := WithSeqID(context.Background(), 7)
	if id, ok := SelfSeqID(ctx); !ok || id != 7 {
		t.Errorf("expected 7, got %d", id)
	}
}

func TestRecover(t *testing.T) {
	call := func(fatal Fatal) (err error) {
		defer Recover(&err)
		fatal("out of cheese")
		return nil
	}

	err := call(Panic)

	var ferr *FatalError
	if !errors.As(err, &ferr) || !errors.Is(err, ErrFatal) || ferr.Msg != "out of cheese" {
		t.Errorf("expected a fatal error, got %v", err)
	}

	if err := call(func(string) {}); err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	defer func() {
		if r := recover(); r != "other" {
			t.Errorf("expected other panics to propagate, got %v", r)
		}
	}()
	_ = call(func(string) { panic("other") })
}
