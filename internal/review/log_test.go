package review

import (
	"errors"
	"testing"
)

func TestLogAppendRejectsEmptyID(t *testing.T) {
	l := NewLog()
	a := NewComment("hi", nil, CategoryNote, Author{})
	a.ID = ""

	err := l.Append(a)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestLogAppendRejectsUnknownType(t *testing.T) {
	l := NewLog()
	a := NewComment("hi", nil, CategoryNote, Author{})
	a.Type = "annotation"

	err := l.Append(a)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestLogAppendRejectsDuplicateID(t *testing.T) {
	l := NewLog()
	a := NewComment("hi", nil, CategoryNote, Author{})
	if err := l.Append(a); err != nil {
		t.Fatalf("first append failed: %v", err)
	}

	dup := NewComment("again", nil, CategoryNote, Author{})
	dup.ID = a.ID
	err := l.Append(dup)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError for duplicate id, got %v", err)
	}
	if l.Len() != 1 {
		t.Fatalf("expected rejected append to leave log unchanged, got %d entries", l.Len())
	}
}

func TestLogPreservesAppendOrder(t *testing.T) {
	l := NewLog()
	var ids []string
	for i := 0; i < 5; i++ {
		a := NewComment("c", nil, CategoryNote, Author{})
		if err := l.Append(a); err != nil {
			t.Fatalf("append failed: %v", err)
		}
		ids = append(ids, a.ID)
	}

	got := l.IDs()
	if len(got) != len(ids) {
		t.Fatalf("expected %d ids, got %d", len(ids), len(got))
	}
	for i := range ids {
		if got[i] != ids[i] {
			t.Fatalf("order not preserved at %d: expected %s, got %s", i, ids[i], got[i])
		}
	}
}

func TestLogAllReturnsCopy(t *testing.T) {
	l := NewLog()
	a := NewComment("hi", nil, CategoryNote, Author{})
	if err := l.Append(a); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	all := l.All()
	all[0].Content = "mutated"

	fresh, ok := l.Get(a.ID)
	if !ok || fresh.Content != "hi" {
		t.Fatalf("expected log contents to be insulated from caller mutation, got %+v", fresh)
	}
}
