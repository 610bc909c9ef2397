package system

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/gestly/gestly/pkg/logger"
)

type recordingService struct {
	name    string
	startFn func() error
	calls   *[]string
}

func (r recordingService) Name() string { return r.name }

func (r recordingService) Start(context.Context) error {
	*r.calls = append(*r.calls, "start:"+r.name)
	if r.startFn != nil {
		return r.startFn()
	}
	return nil
}

func (r recordingService) Stop(context.Context) error {
	*r.calls = append(*r.calls, "stop:"+r.name)
	return nil
}

func TestManagerOrder(t *testing.T) {
	var calls []string
	m := NewManager(logger.NewDiscard())
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(recordingService{name: name, calls: &calls}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	if err := m.Register(recordingService{name: "a", calls: &calls}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	want := []string{"start:a", "start:b", "start:c", "stop:c", "stop:b", "stop:a"}
	if !reflect.DeepEqual(calls, want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
}

func TestManagerRollsBackOnFailure(t *testing.T) {
	var calls []string
	m := NewManager(logger.NewDiscard())
	_ = m.Register(recordingService{name: "a", calls: &calls})
	_ = m.Register(recordingService{name: "b", calls: &calls, startFn: func() error { return errors.New("boom") }})
	_ = m.Register(recordingService{name: "c", calls: &calls})

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	want := []string{"start:a", "start:b", "stop:a"}
	if !reflect.DeepEqual(calls, want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
}
