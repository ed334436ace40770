package router

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/vango-dev/navrouter/pkg/route"
)

func tracing(name string, order *[]string) Middleware {
	return MiddlewareFunc(func(ctx context.Context, ev *Event, next func(context.Context) error) error {
		*order = append(*order, name+":before")
		err := next(ctx)
		*order = append(*order, name+":after")
		return err
	})
}

func TestComposeMiddlewareOrder(t *testing.T) {
	var order []string
	mw := []Middleware{tracing("a", &order), tracing("b", &order)}

	err := ComposeMiddleware(context.Background(), &Event{}, mw, func(context.Context) error {
		order = append(order, "handler")
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a:before", "b:before", "handler", "b:after", "a:after"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestChain(t *testing.T) {
	var order []string
	chained := Chain(tracing("a", &order), tracing("b", &order))
	_ = ComposeMiddleware(context.Background(), &Event{}, []Middleware{chained, tracing("c", &order)}, func(context.Context) error {
		order = append(order, "handler")
		return nil
	})
	want := []string{"a:before", "b:before", "c:before", "handler", "c:after", "b:after", "a:after"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestSkipAndOnly(t *testing.T) {
	isBind := func(ev *Event) bool { return ev.Kind == EventBind }

	tests := []struct {
		name    string
		mw      func(*[]string) Middleware
		kind    EventKind
		wantRun bool
	}{
		{"skip matching", func(o *[]string) Middleware { return Skip(isBind, tracing("m", o)) }, EventBind, false},
		{"skip other", func(o *[]string) Middleware { return Skip(isBind, tracing("m", o)) }, EventNavigate, true},
		{"only matching", func(o *[]string) Middleware { return Only(isBind, tracing("m", o)) }, EventBind, true},
		{"only other", func(o *[]string) Middleware { return Only(isBind, tracing("m", o)) }, EventNavigate, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var order []string
			handled := false
			_ = ComposeMiddleware(context.Background(), &Event{Kind: tt.kind}, []Middleware{tt.mw(&order)}, func(context.Context) error {
				handled = true
				return nil
			})
			if !handled {
				t.Error("handler should always run")
			}
			if ran := len(order) > 0; ran != tt.wantRun {
				t.Errorf("middleware ran = %v, want %v", ran, tt.wantRun)
			}
		})
	}
}

func TestMiddlewareSeesPassOutcome(t *testing.T) {
	events := make(chan Event, 8)
	mw := MiddlewareFunc(func(ctx context.Context, ev *Event, next func(context.Context) error) error {
		err := next(ctx)
		events <- *ev
		return err
	})
	page := route.New("page")
	r := newTestRouter(t, []Declaration{{Path: "/:p", Route: page}}, WithMiddleware(mw))
	if err := r.BindSource(context.Background(), newMemory(t, "/a")); err != nil {
		t.Fatal(err)
	}
	if err := r.Replace(context.Background(), "/b", nil, nil); err != nil {
		t.Fatal(err)
	}

	bind := <-events
	if bind.Kind != EventBind || bind.Result == nil || bind.Transitions.Opened != 1 {
		t.Errorf("bind event = %+v", bind)
	}
	nav := <-events
	if nav.Kind != EventNavigate || nav.Method != MethodReplace || nav.Path != "/b" {
		t.Errorf("navigate event = %+v", nav)
	}
	if nav.Result == nil || nav.Result.Path != "/b" || nav.Transitions.Updated != 1 {
		t.Errorf("navigate outcome = %+v", nav)
	}
}

func TestMiddlewareCanReject(t *testing.T) {
	denied := errors.New("denied")
	mw := MiddlewareFunc(func(ctx context.Context, ev *Event, next func(context.Context) error) error {
		if ev.Kind == EventNavigate {
			return denied
		}
		return next(ctx)
	})
	r := newTestRouter(t, []Declaration{{Path: "/:p", Route: route.New("p")}}, WithMiddleware(mw))
	mem := newMemory(t, "/a")
	if err := r.BindSource(context.Background(), mem); err != nil {
		t.Fatal(err)
	}
	if err := r.Push(context.Background(), "/b", nil, nil); !errors.Is(err, denied) {
		t.Fatalf("Push() error = %v, want %v", err, denied)
	}
	if mem.Len() != 1 {
		t.Errorf("rejected navigation reached the source: %v", mem.Entries())
	}
}
