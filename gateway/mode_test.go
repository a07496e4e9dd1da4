package gateway

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/OSCARNAR2018/asado-tracker/store"
	"github.com/rs/zerolog"
)

func TestFlagGet(t *testing.T) {
	tests := []struct {
		name   string
		stored *string
		fail   bool
		want   bool
	}{
		{name: "unset defaults to simulated", want: true},
		{name: "false means live", stored: ptr("false"), want: false},
		{name: "true", stored: ptr("true"), want: true},
		{name: "garbage is simulated", stored: ptr("nope"), want: true},
		{name: "read error is simulated", fail: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv := newMemKV()
			if tt.stored != nil {
				kv.values[store.KeySimulated] = *tt.stored
			}
			kv.failGet = tt.fail

			got := NewFlag(kv, zerolog.Nop()).Get(context.Background())
			if got.Simulated != tt.want {
				t.Errorf("Get() = %v, want simulated=%v", got, tt.want)
			}
		})
	}
}

func ptr(s string) *string { return &s }

func TestFlagSetPersistsThenNotifies(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	f := NewFlag(kv, zerolog.Nop())

	var order []string
	f.OnChange(func(m Mode) {
		if v := kv.values[store.KeySimulated]; v != strconv.FormatBool(m.Simulated) {
			t.Errorf("handler ran before the mode was persisted (stored %q)", v)
		}
		order = append(order, "first:"+m.String())
	})
	unsub := f.OnChange(func(m Mode) { order = append(order, "second:"+m.String()) })

	if err := f.Set(ctx, Mode{Simulated: false}); err != nil {
		t.Fatal(err)
	}

	if len(order) != 2 || order[0] != "first:live" || order[1] != "second:live" {
		t.Errorf("handlers ran as %v", order)
	}

	unsub()
	unsub()
	order = nil

	if err := f.Set(ctx, Mode{Simulated: true}); err != nil {
		t.Fatal(err)
	}
	if len(order) != 1 || f.Subscribers() != 1 {
		t.Errorf("after unsubscribe: ran %v with %d subscribers", order, f.Subscribers())
	}
	if !f.Get(ctx).Simulated {
		t.Error("mode not persisted")
	}
}

func TestFlagSetFailureDoesNotNotify(t *testing.T) {
	kv := newMemKV()
	kv.failSet = true
	f := NewFlag(kv, zerolog.Nop())

	f.OnChange(func(Mode) { t.Error("handler called for a mode that was not saved") })

	if err := f.Set(context.Background(), Mode{}); !errors.Is(err, errDisk) {
		t.Errorf("Set() err = %v, want errDisk", err)
	}
}
