package natsadapter_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	natsadapter "github.com/samirrijal/walkguide/internal/adapters/nats"
	"github.com/samirrijal/walkguide/internal/core/domain"
)

func TestDispositionOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want natsadapter.Disposition
	}{
		{"processed", nil, natsadapter.Ack},
		{"reset session", fmt.Errorf("session 3f2a: %w", domain.ErrNotFound), natsadapter.Term},
		{"bad position", fmt.Errorf("position: %w", domain.ErrInvalidInput), natsadapter.Term},
		{"store outage", errors.New("valkey get session: connection refused"), natsadapter.Nak},
		{"lost write race", fmt.Errorf("save session: %w", domain.ErrConflict), natsadapter.Nak},
		{"deadline", context.DeadlineExceeded, natsadapter.Nak},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := natsadapter.DispositionOf(tt.err); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
