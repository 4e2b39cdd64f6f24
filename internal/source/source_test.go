package source

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatch_Matches(t *testing.T) {
	t.Parallel()

	msg := &Message{From: "MR Zayo <mr@zayo.com>", Subject: "Start Maintenance Notification TTN-1"}

	tests := []struct {
		name  string
		match Match
		want  bool
	}{
		{"from substring", Match{From: "mr zayo"}, true},
		{"subject substring", Match{Subject: "maintenance"}, true},
		{"both must match", Match{From: "MR Zayo", Subject: "gtt"}, false},
		{"other sender", Match{From: "ChangeManagement@gtt.net"}, false},
		{"empty predicate matches nothing", Match{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.match.Matches(msg))
		})
	}
}

func TestIsAuthError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("opening: %w", &AuthError{Server: "imap.example.com:993", Message: "bad password"})
	require.True(t, IsAuthError(err))
	require.False(t, IsAuthError(fmt.Errorf("other")))
}
