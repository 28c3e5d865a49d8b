package executor

import "testing"

func TestConfirmPolicyAllowDestructive(t *testing.T) {
	tests := []struct {
		name   string
		policy ConfirmPolicy
		want   bool
	}{
		{
			name:   "allow production bypasses prompt",
			policy: ConfirmPolicy{AllowProduction: true, Confirm: func(string) bool { return false }},
			want:   true,
		},
		{
			name:   "non-interactive without allow-production refuses",
			policy: ConfirmPolicy{NonInteractive: true},
			want:   false,
		},
		{
			name:   "interactive with nil Confirm refuses",
			policy: ConfirmPolicy{},
			want:   false,
		},
		{
			name:   "interactive defers to Confirm",
			policy: ConfirmPolicy{Confirm: func(string) bool { return true }},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.AllowDestructive("prod-account"); got != tt.want {
				t.Errorf("AllowDestructive() = %v, want %v", got, tt.want)
			}
		})
	}
}
