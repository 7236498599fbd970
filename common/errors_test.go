package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindNone},
		{"vault not found", ErrVaultNotFound, KindVaultNotFound},
		{"wrapped corrupt", fmt.Errorf("load: %w", ErrVaultCorrupt), KindVaultCorrupt},
		{"no credentials", WrapError(ErrNoCredentials, "status"), KindNoCredentials},
		{"launcher", &LauncherNotFoundError{Searched: []string{"a"}}, KindLauncherNotFound},
		{"driver", fmt.Errorf("resolve: %w", ErrDriverMismatch), KindDriverMismatch},
		{"foreign", errors.New("boom"), KindInternal},
		{
			"auth failed wins over reasons",
			&AuthenticationFailedError{
				Tried:   []string{"direct", "browser"},
				Reasons: []error{ErrAuthRejected, ErrLoginTimeout},
			},
			KindAuthenticationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestLauncherNotFoundError(t *testing.T) {
	err := &LauncherNotFoundError{Searched: []string{`C:\a\mudrun.exe`, "/opt/mudfish/mudrun"}}

	assert.ErrorIs(t, err, ErrLauncherNotFound)
	assert.Contains(t, err.Error(), `C:\a\mudrun.exe`)
	assert.Contains(t, err.Error(), "/opt/mudfish/mudrun")
	assert.Equal(t, ErrLauncherNotFound.Error(), (&LauncherNotFoundError{}).Error())
}

func TestAuthenticationFailedError(t *testing.T) {
	err := &AuthenticationFailedError{
		Tried:   []string{"direct", "browser"},
		Reasons: []error{ErrAuthRejected, fmt.Errorf("wait: %w", ErrElementNotFound)},
	}

	require.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.ErrorIs(t, err, ErrAuthRejected)
	assert.ErrorIs(t, err, ErrElementNotFound)
	assert.Contains(t, err.Error(), "direct: "+ErrAuthRejected.Error())
	assert.Contains(t, err.Error(), "browser: wait: ")
}
