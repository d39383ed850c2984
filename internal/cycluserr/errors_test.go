package cycluserr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cyclus-sim/cyclus/internal/cycluserr"
)

func TestKindStringNamesEveryKind(t *testing.T) {
	require.Equal(t, "ValueError", cycluserr.KindValueError.String())
	require.Equal(t, "KeyError", cycluserr.KindKeyError.String())
	require.Equal(t, "StateError", cycluserr.KindStateError.String())
	require.Equal(t, "IoError", cycluserr.KindIoError.String())
	require.Equal(t, "AssertionError", cycluserr.KindAssertionError.String())
}

func TestNewfFormatsMessage(t *testing.T) {
	err := cycluserr.Newf(cycluserr.KindValueError, "bad quantity %d", -1)
	require.EqualError(t, err, "ValueError: bad quantity -1")
}

func TestErrorsIsMatchesByKindNotMessage(t *testing.T) {
	err := cycluserr.Newf(cycluserr.KindKeyError, "unknown recipe %q", "foo")
	require.True(t, errors.Is(err, cycluserr.KeyError))
	require.False(t, errors.Is(err, cycluserr.ValueError))
}

func TestWrapfUnwrapsToCause(t *testing.T) {
	cause := errors.New("disk full")
	err := cycluserr.Wrapf(cycluserr.KindIoError, cause, "flush failed")
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "disk full")
	require.Contains(t, err.Error(), "flush failed")
}

func TestWithAgentReturnsNilForNilError(t *testing.T) {
	require.NoError(t, cycluserr.WithAgent(nil, "proto", "spec", 1, 0))
}

func TestWithAgentErrorFormatsAllFields(t *testing.T) {
	cause := cycluserr.Newf(cycluserr.KindStateError, "already built")
	err := cycluserr.WithAgent(cause, "Reactor1", "myspec:Reactor", 42, 7)

	require.EqualError(t, err, "agent[Reactor1 spec=myspec:Reactor id=42 t=7]: StateError: already built")
}

func TestWithAgentUnwrapsToCauseAndPreservesKind(t *testing.T) {
	cause := cycluserr.Newf(cycluserr.KindKeyError, "unknown package")
	err := cycluserr.WithAgent(cause, "proto", "spec", 1, 3)

	require.True(t, errors.Is(err, cycluserr.KeyError))

	var agentErr *cycluserr.AgentContext
	require.True(t, errors.As(err, &agentErr))
	require.Equal(t, "proto", agentErr.Prototype)
	require.Equal(t, "spec", agentErr.Spec)
	require.Equal(t, int64(1), agentErr.AgentID)
	require.Equal(t, 3, agentErr.Time)
}
