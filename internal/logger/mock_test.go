package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMock(t *testing.T) {
	l := Mock()
	assert.NotPanics(t, func() {
		l.Info().Msg("discarded")
		sub := l.With().Str("module", "test").Logger()
		sub.Debug().Msg("discarded")
	})
}
