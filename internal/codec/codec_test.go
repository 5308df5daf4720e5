package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexcore/exec-core/internal/execution"
	"github.com/vexcore/exec-core/pkg/ids"
)

type stubCodec struct{}

func (stubCodec) ParseInbound(raw []byte) ([]execution.Response, error) { return nil, nil }
func (stubCodec) EncodeOutbound(req execution.Request) ([]byte, error)  { return nil, nil }

func TestRegistry_GetReturnsRegisteredCodec(t *testing.T) {
	r := NewRegistry()
	c := stubCodec{}
	r.Register(ids.ExchangeCoinbase, c)

	got, err := r.Get(ids.ExchangeCoinbase)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestRegistry_GetUnregisteredReturnsError(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get(ids.ExchangeCoinbase)
	assert.Error(t, err)
}

func TestRegistry_RegisterOverwritesPrevious(t *testing.T) {
	r := NewRegistry()
	r.Register(ids.ExchangeCoinbase, stubCodec{})
	second := stubCodec{}
	r.Register(ids.ExchangeCoinbase, second)

	got, err := r.Get(ids.ExchangeCoinbase)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}
