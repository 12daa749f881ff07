package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/pack"
)

func TestInitRequestRejectsUnknownMode(t *testing.T) {
	var m InitRequest
	err := pack.FromBytes([]byte{7}, &m)
	assert.ErrorIs(t, err, pack.ErrCorrupted)
}

func TestInitResponseRoundTrip(t *testing.T) {
	m := InitResponse{}
	for i := range m.PublicKey {
		m.PublicKey[i] = byte(i)
	}
	for i := range m.KeySignature {
		m.KeySignature[i] = byte(255 - i)
	}

	var got InitResponse
	require.NoError(t, pack.FromBytes(pack.ToBytes(&m), &got))
	assert.Equal(t, m, got)
}

func TestLoginRequestRoundTrip(t *testing.T) {
	m := LoginRequest{Username: "степан"}
	for i := range m.Signature {
		m.Signature[i] = byte(i * 3)
	}

	var got LoginRequest
	require.NoError(t, pack.FromBytes(pack.ToBytes(&m), &got))
	assert.Equal(t, m, got)
}

func TestRegisterRequestRoundTrip(t *testing.T) {
	m := RegisterRequest{Username: "степан"}
	for i := range m.PublicKey {
		m.PublicKey[i] = byte(i)
	}

	var got RegisterRequest
	require.NoError(t, pack.FromBytes(pack.ToBytes(&m), &got))
	assert.Equal(t, m, got)
}

func TestInitResultSuccessRoundTrip(t *testing.T) {
	m := InitResult{
		Success: true,
		Data: InitData{
			Actor:                 entity.Actor(42),
			PlayerChunkViewRadius: 3,
		},
	}
	for i := range m.Data.Session {
		m.Data.Session[i] = byte(i + 1)
	}

	var got InitResult
	require.NoError(t, pack.FromBytes(pack.ToBytes(&m), &got))
	assert.Equal(t, m, got)
}

func TestInitResultFailureRoundTrip(t *testing.T) {
	m := InitResult{FailureCode: LoginFailureAlreadyOnline}

	var got InitResult
	require.NoError(t, pack.FromBytes(pack.ToBytes(&m), &got))
	assert.False(t, got.Success)
	assert.Equal(t, LoginFailureAlreadyOnline, got.FailureCode)
}

func TestInitResultTruncated(t *testing.T) {
	m := InitResult{Success: true}
	encoded := pack.ToBytes(&m)

	var got InitResult
	err := pack.FromBytes(encoded[:len(encoded)-4], &got)
	assert.ErrorIs(t, err, pack.ErrCorrupted)
}
