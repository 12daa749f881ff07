package messages

import (
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/pack"
)

// Режимы рукопожатия
const (
	InitLogin uint8 = iota
	InitRegister
)

// Коды отказа входа
const (
	LoginFailureUnknownUsername uint8 = iota
	LoginFailureInvalidSignature
	LoginFailureAlreadyOnline
)

// Коды отказа регистрации
const (
	RegisterFailureUsernameTaken uint8 = iota
)

// Теги результата рукопожатия
const (
	initResultSuccess uint8 = iota
	initResultFailure
)

// InitRequest — первое сообщение клиента: вход или регистрация
type InitRequest struct {
	Mode uint8
}

func (m *InitRequest) Encode(b *pack.Buffer) {
	b.WriteU8(m.Mode)
}

func (m *InitRequest) Decode(r *pack.Reader) error {
	mode, err := r.ReadU8()
	if err != nil {
		return err
	}
	if mode != InitLogin && mode != InitRegister {
		return pack.ErrCorrupted
	}
	m.Mode = mode
	return nil
}

// InitResponse — ответ сервера: его публичный ключ и подпись
// одноразового значения сессии, чтобы клиент удостоверил сервер
type InitResponse struct {
	PublicKey    [32]byte
	KeySignature [64]byte
}

func (m *InitResponse) Encode(b *pack.Buffer) {
	b.WriteRaw(m.PublicKey[:])
	b.WriteRaw(m.KeySignature[:])
}

func (m *InitResponse) Decode(r *pack.Reader) error {
	if err := r.ReadRaw(m.PublicKey[:]); err != nil {
		return err
	}
	return r.ReadRaw(m.KeySignature[:])
}

// LoginRequest — вход: имя и подпись одноразового значения
// сессии ключом игрока
type LoginRequest struct {
	Username  string
	Signature [64]byte
}

func (m *LoginRequest) Encode(b *pack.Buffer) {
	b.WriteString(m.Username)
	b.WriteRaw(m.Signature[:])
}

func (m *LoginRequest) Decode(r *pack.Reader) error {
	var err error
	if m.Username, err = r.ReadString(); err != nil {
		return err
	}
	return r.ReadRaw(m.Signature[:])
}

// RegisterRequest — регистрация: имя и публичный ключ ed25519
type RegisterRequest struct {
	Username  string
	PublicKey [32]byte
}

func (m *RegisterRequest) Encode(b *pack.Buffer) {
	b.WriteString(m.Username)
	b.WriteRaw(m.PublicKey[:])
}

func (m *RegisterRequest) Decode(r *pack.Reader) error {
	var err error
	if m.Username, err = r.ReadString(); err != nil {
		return err
	}
	return r.ReadRaw(m.PublicKey[:])
}

// InitData — данные успешного входа. Session привязывает
// ненадёжные датаграммы игрока к его сессии.
type InitData struct {
	Actor                 entity.Actor
	PlayerChunkViewRadius int32
	Session               [16]byte
}

// InitResult — итог рукопожатия: либо данные входа, либо код отказа
type InitResult struct {
	Success     bool
	Data        InitData
	FailureCode uint8
}

func (m *InitResult) Encode(b *pack.Buffer) {
	if m.Success {
		b.WriteU8(initResultSuccess)
		b.WriteUvarint(uint64(m.Data.Actor))
		b.WriteVarint(int64(m.Data.PlayerChunkViewRadius))
		b.WriteRaw(m.Data.Session[:])
	} else {
		b.WriteU8(initResultFailure)
		b.WriteU8(m.FailureCode)
	}
}

func (m *InitResult) Decode(r *pack.Reader) error {
	tag, err := r.ReadU8()
	if err != nil {
		return err
	}
	switch tag {
	case initResultSuccess:
		m.Success = true
		actor, err := r.ReadUvarint()
		if err != nil {
			return err
		}
		m.Data.Actor = entity.Actor(actor)
		radius, err := r.ReadVarint()
		if err != nil {
			return err
		}
		m.Data.PlayerChunkViewRadius = int32(radius)
		if err := r.ReadRaw(m.Data.Session[:]); err != nil {
			return err
		}
	case initResultFailure:
		m.Success = false
		if m.FailureCode, err = r.ReadU8(); err != nil {
			return err
		}
	default:
		return pack.ErrCorrupted
	}
	return nil
}
