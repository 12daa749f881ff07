// Package messages определяет сообщения протокола между клиентом
// и сервером и сборщики (packers) для дельта-репликации.
//
// Надёжный поток переносит рукопожатие, данные чанков и их изменения,
// ненадёжный — конверты State со снапшотами. Все сообщения кодируются
// через internal/pack.
package messages

import (
	"github.com/voxbrix/voxbrix-server/internal/pack"
)

// Теги сообщений надёжного потока, сервер -> клиент
const (
	ClientAcceptChunkData uint8 = iota
	ClientAcceptChunkChanges
)

// Теги сообщений надёжного потока, клиент -> сервер
const (
	ServerAcceptAlterBlock uint8 = iota
)

// Encodable — сообщение, сериализуемое в буфер
type Encodable interface {
	Encode(b *pack.Buffer)
}

// Decodable — сообщение, восстановимое из байтов
type Decodable interface {
	Decode(r *pack.Reader) error
}

// EncodeTagged сериализует сообщение надёжного потока: тег плюс тело
func EncodeTagged(tag uint8, m Encodable) []byte {
	b := pack.NewBuffer(64)
	b.WriteU8(tag)
	m.Encode(b)
	out := make([]byte, b.Len())
	copy(out, b.Bytes())
	return out
}
