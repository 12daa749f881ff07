// Package pack реализует компактный бинарный формат сообщений:
// целые — varint, строки и байтовые срезы — с префиксом длины,
// перечисления — тег-байт. Значения длиннее порога дополнительно
// сжимаются блочным кодеком s2.
package pack

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/klauspost/compress/s2"
)

// ErrCorrupted возвращается при любом дефекте входных данных.
// Декодеры не паникуют на внешнем входе.
var ErrCorrupted = errors.New("pack: данные повреждены")

// CompressLength — порог длины, после которого полезная нагрузка сжимается
const CompressLength = 100

// maxUncompressedBytes ограничивает заявленный размер распакованных
// данных, защищая от decompression bomb
const maxUncompressedBytes = 100 << 20

// Encodable кодирует себя в буфер
type Encodable interface {
	Encode(*Buffer)
}

// Decodable декодирует себя из ридера
type Decodable interface {
	Decode(*Reader) error
}

// Buffer — дописываемый буфер кодирования
type Buffer struct {
	b []byte
}

// NewBuffer создает буфер с заданной начальной емкостью
func NewBuffer(capacity int) *Buffer {
	return &Buffer{b: make([]byte, 0, capacity)}
}

// Reset очищает буфер, сохраняя емкость
func (w *Buffer) Reset() {
	w.b = w.b[:0]
}

// Bytes возвращает накопленные данные
func (w *Buffer) Bytes() []byte {
	return w.b
}

// Len возвращает длину накопленных данных
func (w *Buffer) Len() int {
	return len(w.b)
}

// WriteU8 дописывает один байт
func (w *Buffer) WriteU8(v byte) {
	w.b = append(w.b, v)
}

// WriteBool дописывает булево значение одним байтом
func (w *Buffer) WriteBool(v bool) {
	if v {
		w.b = append(w.b, 1)
	} else {
		w.b = append(w.b, 0)
	}
}

// WriteUvarint дописывает беззнаковое целое в формате varint
func (w *Buffer) WriteUvarint(v uint64) {
	w.b = binary.AppendUvarint(w.b, v)
}

// WriteVarint дописывает знаковое целое в формате zigzag varint
func (w *Buffer) WriteVarint(v int64) {
	w.b = binary.AppendVarint(w.b, v)
}

// WriteF32 дописывает float32 (little-endian биты)
func (w *Buffer) WriteF32(v float32) {
	w.b = binary.LittleEndian.AppendUint32(w.b, math.Float32bits(v))
}

// WriteBytes дописывает байтовый срез с префиксом длины
func (w *Buffer) WriteBytes(v []byte) {
	w.WriteUvarint(uint64(len(v)))
	w.b = append(w.b, v...)
}

// WriteRaw дописывает байты без префикса длины
func (w *Buffer) WriteRaw(v []byte) {
	w.b = append(w.b, v...)
}

// WriteString дописывает строку UTF-8 с префиксом длины
func (w *Buffer) WriteString(v string) {
	w.WriteUvarint(uint64(len(v)))
	w.b = append(w.b, v...)
}

// Reader — последовательный декодер буфера
type Reader struct {
	b   []byte
	off int
}

// NewReader создает ридер над срезом данных
func NewReader(b []byte) *Reader {
	return &Reader{b: b}
}

// Remaining возвращает количество непрочитанных байт
func (r *Reader) Remaining() int {
	return len(r.b) - r.off
}

// ReadU8 читает один байт
func (r *Reader) ReadU8() (byte, error) {
	if r.off >= len(r.b) {
		return 0, ErrCorrupted
	}
	v := r.b[r.off]
	r.off++
	return v, nil
}

// ReadBool читает булево значение
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadU8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrCorrupted
	}
}

// ReadUvarint читает беззнаковое целое
func (r *Reader) ReadUvarint() (uint64, error) {
	v, n := binary.Uvarint(r.b[r.off:])
	if n <= 0 {
		return 0, ErrCorrupted
	}
	r.off += n
	return v, nil
}

// ReadVarint читает знаковое целое
func (r *Reader) ReadVarint() (int64, error) {
	v, n := binary.Varint(r.b[r.off:])
	if n <= 0 {
		return 0, ErrCorrupted
	}
	r.off += n
	return v, nil
}

// ReadF32 читает float32
func (r *Reader) ReadF32() (float32, error) {
	if r.Remaining() < 4 {
		return 0, ErrCorrupted
	}
	v := math.Float32frombits(binary.LittleEndian.Uint32(r.b[r.off:]))
	r.off += 4
	return v, nil
}

// ReadBytes читает байтовый срез с префиксом длины.
// Возвращаемый срез ссылается на исходный буфер.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadUvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(r.Remaining()) {
		return nil, ErrCorrupted
	}
	v := r.b[r.off : r.off+int(n)]
	r.off += int(n)
	return v, nil
}

// ReadRaw читает ровно len(dst) байт без префикса длины
func (r *Reader) ReadRaw(dst []byte) error {
	if len(dst) > r.Remaining() {
		return ErrCorrupted
	}
	copy(dst, r.b[r.off:])
	r.off += len(dst)
	return nil
}

// ReadString читает строку с префиксом длины
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compress упаковывает полезную нагрузку в конверт хранения/передачи:
// байт-флаг сжатия, для сжатых данных — размер оригинала (u32 LE)
// и блок s2
func Compress(payload []byte) []byte {
	if len(payload) <= CompressLength {
		out := make([]byte, 0, len(payload)+1)
		out = append(out, 0)
		return append(out, payload...)
	}

	encoded := s2.Encode(nil, payload)

	out := make([]byte, 5+len(encoded))
	out[0] = 1
	binary.LittleEndian.PutUint32(out[1:5], uint32(len(payload)))
	copy(out[5:], encoded)
	return out
}

// Decompress разворачивает конверт Compress
func Decompress(envelope []byte) ([]byte, error) {
	if len(envelope) == 0 {
		return nil, ErrCorrupted
	}

	switch envelope[0] {
	case 0:
		return envelope[1:], nil
	case 1:
		if len(envelope) < 5 {
			return nil, ErrCorrupted
		}
		size := binary.LittleEndian.Uint32(envelope[1:5])
		if size > maxUncompressedBytes {
			return nil, ErrCorrupted
		}
		out, err := s2.Decode(make([]byte, 0, size), envelope[5:])
		if err != nil {
			return nil, ErrCorrupted
		}
		if len(out) != int(size) {
			return nil, ErrCorrupted
		}
		return out, nil
	default:
		return nil, ErrCorrupted
	}
}

// ToBytes кодирует значение в новый срез
func ToBytes(v Encodable) []byte {
	buf := NewBuffer(64)
	v.Encode(buf)
	out := make([]byte, len(buf.Bytes()))
	copy(out, buf.Bytes())
	return out
}

// FromBytes декодирует значение из среза
func FromBytes(b []byte, v Decodable) error {
	return v.Decode(NewReader(b))
}
