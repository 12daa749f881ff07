// Package storage реализует постоянное хранилище мира поверх BadgerDB.
//
// Таблицы разведены префиксами ключей:
//
//	b: + 16-байтный ключ чанка -> сжатый массив классов блоков
//	p: + 8-байтный id игрока   -> профиль игрока
//	u: + имя игрока            -> 8-байтный id игрока
//	m: + имя счётчика          -> 8-байтное значение
//
// Ключи чанков big-endian с монотонным переупорядочением знака,
// поэтому порядок байтов совпадает с порядком (измерение, z, y, x).
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dgraph-io/badger/v3"

	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/logging"
	"github.com/voxbrix/voxbrix-server/internal/pack"
)

// ErrNotFound — запрошенной записи нет в хранилище
var ErrNotFound = errors.New("запись не найдена")

var (
	prefixBlocks   = []byte("b:")
	prefixPlayer   = []byte("p:")
	prefixUsername = []byte("u:")

	keyPlayerCounter = []byte("m:player_counter")
)

// PlayerProfile — учётная запись игрока
type PlayerProfile struct {
	Player    entity.Player
	Username  string
	PublicKey [32]byte
}

func (p *PlayerProfile) Encode(b *pack.Buffer) {
	b.WriteUvarint(uint64(p.Player))
	b.WriteString(p.Username)
	b.WriteRaw(p.PublicKey[:])
}

func (p *PlayerProfile) Decode(r *pack.Reader) error {
	id, err := r.ReadUvarint()
	if err != nil {
		return err
	}
	p.Player = entity.Player(id)
	if p.Username, err = r.ReadString(); err != nil {
		return err
	}
	return r.ReadRaw(p.PublicKey[:])
}

// Store — хранилище мира
type Store struct {
	db     *badger.DB
	logger *logging.Logger
}

// Open открывает хранилище в каталоге dataPath
func Open(dataPath string) (*Store, error) {
	opts := badger.DefaultOptions(filepath.Join(dataPath, "world"))
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("открытие BadgerDB: %w", err)
	}

	return &Store{
		db:     db,
		logger: logging.NewLogger("storage"),
	}, nil
}

// Close закрывает хранилище
func (s *Store) Close() error {
	return s.db.Close()
}

func blocksKey(chunk entity.Chunk) []byte {
	chunkKey := chunk.ToKey()
	key := make([]byte, 0, len(prefixBlocks)+len(chunkKey))
	key = append(key, prefixBlocks...)
	key = append(key, chunkKey[:]...)
	return key
}

func playerKey(p entity.Player) []byte {
	key := make([]byte, len(prefixPlayer)+8)
	copy(key, prefixPlayer)
	binary.BigEndian.PutUint64(key[len(prefixPlayer):], uint64(p))
	return key
}

func usernameKey(username string) []byte {
	key := make([]byte, 0, len(prefixUsername)+len(username))
	key = append(key, prefixUsername...)
	key = append(key, username...)
	return key
}

// GetChunkBlocks читает классы блоков чанка.
// Возвращает ErrNotFound, если чанк никогда не сохранялся.
func (s *Store) GetChunkBlocks(chunk entity.Chunk) ([]entity.BlockClass, error) {
	var envelope []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blocksKey(chunk))
		if err != nil {
			return err
		}
		envelope, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("чтение блоков чанка: %w", err)
	}

	payload, err := pack.Decompress(envelope)
	if err != nil {
		return nil, fmt.Errorf("распаковка блоков чанка: %w", err)
	}

	r := pack.NewReader(payload)
	classes := make([]entity.BlockClass, entity.BlocksInChunk())
	for i := range classes {
		v, err := r.ReadUvarint()
		if err != nil {
			return nil, fmt.Errorf("декодирование блоков чанка: %w", err)
		}
		classes[i] = entity.BlockClass(v)
	}

	return classes, nil
}

// PutChunkBlocks сохраняет классы блоков чанка одной транзакцией
func (s *Store) PutChunkBlocks(chunk entity.Chunk, classes []entity.BlockClass) error {
	var buf pack.Buffer
	for _, c := range classes {
		buf.WriteUvarint(uint64(c))
	}
	envelope := pack.Compress(buf.Bytes())

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(blocksKey(chunk), envelope)
	})
	if err != nil {
		return fmt.Errorf("сохранение блоков чанка: %w", err)
	}
	return nil
}

// GetPlayerByUsername читает профиль по имени
func (s *Store) GetPlayerByUsername(username string) (*PlayerProfile, error) {
	var profile PlayerProfile

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(usernameKey(username))
		if err != nil {
			return err
		}
		idBytes, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if len(idBytes) != 8 {
			return fmt.Errorf("повреждён индекс имени %q", username)
		}

		item, err = txn.Get(playerKey(entity.Player(binary.BigEndian.Uint64(idBytes))))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return pack.FromBytes(raw, &profile)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("чтение профиля %q: %w", username, err)
	}

	return &profile, nil
}

// RegisterPlayer атомарно создаёт профиль с новым id.
// Возвращает ErrUsernameTaken, если имя занято.
func (s *Store) RegisterPlayer(username string, publicKey [32]byte) (*PlayerProfile, error) {
	var profile PlayerProfile

	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(usernameKey(username))
		if err == nil {
			return ErrUsernameTaken
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		// Следующий id игрока из счётчика
		var next uint64
		item, err := txn.Get(keyPlayerCounter)
		switch {
		case err == nil:
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if len(raw) == 8 {
				next = binary.BigEndian.Uint64(raw)
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		counter := make([]byte, 8)
		binary.BigEndian.PutUint64(counter, next+1)
		if err := txn.Set(keyPlayerCounter, counter); err != nil {
			return err
		}

		profile = PlayerProfile{
			Player:    entity.Player(next),
			Username:  username,
			PublicKey: publicKey,
		}

		idBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(idBytes, next)
		if err := txn.Set(usernameKey(username), idBytes); err != nil {
			return err
		}
		return txn.Set(playerKey(profile.Player), pack.ToBytes(&profile))
	})
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("регистрация игрока %q: %w", username, err)
	}

	s.logger.Info("🆕 зарегистрирован игрок %q (id=%d)", username, profile.Player)
	return &profile, nil
}

// ErrUsernameTaken — имя игрока уже занято
var ErrUsernameTaken = errors.New("имя игрока занято")
