package server

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/xtaci/kcp-go/v5"

	actorcmp "github.com/voxbrix/voxbrix-server/internal/component/actor"
	"github.com/voxbrix/voxbrix-server/internal/component/player"
	"github.com/voxbrix/voxbrix-server/internal/entity"
	"github.com/voxbrix/voxbrix-server/internal/messages"
	"github.com/voxbrix/voxbrix-server/internal/pack"
	"github.com/voxbrix/voxbrix-server/internal/storage"
	"github.com/voxbrix/voxbrix-server/internal/system"
	"github.com/voxbrix/voxbrix-server/internal/vec"
)

const maxFrameSize = 1 << 20

// session — подключённый клиент. Надёжный поток принадлежит паре
// горутин сессии, адрес датаграмм обновляется приёмником датаграмм.
type session struct {
	id     uuid.UUID
	player entity.Player
	tx     chan player.ClientEvent

	stop     chan struct{}
	stopOnce sync.Once

	// Обратный адрес ненадёжных датаграмм клиента; nil до первой
	// входящей датаграммы
	addr atomic.Pointer[net.UDPAddr]
}

func (s *session) close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// sessionTable — таблица активных сессий
type sessionTable struct {
	mu       sync.RWMutex
	byID     map[uuid.UUID]*session
	byPlayer map[entity.Player]*session
}

func newSessionTable() *sessionTable {
	return &sessionTable{
		byID:     make(map[uuid.UUID]*session),
		byPlayer: make(map[entity.Player]*session),
	}
}

// register добавляет сессию; false, если игрок уже подключён
func (t *sessionTable) register(s *session) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, online := t.byPlayer[s.player]; online {
		return false
	}
	t.byID[s.id] = s
	t.byPlayer[s.player] = s
	return true
}

func (t *sessionTable) unregister(s *session) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.byID[s.id] == s {
		delete(t.byID, s.id)
	}
	if t.byPlayer[s.player] == s {
		delete(t.byPlayer, s.player)
	}
}

func (t *sessionTable) lookup(id uuid.UUID) *session {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byID[id]
}

// close останавливает сессию игрока, если она есть
func (t *sessionTable) close(p entity.Player) {
	t.mu.RLock()
	s := t.byPlayer[p]
	t.mu.RUnlock()

	if s != nil {
		s.close()
	}
}

func listenKCP(port int) (*kcp.Listener, error) {
	listener, err := kcp.ListenWithOptions(fmt.Sprintf(":%d", port), nil, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("открытие KCP слушателя: %w", err)
	}
	return listener, nil
}

// acceptSessions принимает входящие KCP сессии
func (s *Server) acceptSessions(ctx context.Context, listener *kcp.Listener) {
	defer s.wg.Done()

	for {
		conn, err := listener.AcceptKCP()
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("приём сессии: %v", err)
			}
			return
		}

		s.wg.Add(1)
		go s.handleSession(ctx, conn)
	}
}

// readFrame читает кадр надёжного потока: длина u32 LE и тело
func readFrame(conn io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return nil, err
	}

	size := binary.LittleEndian.Uint32(header[:])
	if size > maxFrameSize {
		return nil, fmt.Errorf("кадр %d байт превышает предел", size)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(conn, data); err != nil {
		return nil, err
	}
	return data, nil
}

// writeFrame пишет кадр надёжного потока одним вызовом записи
func writeFrame(conn io.Writer, data []byte) error {
	frame := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[4:], data)

	_, err := conn.Write(frame)
	return err
}

// handleSession ведёт сессию от рукопожатия до отключения
func (s *Server) handleSession(ctx context.Context, conn *kcp.UDPSession) {
	defer s.wg.Done()
	defer conn.Close()

	conn.SetStreamMode(true)
	conn.SetWriteDelay(false)
	conn.SetNoDelay(1, 20, 2, 1)
	conn.SetWindowSize(512, 512)
	conn.SetMtu(1400)

	sess, err := s.handshake(ctx, conn)
	if err != nil {
		s.logger.Debug("рукопожатие %s: %v", conn.RemoteAddr(), err)
		return
	}

	s.logger.Info("🔗 игрок %d подключён (%s)", sess.player, conn.RemoteAddr())

	// Исходящий поток: команды серверного цикла
	go func() {
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-sess.stop:
				conn.Close()
				return
			case ev := <-sess.tx:
				switch ev.Kind {
				case player.ClientEventSendReliable:
					if err := writeFrame(conn, ev.Data); err != nil {
						sess.close()
						conn.Close()
						return
					}
				case player.ClientEventSendUnreliable:
					if addr := sess.addr.Load(); addr != nil {
						s.datagrams.WriteToUDP(ev.Data, addr)
					}
				}
			}
		}
	}()

	// Входящий поток: тегированные сообщения до ошибки чтения
	for ctx.Err() == nil {
		data, err := readFrame(conn)
		if err != nil {
			break
		}
		select {
		case s.events <- loopEvent{kind: eventPlayerMessage, player: sess.player, data: data}:
		case <-ctx.Done():
		}
	}

	sess.close()
	s.sessions.unregister(sess)

	select {
	case s.events <- loopEvent{kind: eventRemovePlayer, player: sess.player}:
	case <-ctx.Done():
	}

	s.logger.Info("👋 игрок %d отключён", sess.player)
}

// handshake выполняет вход или регистрацию.
//
// Сервер отсылает одноразовый сессионный ключ, подписанный своим
// ключом идентичности; клиент доказывает владение ключом игрока
// подписью этого сессионного ключа.
func (s *Server) handshake(ctx context.Context, conn *kcp.UDPSession) (*session, error) {
	timeout := s.cfg.Server.ClientConnectionTimeout()
	deadline := func() { conn.SetDeadline(time.Now().Add(timeout)) }
	deadline()

	data, err := readFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("чтение InitRequest: %w", err)
	}
	var request messages.InitRequest
	if err := pack.FromBytes(data, &request); err != nil {
		return nil, fmt.Errorf("разбор InitRequest: %w", err)
	}

	// Сессионный ключ служит одноразовым значением для обеих подписей
	challenge, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("генерация сессионного ключа: %w", err)
	}

	var response messages.InitResponse
	copy(response.PublicKey[:], challenge)
	copy(response.KeySignature[:], ed25519.Sign(s.identity, challenge))
	if err := writeFrame(conn, pack.ToBytes(&response)); err != nil {
		return nil, fmt.Errorf("отправка InitResponse: %w", err)
	}

	deadline()
	var profile *storage.PlayerProfile
	switch request.Mode {
	case messages.InitRegister:
		data, err := readFrame(conn)
		if err != nil {
			return nil, fmt.Errorf("чтение RegisterRequest: %w", err)
		}
		var register messages.RegisterRequest
		if err := pack.FromBytes(data, &register); err != nil {
			return nil, fmt.Errorf("разбор RegisterRequest: %w", err)
		}

		profile, err = s.store.RegisterPlayer(register.Username, register.PublicKey)
		if errors.Is(err, storage.ErrUsernameTaken) {
			writeFrame(conn, pack.ToBytes(&messages.InitResult{
				FailureCode: messages.RegisterFailureUsernameTaken,
			}))
			return nil, err
		}
		if err != nil {
			return nil, err
		}

	case messages.InitLogin:
		data, err := readFrame(conn)
		if err != nil {
			return nil, fmt.Errorf("чтение LoginRequest: %w", err)
		}
		var login messages.LoginRequest
		if err := pack.FromBytes(data, &login); err != nil {
			return nil, fmt.Errorf("разбор LoginRequest: %w", err)
		}

		profile, err = s.store.GetPlayerByUsername(login.Username)
		if errors.Is(err, storage.ErrNotFound) {
			writeFrame(conn, pack.ToBytes(&messages.InitResult{
				FailureCode: messages.LoginFailureUnknownUsername,
			}))
			return nil, fmt.Errorf("неизвестное имя %q", login.Username)
		}
		if err != nil {
			return nil, err
		}

		if !ed25519.Verify(ed25519.PublicKey(profile.PublicKey[:]), challenge, login.Signature[:]) {
			writeFrame(conn, pack.ToBytes(&messages.InitResult{
				FailureCode: messages.LoginFailureInvalidSignature,
			}))
			return nil, fmt.Errorf("неверная подпись игрока %q", login.Username)
		}
	}

	sess := &session{
		id:     uuid.New(),
		player: profile.Player,
		tx:     make(chan player.ClientEvent, clientTxQueueSize),
		stop:   make(chan struct{}),
	}

	if !s.sessions.register(sess) {
		writeFrame(conn, pack.ToBytes(&messages.InitResult{
			FailureCode: messages.LoginFailureAlreadyOnline,
		}))
		return nil, fmt.Errorf("игрок %d уже подключён", profile.Player)
	}

	viewRadius := s.cfg.World.GetPlayerChunkViewRadius()
	addReq := &addPlayerRequest{
		data: system.PlayerAddData{
			Player:     profile.Player,
			Tx:         sess.tx,
			Session:    sess.id,
			ViewRadius: viewRadius,
			Spawn:      spawnPosition(),
		},
		done: make(chan addPlayerResult, 1),
	}

	select {
	case s.events <- loopEvent{kind: eventAddPlayer, add: addReq}:
	case <-ctx.Done():
		s.sessions.unregister(sess)
		return nil, ctx.Err()
	}

	var result addPlayerResult
	select {
	case result = <-addReq.done:
	case <-ctx.Done():
		s.sessions.unregister(sess)
		return nil, ctx.Err()
	}
	if result.err != nil {
		s.sessions.unregister(sess)
		return nil, fmt.Errorf("создание актёра игрока %d: %w", profile.Player, result.err)
	}

	deadline()
	err = writeFrame(conn, pack.ToBytes(&messages.InitResult{
		Success: true,
		Data: messages.InitData{
			Actor:                 result.actor,
			PlayerChunkViewRadius: viewRadius,
			Session:               [16]byte(sess.id),
		},
	}))
	if err != nil {
		s.sessions.unregister(sess)
		s.disconnect(ctx, sess.player)
		return nil, fmt.Errorf("отправка InitResult: %w", err)
	}

	// Дальше обычные сообщения без дедлайна: живость клиента
	// контролируется снапшотами датаграмм
	conn.SetDeadline(time.Time{})

	return sess, nil
}

// disconnect ставит игрока в очередь удаления серверного цикла
func (s *Server) disconnect(ctx context.Context, p entity.Player) {
	select {
	case s.events <- loopEvent{kind: eventRemovePlayer, player: p}:
	case <-ctx.Done():
	}
}

// spawnPosition — начальное положение актёра игрока: центр
// поверхности чанка над началом координат
func spawnPosition() actorcmp.GlobalPosition {
	center := float32(entity.BlocksInChunkEdge) / 2
	return actorcmp.GlobalPosition{
		Chunk: entity.Chunk{
			Position: vec.Vec3{X: 0, Y: 0, Z: 1},
		},
		Offset: vec.Vec3F{X: center, Y: center, Z: center},
	}
}

// receiveDatagrams принимает ненадёжные датаграммы: 16 байт
// идентификатора сессии и конверт State. Первая датаграмма сессии
// фиксирует обратный адрес клиента.
func (s *Server) receiveDatagrams(ctx context.Context) {
	defer s.wg.Done()

	buf := make([]byte, 65535)
	for {
		n, addr, err := s.datagrams.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Error("приём датаграмм: %v", err)
			}
			return
		}
		if n < 16 {
			continue
		}

		var id uuid.UUID
		copy(id[:], buf[:16])
		sess := s.sessions.lookup(id)
		if sess == nil {
			continue
		}
		sess.addr.Store(addr)

		data := make([]byte, n-16)
		copy(data, buf[16:n])

		// Ненадёжный поток: при перегрузке цикла конверт просто
		// теряется, следующий принесёт более свежее состояние
		select {
		case s.events <- loopEvent{kind: eventPlayerState, player: sess.player, data: data}:
		default:
		}
	}
}
