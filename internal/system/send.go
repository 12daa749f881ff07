package system

import (
	"github.com/voxbrix/voxbrix-server/internal/component/player"
)

// trySend кладёт событие в канал клиентского цикла без блокировки.
// Переполненный канал означает мёртвого или безнадёжно отстающего
// клиента — отправитель ставит игрока в очередь на удаление.
func trySend(client *player.Client, ev player.ClientEvent) bool {
	select {
	case client.Tx <- ev:
		return true
	default:
		return false
	}
}
