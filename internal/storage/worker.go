package storage

import (
	"context"
	"sync"
	"time"

	"github.com/voxbrix/voxbrix-server/internal/entity"
)

const (
	writeQueueSize = 1024
	writeRetries   = 3
	retryDelay     = 50 * time.Millisecond
)

type chunkWrite struct {
	chunk   entity.Chunk
	classes []entity.BlockClass
}

// Worker выполняет записи в хранилище на выделенной горутине,
// чтобы тик сервера никогда не блокировался на I/O.
// Записи одного чанка сериализуются очередью: последняя побеждает.
type Worker struct {
	store *Store
	queue chan chunkWrite
	wg    sync.WaitGroup
}

// NewWorker создаёт и запускает воркер записи
func NewWorker(ctx context.Context, store *Store) *Worker {
	w := &Worker{
		store: store,
		queue: make(chan chunkWrite, writeQueueSize),
	}

	w.wg.Add(1)
	go w.run(ctx)

	return w
}

// EnqueueChunk ставит запись блоков чанка в очередь.
// При переполнении очереди запись отбрасывается с логом:
// чанк будет сохранён при следующем изменении.
func (w *Worker) EnqueueChunk(chunk entity.Chunk, classes []entity.BlockClass) {
	select {
	case w.queue <- chunkWrite{chunk: chunk, classes: classes}:
	default:
		w.store.logger.Warn("⚠️ очередь записи переполнена, чанк %v не сохранён", chunk)
	}
}

// Wait дожидается остановки воркера
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			// Дописываем накопленное перед выходом
			for {
				select {
				case job := <-w.queue:
					w.write(job)
				default:
					return
				}
			}
		case job := <-w.queue:
			w.write(job)
		}
	}
}

func (w *Worker) write(job chunkWrite) {
	var err error
	for attempt := 0; attempt < writeRetries; attempt++ {
		if err = w.store.PutChunkBlocks(job.chunk, job.classes); err == nil {
			return
		}
		time.Sleep(retryDelay)
	}
	w.store.logger.Error("запись чанка %v не удалась: %v", job.chunk, err)
}
