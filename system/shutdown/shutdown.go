package shutdown

import (
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

type hook struct {
	name string
	fn   func() error
}

var (
	mu    sync.Mutex
	hooks []hook

	ExitFunc = os.Exit
)

// Register adds a cleanup step. Steps run in reverse registration order.
func Register(name string, fn func() error) {
	mu.Lock()
	defer mu.Unlock()
	hooks = append(hooks, hook{name: name, fn: fn})
}

// Run executes and clears all registered steps. A failing step does not stop the rest.
func Run() {
	mu.Lock()
	pending := hooks
	hooks = nil
	mu.Unlock()

	for i := len(pending) - 1; i >= 0; i-- {
		h := pending[i]
		if err := h.fn(); err != nil {
			log.Error().Err(err).Str("step", h.name).Msg("Shutdown step failed")
			continue
		}
		log.Debug().Str("step", h.name).Msg("Shutdown step done")
	}
}

func Shutdown() {
	Run()
	log.Info().Msg("AC controller stopped")
	ExitFunc(0)
}

func ShutdownWithError(err error, msg string) {
	log.Error().Err(err).Msg(msg)
	Run()
	ExitFunc(1)
}
