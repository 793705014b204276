package kitserv

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jmcgee01125/kitserv/internal/ioqueue"
	"github.com/jmcgee01125/kitserv/internal/sockopt"
)

// worker owns one readiness queue and a private, mutex-protected freelist
// of preallocated Client slots, grounded on kitserv.c's client_worker and
// its per-worker connection table.
type worker struct {
	idx    int
	queue  ioqueue.Queue
	tuning sockopt.Tuning

	mu    sync.Mutex
	free  []int
	slots []*Client
}

// score reports how many free slots this worker currently has, the metric
// accept_worker/score_worker uses to pick a destination worker.
func (w *worker) score() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.free)
}

func (w *worker) acquire() (int, *Client, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.free) == 0 {
		return 0, nil, false
	}
	idx := w.free[len(w.free)-1]
	w.free = w.free[:len(w.free)-1]
	return idx, w.slots[idx], true
}

func (w *worker) release(idx int) {
	w.mu.Lock()
	w.free = append(w.free, idx)
	w.mu.Unlock()
}

// Start validates cfg, builds the worker pool and accept loop(s), and
// blocks until SIGINT/SIGTERM, grounded on kitserv.c's kitserv_server_start.
func Start(cfg *Config) error {
	if cfg.Context.Root == "" {
		return ErrNoRoot
	}
	if cfg.NumWorkers < 1 {
		return ErrNoWorkers
	}
	if cfg.NumSlots < cfg.NumWorkers {
		return ErrNoSlots
	}
	if !cfg.BindIPv4 && !cfg.BindIPv6 {
		return ErrNoBindFamily
	}

	ctx := cfg.Context

	workers := make([]*worker, cfg.NumWorkers)
	base := cfg.NumSlots / cfg.NumWorkers
	extra := cfg.NumSlots % cfg.NumWorkers
	for i := range workers {
		n := base
		if i < extra {
			n++
		}
		q, err := ioqueue.NewQueue()
		if err != nil {
			return fmt.Errorf("kitserv: worker %d: %w", i, err)
		}
		w := &worker{idx: i, queue: q, tuning: sockopt.DefaultTuning()}
		w.slots = make([]*Client, n)
		w.free = make([]int, n)
		for j := 0; j < n; j++ {
			w.slots[j] = newClient(&ctx, cfg.API)
			w.free[j] = j
		}
		workers[i] = w
	}

	var listenFds []int
	if cfg.BindIPv4 {
		fd, err := sockopt.Listen(sockopt.FamilyIPv4, cfg.Port, sockopt.DefaultTuning())
		if err != nil {
			return err
		}
		listenFds = append(listenFds, fd)
	}
	if cfg.BindIPv6 {
		fd, err := sockopt.Listen(sockopt.FamilyIPv6, cfg.Port, sockopt.DefaultTuning())
		if err != nil {
			return err
		}
		listenFds = append(listenFds, fd)
	}

	acceptQueue, err := ioqueue.NewQueue()
	if err != nil {
		return fmt.Errorf("kitserv: accept queue: %w", err)
	}
	for i, fd := range listenFds {
		if err := acceptQueue.Add(fd, uint64(i), ioqueue.In); err != nil {
			return fmt.Errorf("kitserv: registering listener: %w", err)
		}
	}

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *worker) {
			defer wg.Done()
			runWorker(w)
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		runAcceptLoop(acceptQueue, listenFds, workers)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	_ = acceptQueue.Close()
	for _, fd := range listenFds {
		_ = sockopt.Close(fd)
	}
	for _, w := range workers {
		_ = w.queue.Close()
	}
	wg.Wait()
	return nil
}

// runAcceptLoop waits for listener readiness and drains each listener with
// accept4 until it would block, dispatching every accepted connection to
// whichever worker currently has the most free slots.
func runAcceptLoop(q ioqueue.Queue, listenFds []int, workers []*worker) {
	events := make([]ioqueue.Event, 16)
	for {
		n, err := q.Wait(events)
		if err != nil {
			return
		}
		for i := 0; i < n; i++ {
			ev := events[i]
			listenFd := listenFds[ev.UserData]
			for {
				fd, remote, aerr := sockopt.Accept(listenFd)
				if aerr != nil {
					break
				}
				assignConnection(workers, fd, remote)
			}
			if err := q.Rearm(listenFd, ev.UserData, ioqueue.In); err != nil {
				return
			}
		}
	}
}

// assignConnection implements score_worker: hand the new connection to the
// worker with the largest freelist, or drop it if every worker is full.
func assignConnection(workers []*worker, fd int, remote string) {
	best := workers[0]
	bestScore := -1
	for _, w := range workers {
		if s := w.score(); s > bestScore {
			bestScore, best = s, w
		}
	}
	idx, c, ok := best.acquire()
	if !ok {
		_ = sockopt.Close(fd)
		return
	}
	sockopt.ApplyConnTuning(fd, best.tuning)
	c.bind(fd, remote)
	c.workerIdx = best.idx
	c.slotIdx = idx
	if err := best.queue.Add(fd, uint64(idx), ioqueue.In); err != nil {
		_ = c.release(sockopt.Close)
		best.release(idx)
	}
}

// runWorker is the per-worker event loop, grounded on kitserv.c's
// client_worker: wait for readiness, drive each ready connection's
// transaction forward, and rearm or close depending on the outcome.
func runWorker(w *worker) {
	events := make([]ioqueue.Event, 64)
	for {
		n, err := w.queue.Wait(events)
		if err != nil {
			return
		}
		for i := 0; i < n; i++ {
			ev := events[i]
			idx := int(ev.UserData)
			c := w.slots[idx]

			if ev.Hangup {
				closeSlot(w, c, idx)
				continue
			}

			closeConn, perr := c.Process()
			if perr != nil {
				fmt.Fprintf(os.Stderr, "kitserv: connection error: %v\n", perr)
			}
			if closeConn {
				closeSlot(w, c, idx)
				continue
			}

			interest := ioqueue.In
			if c.txn.state == stateSend {
				interest = ioqueue.Out
			}
			if rerr := w.queue.Rearm(c.fd, uint64(idx), interest); rerr != nil {
				closeSlot(w, c, idx)
			}
		}
	}
}

func closeSlot(w *worker, c *Client, idx int) {
	_ = w.queue.Remove(c.fd)
	_ = c.release(sockopt.Close)
	w.release(idx)
}
