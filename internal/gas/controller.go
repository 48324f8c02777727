package gas

import (
	"context"
	"math/big"
	"sync"
	"time"

	"simpleweb3/internal/logger"
	"simpleweb3/internal/model"
)

// Estimator returns the gas a draft is expected to use
type Estimator interface {
	EstimateGas(ctx context.Context, draft model.TransactionDraft) (uint64, error)
}

type Options struct {
	Limits   Bounds
	Fees     FeeBounds
	Debounce time.Duration
	Hold     time.Duration
}

// Snapshot is the controller state handed to subscribers
type Snapshot struct {
	Draft       model.TransactionDraft `json:"draft"`
	GasLimit    uint64                 `json:"gasLimit"`
	Estimate    uint64                 `json:"estimate,omitempty"`
	BaseFee     *big.Int               `json:"baseFee"`
	PriorityFee *big.Int               `json:"priorityFee"`
	MaxFee      *big.Int               `json:"maxFee"`
	Estimating  bool                   `json:"estimating"`
	Error       string                 `json:"error,omitempty"`
}

// Controller owns one transaction draft and its gas parameters. Draft
// changes are debounced before an estimate is requested, and only the
// most recently issued estimate may update the gas limit.
type Controller struct {
	opts Options
	est  Estimator
	log  logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	draft      model.TransactionDraft
	gasLimit   uint64
	estimate   uint64
	baseFee    *big.Int
	priority   *big.Int
	estimating bool
	lastErr    error
	token      uint64
	timer      *time.Timer
	subs       map[int]chan Snapshot
	nextSub    int
	closed     bool
}

func NewController(ctx context.Context, est Estimator, opts Options, l logger.Logger) *Controller {
	if l == nil {
		l = logger.Nop()
	}
	cctx, cancel := context.WithCancel(ctx)
	return &Controller{
		opts:     opts,
		est:      est,
		log:      l.WithFields(logger.Fields{"component": "gas_controller"}),
		ctx:      cctx,
		cancel:   cancel,
		gasLimit: opts.Limits.Min,
		baseFee:  new(big.Int),
		priority: new(big.Int).Set(opts.Fees.Min),
		subs:     make(map[int]chan Snapshot),
	}
}

// UpdateDraft replaces the draft and restarts the debounce timer. Any
// estimate already in flight becomes stale.
func (c *Controller) UpdateDraft(d model.TransactionDraft) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.draft = d.Clone()
	c.token++
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.opts.Debounce, c.fire)
	c.publishLocked(c.snapshotLocked())
	c.mu.Unlock()
}

// EstimateNow skips the debounce and requests an estimate for the current draft.
func (c *Controller) EstimateNow() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()
	c.fire()
}

func (c *Controller) fire() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.token++
	token := c.token
	draft := c.draft.Clone()
	c.estimating = true
	c.publishLocked(c.snapshotLocked())
	c.mu.Unlock()

	go c.runEstimate(token, draft)
}

func (c *Controller) runEstimate(token uint64, draft model.TransactionDraft) {
	v, err := c.est.EstimateGas(c.ctx, draft)

	c.mu.Lock()
	if token != c.token || c.closed {
		c.mu.Unlock()
		c.log.Debug("discarding stale estimate", "token", token)
		return
	}
	c.estimating = false
	if err != nil {
		c.lastErr = err
	} else {
		c.lastErr = nil
		c.estimate = v
		c.gasLimit = c.opts.Limits.Clamp(v)
	}
	snap := c.snapshotLocked()
	c.publishLocked(snap)
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("gas estimation failed, keeping last gas limit", logger.Fields{"error": err.Error(), "gas_limit": snap.GasLimit})
	}
}

// SetGasLimit sets the gas limit, clamped to the bounds.
func (c *Controller) SetGasLimit(v uint64) Snapshot {
	return c.update(func() { c.gasLimit = c.opts.Limits.Clamp(v) })
}

// Step moves the gas limit one step in dir.
func (c *Controller) Step(dir Direction) Snapshot {
	return c.update(func() { c.gasLimit = c.opts.Limits.Next(c.gasLimit, dir) })
}

// ApplyGasPreset selects one of the gas limit presets.
func (c *Controller) ApplyGasPreset(p GasPreset) (Snapshot, error) {
	c.mu.Lock()
	v, err := c.opts.Limits.Preset(p, c.estimate)
	c.mu.Unlock()
	if err != nil {
		return c.Snapshot(), err
	}
	return c.SetGasLimit(v), nil
}

// SetPriorityFee sets the priority fee in wei, clamped to the bounds.
func (c *Controller) SetPriorityFee(v *big.Int) Snapshot {
	return c.update(func() { c.priority = c.opts.Fees.Clamp(v) })
}

// StepPriority moves the priority fee one step in dir.
func (c *Controller) StepPriority(dir Direction) Snapshot {
	return c.update(func() { c.priority = c.opts.Fees.Next(c.priority, dir) })
}

// ApplyPriorityPreset selects one of the priority fee presets.
func (c *Controller) ApplyPriorityPreset(p PriorityPreset) (Snapshot, error) {
	v, err := c.opts.Fees.Preset(p)
	if err != nil {
		return c.Snapshot(), err
	}
	return c.SetPriorityFee(v), nil
}

// SetBaseFee records the latest network base fee.
func (c *Controller) SetBaseFee(v *big.Int) Snapshot {
	return c.update(func() {
		if v == nil {
			c.baseFee = new(big.Int)
			return
		}
		c.baseFee = new(big.Int).Set(v)
	})
}

// StartHold steps the gas limit immediately and then on every hold tick
// until the returned stop func is called.
func (c *Controller) StartHold(dir Direction) (stop func()) {
	c.Step(dir)

	done := make(chan struct{})
	exited := make(chan struct{})
	ticker := time.NewTicker(c.opts.Hold)
	go func() {
		defer close(exited)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Step(dir)
			case <-done:
				return
			case <-c.ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
		<-exited
	}
}

// Subscribe returns a channel of snapshots and a func to unsubscribe. A
// subscriber that falls behind misses intermediate snapshots.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 16)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close stops the debounce timer, abandons in-flight estimates and closes all subscriptions.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
	}
	c.cancel()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

func (c *Controller) update(fn func()) Snapshot {
	c.mu.Lock()
	fn()
	snap := c.snapshotLocked()
	c.publishLocked(snap)
	c.mu.Unlock()
	return snap
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Draft:       c.draft.Clone(),
		GasLimit:    c.gasLimit,
		Estimate:    c.estimate,
		BaseFee:     new(big.Int).Set(c.baseFee),
		PriorityFee: new(big.Int).Set(c.priority),
		MaxFee:      MaxFee(c.baseFee, c.priority),
		Estimating:  c.estimating,
	}
	s.Draft.GasLimit = c.gasLimit
	s.Draft.Fees = model.FeeParams{
		BaseFee:              new(big.Int).Set(c.baseFee),
		MaxPriorityFeePerGas: new(big.Int).Set(c.priority),
		MaxFeePerGas:         MaxFee(c.baseFee, c.priority),
	}
	if c.lastErr != nil {
		s.Error = c.lastErr.Error()
	}
	return s
}

// publishLocked fans s out while mu is held, so subscribers see snapshots in
// the order they were taken. Sends never block.
func (c *Controller) publishLocked(s Snapshot) {
	for _, ch := range c.subs {
		select {
		case ch <- s:
		default:
		}
	}
}
