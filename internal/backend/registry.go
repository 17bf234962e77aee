package backend

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kanoon/pkg/utils"
)

const defaultInvokeTimeout = 60 * time.Second

type loaded struct {
	instance Instance
	backend  string
}

// slot holds at most one loaded instance. Reads go through the atomic pointer and never lock;
// mu only serializes Load and guards the diagnostic fields.
type slot struct {
	role    Role
	current atomic.Pointer[loaded]

	mu         sync.Mutex
	candidates []string
	lastError  error
}

// SlotHealth is the health of one slot. Error is set only when the slot is empty.
type SlotHealth struct {
	Loaded     bool     `json:"loaded"`
	Backend    string   `json:"backend,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Registry owns every backend instance. Create it once at startup and share it.
type Registry struct {
	slots         map[Role]*slot
	invokeTimeout time.Duration
	ready         atomic.Bool
	logger        *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		r.logger = utils.OrNop(logger)
	}
}

// WithInvokeTimeout bounds every Invoke call. Zero or negative disables the bound,
// leaving only the caller's context deadline.
func WithInvokeTimeout(d time.Duration) Option {
	return func(r *Registry) {
		r.invokeTimeout = d
	}
}

// NewRegistry creates a registry with one empty slot per role.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		slots:         make(map[Role]*slot, len(Roles())),
		invokeTimeout: defaultInvokeTimeout,
		logger:        zap.NewNop(),
	}
	for _, role := range Roles() {
		r.slots[role] = &slot{role: role}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load fills the slot for role with the first candidate that loads, trying them in order.
// Candidates after the winner are not attempted. When all fail the slot is left empty and
// the returned error wraps ErrAllCandidatesFailed and the last candidate's error; whether
// that is fatal is the caller's decision. A previously loaded instance is closed once replaced.
func (r *Registry) Load(ctx context.Context, role Role, candidates []Candidate) error {
	s, ok := r.slots[role]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.candidates = make([]string, len(candidates))
	for i, c := range candidates {
		s.candidates[i] = c.Name
	}
	s.lastError = nil

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			s.lastError = err
			break
		}
		start := time.Now()
		inst, err := loadCandidate(ctx, c)
		if err == nil && !implements(role, inst) {
			_ = inst.Close()
			err = fmt.Errorf("%T does not implement the %s interface", inst, role)
		}
		if err != nil {
			s.lastError = fmt.Errorf("candidate %s: %w", c.Name, err)
			r.logger.Warn("Backend candidate failed to load",
				zap.String("slot", string(role)),
				zap.String("candidate", c.Name),
				zap.Error(err))
			continue
		}

		r.swap(s, &loaded{instance: inst, backend: c.Name})
		r.logger.Info("Backend loaded",
			zap.String("slot", string(role)),
			zap.String("candidate", c.Name),
			zap.Duration("elapsed", time.Since(start)))
		return nil
	}

	if s.lastError == nil {
		s.lastError = errors.New("no candidates configured")
	}
	r.swap(s, nil)
	r.logger.Error("All backend candidates failed",
		zap.String("slot", string(role)),
		zap.Strings("candidates", s.candidates),
		zap.Error(s.lastError))
	return fmt.Errorf("load %s: %w: %w", role, ErrAllCandidatesFailed, s.lastError)
}

func loadCandidate(ctx context.Context, c Candidate) (inst Instance, err error) {
	if c.Load == nil {
		return nil, errors.New("candidate has no loader")
	}
	defer func() {
		if p := recover(); p != nil {
			inst, err = nil, fmt.Errorf("loader panic: %v", p)
		}
	}()
	inst, err = c.Load(ctx)
	if err == nil && inst == nil {
		err = errors.New("loader returned no instance")
	}
	return inst, err
}

func (r *Registry) swap(s *slot, next *loaded) {
	if old := s.current.Swap(next); old != nil {
		if err := old.instance.Close(); err != nil {
			r.logger.Warn("Failed to close replaced backend",
				zap.String("slot", string(s.role)),
				zap.String("candidate", old.backend),
				zap.Error(err))
		}
	}
}

// Get returns the loaded instance for role. It never blocks.
func (r *Registry) Get(role Role) (Instance, bool) {
	s, ok := r.slots[role]
	if !ok {
		return nil, false
	}
	cur := s.current.Load()
	if cur == nil {
		return nil, false
	}
	return cur.instance, true
}

// Loaded reports whether role has an instance.
func (r *Registry) Loaded(role Role) bool {
	_, ok := r.Get(role)
	return ok
}

// LastError returns the most recent candidate load error for role, or nil.
// It is kept for diagnostics even when a later candidate succeeded.
func (r *Registry) LastError(role Role) error {
	s, ok := r.slots[role]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

type outcome struct {
	value any
	err   error
}

// Invoke calls the backend in role's slot with input. It never returns an error directly:
// an empty slot, a backend error, a panic or a timeout all yield the role's fallback value
// with the matching Status. The backend runs in its own goroutine so a call that ignores
// its context cannot hold the caller past the deadline.
func (r *Registry) Invoke(ctx context.Context, role Role, input any) Result {
	start := time.Now()
	s, ok := r.slots[role]
	if !ok {
		return Result{Status: StatusFailed, Err: fmt.Errorf("%w: %q", ErrUnknownRole, role)}
	}
	cur := s.current.Load()
	if cur == nil {
		return Result{Status: StatusUnavailable, Value: fallback(role), Err: ErrUnavailable}
	}

	if r.invokeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.invokeTimeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("Backend panicked",
					zap.String("slot", string(role)),
					zap.Any("panic", p),
					zap.ByteString("stack", debug.Stack()))
				done <- outcome{err: fmt.Errorf("backend panic: %v", p)}
			}
		}()
		v, err := call(ctx, role, cur.instance, input)
		done <- outcome{value: v, err: err}
	}()

	res := Result{Backend: cur.backend}
	select {
	case o := <-done:
		res.Value, res.Err = o.value, o.err
		switch {
		case o.err == nil:
			res.Status = StatusOK
		case errors.Is(o.err, context.DeadlineExceeded) && ctx.Err() != nil:
			res.Status = StatusTimeout
			res.Err = fmt.Errorf("%w: %w", ErrTimeout, o.err)
		default:
			res.Status = StatusFailed
		}
	case <-ctx.Done():
		res.Status = StatusTimeout
		res.Err = fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
	res.Elapsed = time.Since(start)

	if res.Status != StatusOK {
		res.Value = fallback(role)
		r.logger.Warn("Backend invocation did not succeed",
			zap.String("slot", string(role)),
			zap.String("backend", cur.backend),
			zap.Stringer("status", res.Status),
			zap.Duration("elapsed", res.Elapsed),
			zap.Error(res.Err))
	}
	return res
}

func call(ctx context.Context, role Role, inst Instance, input any) (any, error) {
	switch role {
	case RoleGenerator:
		in, ok := input.(GenerateInput)
		if !ok {
			return nil, inputMismatch(role, input)
		}
		out, err := inst.(Generator).Generate(ctx, in.Prompt, in.MaxLength)
		if err != nil {
			return nil, err
		}
		if len(out) == 0 {
			return nil, errors.New("generator returned no output")
		}
		return out, nil
	case RoleQA:
		in, ok := input.(QAInput)
		if !ok {
			return nil, inputMismatch(role, input)
		}
		ans, err := inst.(QuestionAnswerer).Answer(ctx, in.Question, in.Context)
		if err != nil {
			return nil, err
		}
		if ans == nil {
			return nil, errors.New("qa backend returned no answer")
		}
		ans.Score = clamp01(ans.Score)
		return ans, nil
	case RoleSummarizer:
		in, ok := input.(SummarizeInput)
		if !ok {
			return nil, inputMismatch(role, input)
		}
		sum, err := inst.(Summarizer).Summarize(ctx, in.Text)
		if err != nil {
			return nil, err
		}
		if sum == nil {
			return nil, errors.New("summarizer returned no summary")
		}
		return sum, nil
	case RoleEmbedder:
		in, ok := input.(EmbedInput)
		if !ok {
			return nil, inputMismatch(role, input)
		}
		return inst.(Embedder).Embed(ctx, in.Text)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
}

func inputMismatch(role Role, input any) error {
	return fmt.Errorf("invalid input %T for %s slot", input, role)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Generate invokes the generator slot.
func (r *Registry) Generate(ctx context.Context, prompt string, maxLength int) ([]string, Result) {
	res := r.Invoke(ctx, RoleGenerator, GenerateInput{Prompt: prompt, MaxLength: maxLength})
	out, _ := res.Value.([]string)
	return out, res
}

// Answer invokes the qa slot. The answer is nil unless the result is OK.
func (r *Registry) Answer(ctx context.Context, question, passage string) (*Answer, Result) {
	res := r.Invoke(ctx, RoleQA, QAInput{Question: question, Context: passage})
	out, _ := res.Value.(*Answer)
	return out, res
}

// Summarize invokes the summarizer slot. The summary is nil unless the result is OK.
func (r *Registry) Summarize(ctx context.Context, text string) (*Summary, Result) {
	res := r.Invoke(ctx, RoleSummarizer, SummarizeInput{Text: text})
	out, _ := res.Value.(*Summary)
	return out, res
}

// Embed invokes the embedder slot. The vector is nil unless the result is OK.
func (r *Registry) Embed(ctx context.Context, text string) ([]float32, Result) {
	res := r.Invoke(ctx, RoleEmbedder, EmbedInput{Text: text})
	out, _ := res.Value.([]float32)
	return out, res
}

// MarkReady opens the readiness gate. Call it after every slot has been loaded.
func (r *Registry) MarkReady() {
	r.ready.Store(true)
}

// Ready reports whether startup loading has completed.
func (r *Registry) Ready() bool {
	return r.ready.Load()
}

// Health reports per-slot load state.
func (r *Registry) Health() map[Role]SlotHealth {
	out := make(map[Role]SlotHealth, len(r.slots))
	for role, s := range r.slots {
		s.mu.Lock()
		h := SlotHealth{Candidates: append([]string(nil), s.candidates...)}
		if cur := s.current.Load(); cur != nil {
			h.Loaded = true
			h.Backend = cur.backend
		} else if s.lastError != nil {
			h.Error = s.lastError.Error()
		}
		s.mu.Unlock()
		out[role] = h
	}
	return out
}

// Close releases every loaded instance. The registry is empty afterwards.
func (r *Registry) Close() error {
	r.ready.Store(false)
	var errs []error
	for _, role := range Roles() {
		s := r.slots[role]
		s.mu.Lock()
		if old := s.current.Swap(nil); old != nil {
			if err := old.instance.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s (%s): %w", role, old.backend, err))
			}
		}
		s.mu.Unlock()
	}
	return errors.Join(errs...)
}
