package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	wireerrors "github.com/vango-dev/eventwire/internal/errors"
	"github.com/vango-dev/eventwire/pkg/dom"
	"github.com/vango-dev/eventwire/pkg/payload"
	"github.com/vango-dev/eventwire/pkg/route"
)

// AlertFunc surfaces a blocking message to the user.
type AlertFunc func(ctx context.Context, msg string)

// Engine binds controllers to one document and runs their invocations.
// Binding is safe for concurrent use; the document itself is not, so
// events for one document must be fired from one goroutine.
type Engine struct {
	doc    *dom.Document
	routes *route.Registry

	mu       sync.Mutex
	bindings map[bindingKey]struct{}

	types      requestTypes
	resolver   Resolver
	alert      AlertFunc
	observers  []Observer
	middleware []Middleware
	newID      func() string
	logger     *slog.Logger

	invoke func(ctx context.Context, inv *Invocation) *Outcome
}

type bindingKey struct {
	owner  string
	member string
	el     *dom.Element
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithResolver sets the resolver consulted for request types missing from
// the registry.
func WithResolver(r Resolver) Option {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithAlert sets the sink for authorization messages of controllers that
// do not handle them. The default logs at error level.
func WithAlert(fn AlertFunc) Option {
	return func(e *Engine) {
		if fn != nil {
			e.alert = fn
		}
	}
}

// WithObserver adds an observer that receives every outcome.
func WithObserver(fn Observer) Option {
	return func(e *Engine) {
		if fn != nil {
			e.observers = append(e.observers, fn)
		}
	}
}

// WithMiddleware appends invocation middleware. The first is outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(e *Engine) {
		e.middleware = append(e.middleware, mw...)
	}
}

// WithRequestType registers a request type at construction.
func WithRequestType(name string, f RequestFactory) Option {
	return func(e *Engine) {
		e.types.register(name, f)
	}
}

// WithIDGenerator replaces the invocation ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// New creates an engine for doc. routes may be nil, in which case every
// invocation runs locally.
func New(doc *dom.Document, routes *route.Registry, opts ...Option) *Engine {
	e := &Engine{
		doc:      doc,
		routes:   routes,
		bindings: make(map[bindingKey]struct{}),
		newID:    uuid.NewString,
		logger:   slog.Default().With("component", "dispatch"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.alert == nil {
		logger := e.logger
		e.alert = func(_ context.Context, msg string) {
			logger.Error("authorize error", "message", msg)
		}
	}
	e.invoke = chain(e.middleware, e.run)
	return e
}

// Document returns the engine's document.
func (e *Engine) Document() *dom.Document {
	return e.doc
}

// Routes returns the engine's route registry, possibly nil.
func (e *Engine) Routes() *route.Registry {
	return e.routes
}

// RegisterRequestType registers a request type factory under name.
func (e *Engine) RegisterRequestType(name string, f RequestFactory) {
	e.types.register(name, f)
}

// Bind binds every handler of ctrl and returns how many new bindings were
// made.
func (e *Engine) Bind(ctrl Controller) int {
	members := make([]string, 0, len(ctrl.Handlers()))
	for m := range ctrl.Handlers() {
		members = append(members, m)
	}
	sort.Strings(members)

	n := 0
	for _, m := range members {
		n += e.BindHandler(ctrl, m)
	}
	return n
}

// BindHandler binds ctrl's member to every element matching the
// controller's selector and returns how many new bindings were made.
// Members with no category and existing bindings are skipped.
func (e *Engine) BindHandler(ctrl Controller, member string) int {
	h, ok := ctrl.Handlers()[member]
	if !ok {
		return 0
	}
	category := CategoryFor(member, h.On)
	if category == "" {
		e.logger.Debug("no event category", "owner", ctrl.Name(), "member", member)
		return 0
	}

	n := 0
	for _, el := range e.doc.QueryAll(ctrl.Selector()) {
		key := bindingKey{owner: ctrl.Name(), member: member, el: el}

		e.mu.Lock()
		_, bound := e.bindings[key]
		if !bound {
			e.bindings[key] = struct{}{}
		}
		e.mu.Unlock()
		if bound {
			continue
		}

		e.doc.AddEventListener(el, category, e.listener(el, ctrl, member, h, category))
		n++
		e.logger.Debug("bound handler",
			"owner", ctrl.Name(),
			"member", member,
			"category", category,
			"element", el.String(),
		)
	}
	return n
}

// Bound reports whether ctrl's member is bound to el.
func (e *Engine) Bound(ctrl Controller, member string, el *dom.Element) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.bindings[bindingKey{owner: ctrl.Name(), member: member, el: el}]
	return ok
}

// BindingCount returns the number of binding records.
func (e *Engine) BindingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.bindings)
}

// Fire dispatches an event of type typ at el and returns the outcomes of
// every invocation it triggered.
func (e *Engine) Fire(ctx context.Context, el *dom.Element, typ string) []*Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	c := &outcomeCollector{}
	e.doc.Dispatch(withCollector(ctx, c), el, typ)
	return c.outcomes
}

func (e *Engine) listener(el *dom.Element, ctrl Controller, member string, h Handler, category string) dom.Listener {
	return func(ev *dom.Event) {
		// Nested matches each carry this listener; only the element the
		// target resolves to runs the invocation.
		if ev.Target != nil {
			if t := ev.Target.Closest(ctrl.Selector()); t != nil && t != el {
				return
			}
		}
		ctx := ev.Context()
		inv := &Invocation{
			ID:         e.newID(),
			Controller: ctrl,
			Member:     member,
			Handler:    h,
			Category:   category,
			Selector:   ctrl.Selector(),
			Event:      ev,
		}
		out := e.invoke(ctx, inv)
		e.report(ctx, out)
	}
}

func (e *Engine) report(ctx context.Context, out *Outcome) {
	if out == nil {
		return
	}
	if c := collectorFrom(ctx); c != nil {
		c.outcomes = append(c.outcomes, out)
	}
	for _, obs := range e.observers {
		obs(ctx, out)
	}
}

// run is the invocation lifecycle.
func (e *Engine) run(ctx context.Context, inv *Invocation) *Outcome {
	start := time.Now()
	out := &Outcome{
		ID:       inv.ID,
		Owner:    inv.Owner(),
		Member:   inv.Member,
		Category: inv.Category,
		Selector: inv.Selector,
		Scope:    Scope{},
	}
	defer func() {
		out.enter(StageDone)
		out.Duration = time.Since(start)
	}()

	ev := inv.Event
	if ev == nil || ev.Target == nil {
		out.enter(StageSkipped)
		return out
	}

	target := ev.Target.Closest(inv.Selector)
	if target == nil {
		out.enter(StageSkipped)
		return out
	}

	if inv.Category == "submit" {
		if ev.Target.Closest("form") == nil {
			out.Err = wireerrors.New("E202").WithDetail(inv.Selector).Wrap(ErrNoForm)
			out.enter(StageSkipped)
			return out
		}
		ev.PreventDefault()
	}

	var (
		entry  route.Entry
		remote bool
	)
	if e.routes != nil {
		entry, remote = e.routes.FindHandler(out.Owner, inv.Member)
	}

	err := e.attempt(ctx, inv, target, entry, remote, out)
	if err != nil {
		e.fallback(ctx, inv, target, err, out)
	}
	return out
}

// attempt runs the collect, authorize, validate and execute steps. An
// error return means the fallback should run.
func (e *Engine) attempt(ctx context.Context, inv *Invocation, target *dom.Element, entry route.Entry, remote bool, out *Outcome) (err error) {
	defer func() {
		if r := recover(); r != nil {
			step := lastStage(out)
			if step == StageCollecting {
				err = wireerrors.New("E201").WithDetailf("%s: %v", requestTypeName(inv.Handler), r).Wrap(ErrRequestType)
			} else {
				err = wireerrors.New("E283").WithDetailf("%s: %v", step, r).Wrap(ErrStepPanic)
			}
			e.logger.Error("invocation panic",
				"owner", out.Owner,
				"member", out.Member,
				"stage", step,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	out.enter(StageCollecting)
	typeName := requestTypeName(inv.Handler)
	req, err := e.buildRequest(target, inv.Selector, typeName)
	if err != nil {
		return err
	}
	out.RequestType = typeName

	out.enter(StageAuthorizing)
	if a, ok := req.(Authorizer); ok {
		if auth := a.Authorize(); !auth.Allowed {
			e.reject(ctx, inv, auth.Reason(), out)
			return nil
		}
	}

	if inv.Category == "submit" {
		out.enter(StageValidating)
		if v, ok := req.(Validator); ok {
			if errs := v.Validate(); len(errs) > 0 {
				out.Errors = errs
				out.Err = wireerrors.New("E230").WithDetail(strings.Join(errs.Fields(), ", ")).Wrap(ErrValidationFailed)
				out.enter(StageRejected)
				return nil
			}
		}
	}

	if remote {
		return e.remote(ctx, inv, target, req, typeName, entry, out)
	}

	out.enter(StageExecuting)
	out.Result, out.Err = e.execute(ctx, inv, target, req, typeName, nil, out.Scope)
	out.enter(StageLocalDone)
	return nil
}

// buildRequest constructs the request for typeName: registered type, then
// resolver, then the base request.
func (e *Engine) buildRequest(target *dom.Element, selector, typeName string) (Request, error) {
	factory := RequestFactory(BaseRequest)
	if typeName != "" {
		if f, ok := e.types.lookup(typeName); ok {
			factory = f
		} else if f, ok := e.resolve(typeName); ok {
			factory = f
		} else {
			e.logger.Debug("request type not found, using base request", "type", typeName)
		}
	}

	req, err := factory(e.doc, target, selector)
	if err != nil {
		return nil, wireerrors.New("E201").WithDetail(typeName).Wrap(fmt.Errorf("%w: %w", ErrRequestType, err))
	}
	if req == nil {
		return nil, wireerrors.New("E201").WithDetail(typeName).Wrap(ErrRequestType)
	}
	return req, nil
}

func (e *Engine) resolve(name string) (RequestFactory, bool) {
	if e.resolver == nil {
		return nil, false
	}
	return e.resolver.ResolveRequestType(name)
}

// reject surfaces an authorization rejection once: through the
// controller's hook when it has one, else through the alert sink.
func (e *Engine) reject(ctx context.Context, inv *Invocation, msg string, out *Outcome) {
	out.Alert = msg
	out.Scope["authorizeError"] = msg
	out.Err = wireerrors.New("E220").WithDetail(msg).Wrap(ErrAuthorizationRejected)
	out.enter(StageRejected)

	if h, ok := inv.Controller.(AuthorizeErrorHandler); ok && handlesAuthorizeError(inv.Controller) {
		h.OnAuthorizeError(msg)
		return
	}
	e.alert(ctx, msg)
}

func handlesAuthorizeError(c Controller) bool {
	if o, ok := c.(interface{ HandlesAuthorizeError() bool }); ok {
		return o.HandlesAuthorizeError()
	}
	return true
}

// remote posts the enclosing form through the route table, stages the
// response and result expressions, and runs the handler.
func (e *Engine) remote(ctx context.Context, inv *Invocation, target *dom.Element, req Request, typeName string, entry route.Entry, out *Outcome) error {
	out.Remote = true
	out.Route = &entry

	var data any = payload.Payload{}
	if form := target.Closest("form"); form != nil {
		data = payload.FormData(form)
	}
	opts := entry.Options
	if ps, ok := inv.Controller.(route.PreSender); ok {
		data, opts = ps.BeforeSend(data, opts)
	}

	resp, err := e.routes.Call(ctx, entry.Method, entry.Pattern, data, opts)
	if err != nil {
		return wireerrors.FromError(err, transportCode(err))
	}
	out.Response = resp
	out.Scope["response"] = resp

	values, err := evalResults(inv.Handler.Results, resp, req)
	if err != nil {
		return wireerrors.New("E282").Wrap(err)
	}
	for k, v := range values {
		out.Scope[k] = v
	}

	out.enter(StageExecuting)
	out.Result, out.Err = e.execute(ctx, inv, target, req, typeName, resp, out.Scope)
	out.enter(StageRemoteDispatched)
	return nil
}

func transportCode(err error) string {
	if errors.Is(err, route.ErrHTTPStatus) {
		return "E261"
	}
	return "E260"
}

// fallback runs the handler with a bare request after cause diverted the
// invocation. Its own failure is recorded, never raised.
func (e *Engine) fallback(ctx context.Context, inv *Invocation, target *dom.Element, cause error, out *Outcome) {
	out.Err = cause
	out.Fallback = true
	out.enter(StageFallback)
	e.logger.Warn("invocation failed, running fallback",
		"owner", out.Owner,
		"member", out.Member,
		"error", cause,
	)

	defer func() {
		if r := recover(); r != nil {
			out.FallbackErr = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	req := payload.NewRequest(e.doc, target, inv.Selector)
	out.Result, out.FallbackErr = e.execute(ctx, inv, target, req, "", nil, out.Scope)
}

// execute resolves parameters, stages scope names and runs the handler.
// Handler errors and panics are logged and returned, never raised.
func (e *Engine) execute(ctx context.Context, inv *Invocation, target *dom.Element, req Request, typeName string, resp *route.Response, scope Scope) (result any, err error) {
	h := inv.Handler
	args := make([]any, len(h.Params))
	for i, p := range h.Params {
		switch {
		case p == "event":
			args[i] = inv.Event
		case isRequestParam(p, typeName):
			args[i] = req
		default:
			args[i] = resolveParam(req, p)
			if args[i] != nil {
				scope[p] = args[i]
			}
		}
	}

	if req != nil {
		for alias, field := range h.Fields {
			scope[alias] = lookupPath(req.All(), field)
		}
		scope["request"] = req
		if typeName != "" {
			scope[typeName] = req
		}
	}

	if h.Func == nil {
		return nil, nil
	}

	call := &Call{
		ctx:        ctx,
		ID:         inv.ID,
		Controller: inv.Controller,
		Member:     inv.Member,
		Args:       args,
		Request:    req,
		Event:      inv.Event,
		Element:    target,
		Response:   resp,
		Scope:      scope,
		params:     h.Params,
	}

	defer func() {
		if r := recover(); r != nil {
			err = wireerrors.New("E281").WithDetailf("%v", r).Wrap(ErrHandlerPanic)
			e.logger.Error("handler panic",
				"owner", inv.Owner(),
				"member", inv.Member,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	result, err = h.Func(call)
	if err != nil {
		e.logger.Error("handler failed",
			"owner", inv.Owner(),
			"member", inv.Member,
			"error", err,
		)
		return result, wireerrors.FromError(err, "E280")
	}
	return result, nil
}
